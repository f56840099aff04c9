package remotenames

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"bookvault/pkg/bookmarks"
	"bookvault/pkg/graph"
	"bookvault/pkg/storage"
	"bookvault/pkg/types"
)

const accessedFile = "accessedbookmarks"

// AccessedSet 记录用户实际访问过的远端书签，selective pull 用它
// 决定下次同步只取哪些名字。文件和 remotenames 同格式。
type AccessedSet struct {
	files storage.Store
	graph graph.Graph
	rep   *bookmarks.Reporter
}

func NewAccessedSet(files storage.Store, g graph.Graph, rep *bookmarks.Reporter) *AccessedSet {
	return &AccessedSet{files: files, graph: g, rep: rep}
}

// read 解析 accessed 文件；内容损坏时自愈：警告、删掉、从零开始
func (a *AccessedSet) read(ctx context.Context) (map[string]types.CommitID, error) {
	data, err := a.files.Read(ctx, accessedFile)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]types.CommitID{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make(map[string]types.CommitID)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 || fields[1] != nameType {
			return a.heal(ctx, line)
		}
		id, err := types.ParseCommitID(fields[0])
		if err != nil {
			return a.heal(ctx, line)
		}
		out[fields[2]] = id
	}
	return out, scanner.Err()
}

// heal 把损坏的文件删掉，当作空集合继续。
// 这个文件只是优化提示，丢了最多多拉几个书签，不值得让操作失败。
func (a *AccessedSet) heal(ctx context.Context, line string) (map[string]types.CommitID, error) {
	a.rep.Warnf("accessed bookmarks file is corrupted (%q), resetting\n", line)
	if err := a.files.Remove(ctx, accessedFile); err != nil {
		return nil, err
	}
	return map[string]types.CommitID{}, nil
}

// Update 把一批刚访问过的远端书签并进集合
//
// 旧条目原样带过 (并集语义，集合只增不减)；新访问的名字只有目标
// 在本地图里存在时才记录。整个读-改-写在文件锁内进行。
func (a *AccessedSet) Update(ctx context.Context, remote types.RemotePath, marks map[string]types.CommitID) error {
	unlock, err := a.files.Lock(ctx, accessedFile)
	if err != nil {
		return err
	}
	defer unlock()

	next, err := a.read(ctx)
	if err != nil {
		return err
	}

	for name, id := range marks {
		resolvable, err := a.graph.Resolve(ctx, id)
		if err != nil {
			return err
		}
		if resolvable {
			next[Join(remote, name)] = id
		}
	}

	var buf bytes.Buffer
	fulls := make([]string, 0, len(next))
	for full := range next {
		fulls = append(fulls, full)
	}
	sort.Strings(fulls)
	for _, full := range fulls {
		fmt.Fprintf(&buf, "%s %s %s\n", next[full].Hex(), nameType, full)
	}
	return a.files.Write(ctx, accessedFile, buf.Bytes())
}

// NamesFor 返回某个远端访问过的书签名 (不含远端前缀)，排序
func (a *AccessedSet) NamesFor(ctx context.Context, remote types.RemotePath) ([]string, error) {
	known, err := a.read(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for full := range known {
		r, name, ok := Split(full)
		if ok && r == remote {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
