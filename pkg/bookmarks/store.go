package bookmarks

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"bookvault/pkg/graph"
	"bookvault/pkg/storage"
	"bookvault/pkg/transaction"
	"bookvault/pkg/types"
)

const (
	// 持久化文件名
	bookmarksFile = "bookmarks"
	activeFile    = "bookmarks.current"

	// 事务变更表里的命名空间
	changeKind = "bookmarks"
)

// Change 是对一个名字的单次变更；Target 为 nil 表示删除
type Change struct {
	Name   string
	Target *types.CommitID
}

// Store 持有 name -> CommitID 的映射和活动书签游标
//
// This object should do all bookmark-related reads and writes, so that
// it's fairly simple to replace the storage underlying bookmarks.
//
// 磁盘格式: 每行 "{40位hex} {name}\n"，按名字排序。
// 所有修改都走 ApplyChanges 这一个口子，不提供单键直接赋值。
type Store struct {
	graph graph.Graph
	files storage.Store
	rep   *Reporter

	entries map[string]types.CommitID
	active  string
}

// Load 读取书签文件并构建 Store
// 事务内的读者优先看到 pending 内容 (未提交的视图)。
// 坏行跳过并警告；指向未知节点的行先刷新图视图重试一次，再失败就丢弃。
func Load(ctx context.Context, files storage.Store, g graph.Graph, rep *Reporter) (*Store, error) {
	s := &Store{
		graph:   g,
		files:   files,
		rep:     rep,
		entries: make(map[string]types.CommitID),
	}

	data, _, err := transaction.TryPending(ctx, files, bookmarksFile)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to read bookmarks: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sha, name, ok := strings.Cut(line, " ")
		if !ok {
			rep.Warnf("malformed line in bookmarks: %q\n", line)
			continue
		}
		id, err := types.ParseCommitID(sha)
		if err != nil {
			rep.Warnf("malformed line in bookmarks: %q\n", line)
			continue
		}

		known, err := g.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		if !known {
			// 书签可能比图视图新 (图加载在前，书签改写在后)。
			// 刷新视图重试一次，还不认识就只能丢弃。
			if err := g.Refresh(ctx); err != nil {
				return nil, err
			}
			known, err = g.Resolve(ctx, id)
			if err != nil {
				return nil, err
			}
			if !known {
				rep.Warnf("unknown reference in bookmarks: %s %s\n", name, sha)
				continue
			}
		}
		s.entries[name] = id
	}

	s.active = readActive(ctx, files, s.entries)
	return s, nil
}

// readActive 读出活动书签的名字；名字不在 store 里就当没有
func readActive(ctx context.Context, files storage.Store, entries map[string]types.CommitID) string {
	data, err := files.Read(ctx, activeFile)
	if err != nil {
		return ""
	}
	name := strings.TrimSpace(string(data))
	if _, ok := entries[name]; !ok {
		return ""
	}
	return name
}

// Active 返回活动书签的名字，没有则为空串
func (s *Store) Active() string { return s.active }

// setActive 设置游标。设一个 store 里不存在的名字是编程错误，直接 panic。
func (s *Store) setActive(name string) {
	if name != "" {
		if _, ok := s.entries[name]; !ok {
			panic(fmt.Sprintf("bookmark %s does not exist!", name))
		}
	}
	s.active = name
}

// Activate 把 name 设为活动书签并持久化
// 调用方需持有事务边界；这里不再加锁。
func (s *Store) Activate(ctx context.Context, name string) error {
	s.setActive(name)
	return s.writeActive(ctx)
}

// Deactivate 清除活动书签
func (s *Store) Deactivate(ctx context.Context) error {
	s.active = ""
	return s.writeActive(ctx)
}

func (s *Store) writeActive(ctx context.Context) error {
	if s.active == "" {
		return s.files.Remove(ctx, activeFile)
	}
	return s.files.Write(ctx, activeFile, []byte(s.active))
}

// Get 查询一个名字
func (s *Store) Get(name string) (types.CommitID, bool) {
	id, ok := s.entries[name]
	return id, ok
}

// Names 返回排序后的全部名字
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All 返回映射的副本
func (s *Store) All() map[string]types.CommitID {
	out := make(map[string]types.CommitID, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

func (s *Store) Len() int { return len(s.entries) }

// ExpandName 把 "." 展开为活动书签
func (s *Store) ExpandName(name string) (string, error) {
	if name == "." {
		if s.active == "" {
			return "", ErrNoActive
		}
		return s.active, nil
	}
	return name, nil
}

// ApplyChanges 原子地应用一批变更
// 每对 (name, target) 依次生效：nil 删除，非 nil 赋值。
// 变更同时登记到事务的审计表里：同一批里一个名字被碰两次时，
// 保留第一次看到的旧值。最后注册文件生成器，由事务负责落盘。
func (s *Store) ApplyChanges(ctx context.Context, tx *transaction.Tx, changes []Change) error {
	audit := tx.Changes(changeKind)
	for _, ch := range changes {
		var old *types.CommitID
		if prev, ok := s.entries[ch.Name]; ok {
			prevCopy := prev
			old = &prevCopy
		}

		if ch.Target == nil {
			delete(s.entries, ch.Name)
		} else {
			s.entries[ch.Name] = *ch.Target
		}

		// if a previous value exist preserve the "initial" value
		if prev, ok := audit[ch.Name]; ok {
			old = prev.Old
		}
		audit[ch.Name] = transaction.Change{Old: old, New: ch.Target}
	}

	return tx.AddFileGenerator(ctx, changeKind, bookmarksFile, s.write)
}

func (s *Store) write(w io.Writer) error {
	for _, name := range s.Names() {
		if _, err := fmt.Fprintf(w, "%s %s\n", s.entries[name].Hex(), name); err != nil {
			return err
		}
	}
	return nil
}

// CheckConflict 在无 force 的情况下检查 name 是否和现有书签冲突
//
// 给了 target 时，还会检查这是不是一次前进移动；
// 需要顺带删除的发散同名书签，作为列表返回。
func (s *Store) CheckConflict(ctx context.Context, name string, force bool, target *types.CommitID) ([]string, error) {
	cur, err := s.graph.CheckoutID(ctx)
	if err != nil {
		return nil, err
	}

	if existing, ok := s.entries[name]; ok && !force {
		if target != nil {
			if existing == *target && *target == cur {
				// re-activating a bookmark
				return nil, nil
			}

			divs := s.divergentTargets(name)

			// allow resolving a single divergent bookmark even if moving
			// the bookmark across branches when a revision is specified
			// that contains a divergent bookmark
			strictAnc := false
			if existing != *target {
				strictAnc, err = s.graph.IsDescendant(ctx, existing, *target)
				if err != nil {
					return nil, err
				}
			}
			if !strictAnc && containsID(divs, *target) {
				return s.DivergentToDelete([]types.CommitID{*target}, name), nil
			}

			var deleteFrom []types.CommitID
			for _, d := range divs {
				anc, err := s.graph.IsDescendant(ctx, d, *target)
				if err != nil {
					return nil, err
				}
				if anc || d == *target {
					deleteFrom = append(deleteFrom, d)
				}
			}
			delbms := s.DivergentToDelete(deleteFrom, name)

			ok, err := ValidDest(ctx, s.graph, existing, *target)
			if err != nil {
				return nil, err
			}
			if ok {
				s.rep.Statusf("moving bookmark '%s' forward from %s\n", name, existing.Short())
				return delbms, nil
			}
		}
		return nil, fmt.Errorf("%w: bookmark '%s' already exists (use -f to force)", ErrConflict, name)
	}

	// 非致命的启发式检查：名字看起来像一个提交号时提醒一下
	if len(name) > 3 && !force {
		if id, err := types.ParseCommitID(name); err == nil {
			if shadow, err := s.graph.Resolve(ctx, id); err == nil && shadow {
				s.rep.Warnf("bookmark %s matches a changeset hash\n"+
					"(did you leave a -r out of a 'bv bookmark' command?)\n", name)
			}
		}
	}
	return nil, nil
}

// divergentTargets 返回与 name 同逻辑名的所有书签的目标 (含 name 自己)
func (s *Store) divergentTargets(name string) []types.CommitID {
	base := logicalName(name)
	var out []types.CommitID
	for _, b := range s.Names() {
		if logicalName(b) == base {
			out = append(out, s.entries[b])
		}
	}
	return out
}

// DivergentToDelete 找出 name 的发散同名书签里，目标落在 deleteFrom 里的那些
func (s *Store) DivergentToDelete(deleteFrom []types.CommitID, name string) []string {
	base := logicalName(name)
	var todelete []string
	for _, mark := range s.Names() {
		if logicalName(mark) != base {
			continue
		}
		if mark == "@" || !strings.Contains(mark, "@") {
			// can't be divergent by definition
			continue
		}
		if containsID(deleteFrom, s.entries[mark]) && mark != name {
			todelete = append(todelete, mark)
		}
	}
	return todelete
}

// logicalName 取第一个 "@" 之前的部分
func logicalName(name string) string {
	base, _, _ := strings.Cut(name, "@")
	return base
}

func containsID(ids []types.CommitID, id types.CommitID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
