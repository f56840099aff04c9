// Package remotenames 维护远端书签的本地追踪缓存
//
// 持久文件 "remotenames" 每行三个字段:
//
//	{40位hex} bookmarks {remote}/{name}
//
// 读取是惰性的：第一次访问才加载；每个条目的解析结果缓存成三种状态
// (未解析 / 已解析 / 已判定失效)，同一个条目不会对图做两次存在性查询。
package remotenames

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"bookvault/pkg/bookmarks"
	"bookvault/pkg/graph"
	"bookvault/pkg/journal"
	"bookvault/pkg/storage"
	"bookvault/pkg/transaction"
	"bookvault/pkg/types"
)

const (
	remotenamesFile = "remotenames"
	nameType        = "bookmarks"
	changeKind      = "remotenames"
)

// ErrCorruptedState 表示追踪文件的内容不符合三字段格式
var ErrCorruptedState = errors.New("corrupted remotenames state")

// Join 拼出完整的远端书签名
func Join(remote types.RemotePath, name string) string {
	return string(remote) + "/" + name
}

// Split 把 "remote/name" 拆开；按第一个 "/" 切，书签名里允许再出现 "/"
func Split(full string) (types.RemotePath, string, bool) {
	remote, name, ok := strings.Cut(full, "/")
	return types.RemotePath(remote), name, ok
}

// record 是文件里的一行，惰性解析
type record struct {
	fullName string // "remote/name"
	sha      string // 原始十六进制串

	// 解析状态: state == cellRaw 时后两个字段无意义
	state cellState
	node  types.CommitID
}

type cellState uint8

const (
	cellRaw cellState = iota
	cellResolved
	cellStale
)

// Cache 是远端书签的惰性追踪缓存
type Cache struct {
	files storage.Store
	graph graph.Graph
	jnl   journal.Journal
	rep   *bookmarks.Reporter

	// aliasDefault 开启时，"default" 远端的书签 "remote/name"
	// 额外可以用去掉前缀的短名查到
	aliasDefault bool

	loaded  bool
	records []record
	byName  map[string]int // fullName (及别名) -> records 下标
}

func NewCache(files storage.Store, g graph.Graph, jnl journal.Journal, rep *bookmarks.Reporter, aliasDefault bool) *Cache {
	return &Cache{
		files:        files,
		graph:        g,
		jnl:          jnl,
		rep:          rep,
		aliasDefault: aliasDefault,
	}
}

// Invalidate 丢弃已加载的视图，下次访问重新读文件
func (c *Cache) Invalidate() {
	c.loaded = false
	c.records = nil
	c.byName = nil
}

func (c *Cache) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	c.records = nil
	c.byName = make(map[string]int)

	data, _, err := transaction.TryPending(ctx, c.files, remotenamesFile)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read remotenames: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 3)
		if len(fields) != 3 {
			return fmt.Errorf("%w: %q", ErrCorruptedState, line)
		}
		sha, kind, fullName := fields[0], fields[1], fields[2]
		if kind != nameType {
			// 未来可能有别的名字空间，现在只认书签
			continue
		}

		idx := len(c.records)
		c.records = append(c.records, record{fullName: fullName, sha: sha})
		c.byName[fullName] = idx
		if c.aliasDefault {
			if remote, name, ok := Split(fullName); ok && remote == "default" {
				c.byName[name] = idx
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	c.loaded = true
	return nil
}

// resolve 把一条记录推进到终态，stale 的节点丢弃
func (c *Cache) resolve(ctx context.Context, idx int) error {
	rec := &c.records[idx]
	if rec.state != cellRaw {
		return nil
	}

	id, err := types.ParseCommitID(rec.sha)
	if err != nil {
		rec.state = cellStale
		c.rep.Warnf("malformed remotenames entry for %s: %q\n", rec.fullName, rec.sha)
		return nil
	}
	known, err := c.graph.Resolve(ctx, id)
	if err != nil {
		return err
	}
	if !known {
		// 本地还没有这个提交 (strip 过，或图视图落后)，当它不存在
		rec.state = cellStale
		return nil
	}
	rec.state = cellResolved
	rec.node = id
	return nil
}

// Get 按完整名 (或 alias_default 短名) 查一条远端书签
func (c *Cache) Get(ctx context.Context, fullName string) (types.CommitID, bool, error) {
	if err := c.load(ctx); err != nil {
		return types.NullID, false, err
	}
	idx, ok := c.byName[fullName]
	if !ok {
		return types.NullID, false, nil
	}
	if err := c.resolve(ctx, idx); err != nil {
		return types.NullID, false, err
	}
	if c.records[idx].state != cellResolved {
		return types.NullID, false, nil
	}
	return c.records[idx].node, true, nil
}

// Keys 返回全部完整名 (含 stale 条目)，排序
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(c.records))
	for _, rec := range c.records {
		keys = append(keys, rec.fullName)
	}
	sort.Strings(keys)
	return keys, nil
}

// Items 返回全部可解析的远端书签
func (c *Cache) Items(ctx context.Context) (map[string]types.CommitID, error) {
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	out := make(map[string]types.CommitID)
	for i := range c.records {
		if err := c.resolve(ctx, i); err != nil {
			return nil, err
		}
		if c.records[i].state == cellResolved {
			out[c.records[i].fullName] = c.records[i].node
		}
	}
	return out, nil
}

// ItemsFor 返回某一个远端的 name -> node 视图 (名字不含远端前缀)
func (c *Cache) ItemsFor(ctx context.Context, remote types.RemotePath) (map[string]types.CommitID, error) {
	all, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]types.CommitID)
	for full, id := range all {
		r, name, ok := Split(full)
		if ok && r == remote {
			out[name] = id
		}
	}
	return out, nil
}

// Save 用一次 pull/push 的结果更新 remote 的追踪条目
//
// override 为真时 remote 的旧条目整体替换；为假时合并，新条目覆盖同名旧条目。
// marks 里 nil 表示远端已删除该名字。新节点本地不认识时保留旧目标
// (比什么都不剩好)。其他远端的条目原样带过。
// 变更写进事务，并给 undo 日志各喂一条记录。
func (c *Cache) Save(ctx context.Context, tx *transaction.Tx, remote types.RemotePath, marks map[string]*types.CommitID, override bool) error {
	if err := c.load(ctx); err != nil {
		return err
	}

	// 现状: 本远端的旧条目 (raw hex 也带上，fallback 要用)
	oldMarks := make(map[string]types.CommitID)
	for i := range c.records {
		r, name, ok := Split(c.records[i].fullName)
		if !ok || r != remote {
			continue
		}
		if err := c.resolve(ctx, i); err != nil {
			return err
		}
		if c.records[i].state == cellResolved {
			oldMarks[name] = c.records[i].node
		}
	}

	next := make(map[string]types.CommitID)
	if !override {
		for name, id := range oldMarks {
			next[name] = id
		}
	}
	for name, target := range marks {
		if target == nil {
			delete(next, name)
			continue
		}
		known, err := c.graph.Resolve(ctx, *target)
		if err != nil {
			return err
		}
		if !known {
			if prev, ok := oldMarks[name]; ok {
				c.rep.Warnf("remote bookmark %s points to a missing commit, keeping %s\n",
					Join(remote, name), prev.Short())
				next[name] = prev
			}
			continue
		}
		next[name] = *target
	}

	// undo 日志: 只记真的动了的名字
	var entries []journal.Entry
	for _, name := range sortedKeys(next) {
		if oldMarks[name] != next[name] {
			entries = append(entries, journal.Entry{
				Name: Join(remote, name),
				Old:  oldMarks[name],
				New:  next[name],
			})
		}
	}
	for _, name := range sortedKeys(oldMarks) {
		if _, ok := next[name]; !ok {
			entries = append(entries, journal.Entry{
				Name: Join(remote, name),
				Old:  oldMarks[name],
				New:  types.NullID,
			})
		}
	}
	if c.jnl != nil {
		if err := c.jnl.RecordMany(ctx, journal.KindRemoteBookmark, entries); err != nil {
			return err
		}
	}

	// 重组记录表: 其他远端的条目 (含 stale，不丢别人的数据) + 本远端的新条目
	var lines []string
	for _, rec := range c.records {
		r, _, ok := Split(rec.fullName)
		if ok && r == remote {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", rec.sha, nameType, rec.fullName))
	}
	for _, name := range sortedKeys(next) {
		lines = append(lines, fmt.Sprintf("%s %s %s", next[name].Hex(), nameType, Join(remote, name)))
	}
	sort.Strings(lines)

	err := tx.AddFileGenerator(ctx, changeKind, remotenamesFile, func(w io.Writer) error {
		for _, line := range lines {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// 下次读取走新文件
	c.Invalidate()
	return nil
}

func sortedKeys(m map[string]types.CommitID) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
