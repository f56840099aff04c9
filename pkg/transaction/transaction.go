package transaction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"bookvault/pkg/storage"
	"bookvault/pkg/types"
)

var ErrClosed = errors.New("transaction already closed")

// Change 记录一个名字在事务里的首末状态，供审计/undo 使用
// nil 表示“不存在”。同一个名字被改多次时，Old 保留第一次看到的旧值。
type Change struct {
	Old *types.CommitID
	New *types.CommitID
}

const pendingSuffix = ".pending"

// 活跃 pending 登记表。只有开着的事务登记过的 .pending 才会被
// TryPending 采纳；进程崩溃遗留在磁盘上的 .pending 不在表里，
// 读取方落回已提交内容，等于自动回滚，下一个事务的暂存会覆盖它。
var (
	pendingMu     sync.Mutex
	pendingActive = make(map[pendingKey]struct{})
)

type pendingKey struct {
	store storage.Store
	name  string
}

func pendingRegistered(store storage.Store, name string) bool {
	pendingMu.Lock()
	defer pendingMu.Unlock()
	_, ok := pendingActive[pendingKey{store, name}]
	return ok
}

type stagedFile struct {
	name string
	data []byte
}

// Tx 是单写者事务：
//   - 写入方通过 AddFileGenerator 注册“如何生成某个文件”
//   - 注册时内容就会被物化到 <name>.pending，事务内的读者优先看到它
//   - Close 把所有暂存内容原子落盘并清理 pending；Abort 只清理 pending
//
// 并发安全由 Open 时拿到的存储锁保证，进程内不做额外同步。
type Tx struct {
	store  storage.Store
	label  string
	unlock storage.UnlockFunc

	order   []string // key 的注册顺序
	staged  map[string]stagedFile
	changes map[string]map[string]Change // kind -> name -> change
	done    bool
}

// Open 开启事务并持有仓库写锁，label 仅用于诊断
func Open(ctx context.Context, store storage.Store, label string) (*Tx, error) {
	unlock, err := store.Lock(ctx, "wlock")
	if err != nil {
		return nil, fmt.Errorf("cannot open transaction %q: %w", label, err)
	}
	return &Tx{
		store:   store,
		label:   label,
		unlock:  unlock,
		staged:  make(map[string]stagedFile),
		changes: make(map[string]map[string]Change),
	}, nil
}

// Changes 返回某一类变更的暂存表 (比如 "bookmarks")
// 调用方直接往里写；事务本身不解释内容
func (tx *Tx) Changes(kind string) map[string]Change {
	m, ok := tx.changes[kind]
	if !ok {
		m = make(map[string]Change)
		tx.changes[kind] = m
	}
	return m
}

// AddFileGenerator 注册文件生成器
// 生成器立即执行，输出同时写到 <filename>.pending；
// 同一个 key 重复注册时，后者覆盖前者。
func (tx *Tx) AddFileGenerator(ctx context.Context, key, filename string, gen func(w io.Writer) error) error {
	if tx.done {
		return ErrClosed
	}

	var buf bytes.Buffer
	if err := gen(&buf); err != nil {
		return fmt.Errorf("file generator %q failed: %w", key, err)
	}

	if err := tx.store.Write(ctx, filename+pendingSuffix, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to stage pending %s: %w", filename, err)
	}

	if _, exists := tx.staged[key]; !exists {
		tx.order = append(tx.order, key)
	}
	tx.staged[key] = stagedFile{name: filename, data: buf.Bytes()}

	pendingMu.Lock()
	pendingActive[pendingKey{tx.store, filename}] = struct{}{}
	pendingMu.Unlock()
	return nil
}

// clearPending 注销本事务登记过的所有 pending 文件
func (tx *Tx) clearPending() {
	pendingMu.Lock()
	for _, key := range tx.order {
		delete(pendingActive, pendingKey{tx.store, tx.staged[key].name})
	}
	pendingMu.Unlock()
}

// Close 落盘所有暂存文件并释放锁
// 单个文件的替换是原子的；崩溃在两个文件之间时，pending 文件留在原地，
// 下一个事务的写入会覆盖它们，已提交的文件绝不会是半成品。
func (tx *Tx) Close(ctx context.Context) error {
	if tx.done {
		return ErrClosed
	}
	tx.done = true
	defer tx.unlock()
	defer tx.clearPending()

	for _, key := range tx.order {
		f := tx.staged[key]
		if err := tx.store.Write(ctx, f.name, f.data); err != nil {
			return fmt.Errorf("transaction %q: failed to write %s: %w", tx.label, f.name, err)
		}
		if err := tx.store.Remove(ctx, f.name+pendingSuffix); err != nil {
			return err
		}
	}
	return nil
}

// Abort 丢弃一切暂存内容
func (tx *Tx) Abort(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	defer tx.unlock()
	defer tx.clearPending()

	for _, key := range tx.order {
		f := tx.staged[key]
		if err := tx.store.Remove(ctx, f.name+pendingSuffix); err != nil {
			return err
		}
	}
	return nil
}

// TryPending 带 pending 优先级的读：
// 本进程有开着的事务写过 <name>.pending 时读它，否则读已提交的
// <name>。登记表没见过的 .pending 文件 (崩溃遗留) 一律忽略。
// 返回值 pending 告知调用方读到的是哪一份。
func TryPending(ctx context.Context, store storage.Store, name string) (data []byte, pending bool, err error) {
	if pendingRegistered(store, name) {
		data, err = store.Read(ctx, name+pendingSuffix)
		if err == nil {
			return data, true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, false, err
		}
	}

	data, err = store.Read(ctx, name)
	return data, false, err
}
