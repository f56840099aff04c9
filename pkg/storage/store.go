package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("file not found")

	// ErrLocked 表示锁已被别的执行者持有
	ErrLocked = errors.New("file is locked")
)

// UnlockFunc 释放 Lock 返回的守卫
type UnlockFunc func() error

// Store defines the interface for a storage backend.
// Implementations can be local disk, cloud storage, or in-memory storage.
//
// 和对象存储不同，这里存的是“有名字的可变文件” (bookmarks, remotenames 等)。
// Write 必须是原子替换：写入中途崩溃，读者仍然看到旧文件。
type Store interface {
	// Read 读取整个文件
	Read(ctx context.Context, name string) ([]byte, error)

	// Write 原子地替换整个文件
	Write(ctx context.Context, name string, data []byte) error

	// Remove 删除文件 (文件不存在不算错)
	Remove(ctx context.Context, name string) error

	// Lock 获取名为 name 的互斥锁，返回释放函数
	// 锁是建议性的：所有写入者都必须先拿锁
	Lock(ctx context.Context, name string) (UnlockFunc, error)
}
