package disk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bookvault/pkg/storage"
)

// 锁文件轮询参数
const (
	lockRetryInterval = 50 * time.Millisecond
	lockTimeout       = 10 * time.Second
)

// Adapter 实现了 storage.Store 接口
type Adapter struct {
	rootPath string // 比如: /home/user/repo/.bv
}

// NewAdapter 创建一个新的磁盘存储适配器
func NewAdapter(root string) (*Adapter, error) {
	// 确保根目录存在
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage dir: %w", err)
	}
	return &Adapter{rootPath: root}, nil
}

func (s *Adapter) layout(name string) string {
	return filepath.Join(s.rootPath, name)
}

func (s *Adapter) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.layout(name))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Write 原子写入 (Atomic Write)
// 技巧：先写到一个临时文件，然后 Rename。
// 这样保证读者要么看到旧文件，要么看到完整的新文件。
func (s *Adapter) Write(ctx context.Context, name string, data []byte) error {
	targetPath := s.layout(name)

	dir := filepath.Dir(targetPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(dir, "temp-*")
	if err != nil {
		return err
	}
	// 确保临时文件会被清理（如果成功 Rename 了，这个删除会失效，或者无害）
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return err
	}
	tempFile.Close() // 必须先关闭才能 Rename

	return os.Rename(tempFile.Name(), targetPath)
}

func (s *Adapter) Remove(ctx context.Context, name string) error {
	err := os.Remove(s.layout(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Lock 通过 O_CREATE|O_EXCL 锁文件实现互斥
// 拿不到时轮询重试，直到超时或 ctx 取消
func (s *Adapter) Lock(ctx context.Context, name string) (storage.UnlockFunc, error) {
	lockPath := s.layout(name + ".lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "pid=%d\n", os.Getpid())
			f.Close()
			return func() error { return os.Remove(lockPath) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", storage.ErrLocked, lockPath)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
