package transaction

import (
	"context"
	"io"
	"testing"

	"bookvault/pkg/storage"
	"bookvault/pkg/storage/disk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) storage.Store {
	t.Helper()
	adapter, err := disk.NewAdapter(t.TempDir())
	require.NoError(t, err)
	return adapter
}

func TestTx_CloseWritesFiles(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tx, err := Open(ctx, store, "bookmark")
	require.NoError(t, err)

	err = tx.AddFileGenerator(ctx, "bookmarks", "bookmarks", func(w io.Writer) error {
		_, err := w.Write([]byte("aabb main\n"))
		return err
	})
	require.NoError(t, err)

	// 提交前：已提交视图里还没有
	_, err = store.Read(ctx, "bookmarks")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// 但 pending 优先级的读已经能看到
	data, pending, err := TryPending(ctx, store, "bookmarks")
	require.NoError(t, err)
	assert.True(t, pending)
	assert.Equal(t, []byte("aabb main\n"), data)

	require.NoError(t, tx.Close(ctx))

	// 提交后：正式文件就位，pending 清理干净
	data, pending, err = TryPending(ctx, store, "bookmarks")
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, []byte("aabb main\n"), data)
}

func TestTx_AbortDropsEverything(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tx, err := Open(ctx, store, "bookmark")
	require.NoError(t, err)
	require.NoError(t, tx.AddFileGenerator(ctx, "bookmarks", "bookmarks", func(w io.Writer) error {
		_, err := w.Write([]byte("data"))
		return err
	}))

	require.NoError(t, tx.Abort(ctx))

	_, _, err = TryPending(ctx, store, "bookmarks")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Abort 之后不能再注册
	err = tx.AddFileGenerator(ctx, "x", "x", func(w io.Writer) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTx_StalePendingIgnored(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.Write(ctx, "bookmarks", []byte("aabb main\n")))
	// 没有活跃事务登记过的 .pending 是上次崩溃的残骸，读不到它
	require.NoError(t, store.Write(ctx, "bookmarks.pending", []byte("ccdd wip\n")))

	data, pending, err := TryPending(ctx, store, "bookmarks")
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, []byte("aabb main\n"), data)

	// 下一个事务正常暂存、提交，覆盖掉残骸
	tx, err := Open(ctx, store, "bookmark")
	require.NoError(t, err)
	require.NoError(t, tx.AddFileGenerator(ctx, "bookmarks", "bookmarks", func(w io.Writer) error {
		_, err := w.Write([]byte("eeff next\n"))
		return err
	}))
	data, pending, err = TryPending(ctx, store, "bookmarks")
	require.NoError(t, err)
	assert.True(t, pending)
	assert.Equal(t, []byte("eeff next\n"), data)
	require.NoError(t, tx.Close(ctx))

	data, pending, err = TryPending(ctx, store, "bookmarks")
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Equal(t, []byte("eeff next\n"), data)
}

func TestTx_RegeneratorReplacesByKey(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tx, err := Open(ctx, store, "bookmark")
	require.NoError(t, err)

	for _, content := range []string{"v1", "v2", "v3"} {
		c := content
		require.NoError(t, tx.AddFileGenerator(ctx, "bookmarks", "bookmarks", func(w io.Writer) error {
			_, err := w.Write([]byte(c))
			return err
		}))
	}
	require.NoError(t, tx.Close(ctx))

	data, err := store.Read(ctx, "bookmarks")
	require.NoError(t, err)
	assert.Equal(t, []byte("v3"), data, "同 key 的生成器后者覆盖前者")
}

func TestTx_HoldsWriteLock(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tx, err := Open(ctx, store, "bookmark")
	require.NoError(t, err)

	// 事务持锁期间，别的执行者拿不到
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Lock(cancelled, "wlock")
	assert.Error(t, err)

	require.NoError(t, tx.Close(ctx))

	// 释放后可以获取
	unlock, err := store.Lock(ctx, "wlock")
	require.NoError(t, err)
	require.NoError(t, unlock())
}

func TestTx_DoubleCloseFails(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	tx, err := Open(ctx, store, "bookmark")
	require.NoError(t, err)
	require.NoError(t, tx.Close(ctx))
	assert.ErrorIs(t, tx.Close(ctx), ErrClosed)
}
