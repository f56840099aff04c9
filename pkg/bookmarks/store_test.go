package bookmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookvault/pkg/types"
)

func TestStoreLoadEmpty(t *testing.T) {
	env := newTestEnv(t, newFakeGraph())
	assert.Equal(t, 0, env.store.Len())
	assert.Equal(t, "", env.store.Active())
}

func TestStoreApplyAndReload(t *testing.T) {
	g := newFakeGraph()
	c1, c2 := mkID(0x01), mkID(0x02)
	g.addCommit(c1)
	g.addCommit(c2, c1)

	env := newTestEnv(t, g)
	env.apply(t,
		Change{Name: "main", Target: idPtr(c1)},
		Change{Name: "feature", Target: idPtr(c2)},
	)

	got, ok := env.store.Get("main")
	require.True(t, ok)
	assert.Equal(t, c1, got)

	// 新开一个 Store 必须看到持久化的内容
	again := env.reload(t)
	assert.Equal(t, []string{"feature", "main"}, again.Names())
	got, ok = again.Get("feature")
	require.True(t, ok)
	assert.Equal(t, c2, got)

	// nil 目标表示删除
	env.apply(t, Change{Name: "feature", Target: nil})
	assert.Equal(t, 1, env.reload(t).Len())
}

func TestStorePendingVisibleInsideTransaction(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1 := mkID(0x01)
	g.addCommit(c1)

	env := newTestEnv(t, g)
	tx := env.openTx(t)
	require.NoError(t, env.store.ApplyChanges(ctx, tx, []Change{{Name: "wip", Target: idPtr(c1)}}))

	// 事务还没提交：同边界内的读者看 pending，外部视角不变
	inside := env.reload(t)
	_, ok := inside.Get("wip")
	assert.True(t, ok)

	require.NoError(t, tx.Abort(ctx))
	_, ok = env.reload(t).Get("wip")
	assert.False(t, ok)
}

func TestStoreBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1, c2 := mkID(0x01), mkID(0x02)
	g.addCommit(c1)
	g.addCommit(c2, c1)

	env := newTestEnv(t, g)
	env.apply(t, Change{Name: "keep", Target: idPtr(c1)})

	tx := env.openTx(t)
	require.NoError(t, env.store.ApplyChanges(ctx, tx, []Change{
		{Name: "keep", Target: idPtr(c2)},
		{Name: "extra", Target: idPtr(c2)},
	}))
	require.NoError(t, tx.Abort(ctx))

	st := env.reload(t)
	got, _ := st.Get("keep")
	assert.Equal(t, c1, got, "aborted batch must leave the old state untouched")
	_, ok := st.Get("extra")
	assert.False(t, ok)
}

func TestStoreAuditKeepsFirstPriorValue(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1, c2, c3 := mkID(0x01), mkID(0x02), mkID(0x03)
	g.addCommit(c1)
	g.addCommit(c2, c1)
	g.addCommit(c3, c2)

	env := newTestEnv(t, g)
	env.apply(t, Change{Name: "b", Target: idPtr(c1)})

	tx := env.openTx(t)
	require.NoError(t, env.store.ApplyChanges(ctx, tx, []Change{{Name: "b", Target: idPtr(c2)}}))
	require.NoError(t, env.store.ApplyChanges(ctx, tx, []Change{{Name: "b", Target: idPtr(c3)}}))

	audit := tx.Changes(changeKind)
	require.Contains(t, audit, "b")
	require.NotNil(t, audit["b"].Old)
	assert.Equal(t, c1, *audit["b"].Old, "same tx touches a name twice, keep the first prior value")
	assert.Equal(t, c3, *audit["b"].New)
	require.NoError(t, tx.Close(ctx))
}

func TestStoreLoadSkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1 := mkID(0x01)
	g.addCommit(c1)

	raw := fmt.Sprintf("%s good\nnot-a-valid-line\n%s bad-sha extra\n", c1.Hex(), "zzzz")
	env := newTestEnv(t, g)
	require.NoError(t, env.files.Write(ctx, "bookmarks", []byte(raw)))

	st := env.reload(t)
	assert.Equal(t, []string{"good"}, st.Names())
	assert.Contains(t, env.warns.String(), "malformed line in bookmarks")
}

func TestStoreLoadDropsUnknownNodesAfterRefresh(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1, ghost := mkID(0x01), mkID(0x0f)
	g.addCommit(c1)

	raw := fmt.Sprintf("%s ghost\n%s main\n", ghost.Hex(), c1.Hex())
	env := newTestEnv(t, g)
	require.NoError(t, env.files.Write(ctx, "bookmarks", []byte(raw)))

	st := env.reload(t)
	assert.Equal(t, []string{"main"}, st.Names())
	assert.Equal(t, 1, g.refreshed, "one refresh-and-retry per unknown node")
	assert.Contains(t, env.warns.String(), "unknown reference in bookmarks")
}

func TestStoreActiveCursor(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1 := mkID(0x01)
	g.addCommit(c1)

	env := newTestEnv(t, g)
	env.apply(t, Change{Name: "main", Target: idPtr(c1)})

	require.NoError(t, env.store.Activate(ctx, "main"))
	assert.Equal(t, "main", env.store.Active())
	assert.Equal(t, "main", env.reload(t).Active())

	require.NoError(t, env.store.Deactivate(ctx))
	assert.Equal(t, "", env.reload(t).Active())
}

func TestStoreActiveDanglingNameIsDropped(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, newFakeGraph())
	require.NoError(t, env.files.Write(ctx, "bookmarks.current", []byte("vanished")))
	assert.Equal(t, "", env.reload(t).Active())
}

func TestStoreExpandName(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1 := mkID(0x01)
	g.addCommit(c1)

	env := newTestEnv(t, g)
	_, err := env.store.ExpandName(".")
	assert.ErrorIs(t, err, ErrNoActive)

	env.apply(t, Change{Name: "main", Target: idPtr(c1)})
	require.NoError(t, env.store.Activate(ctx, "main"))

	name, err := env.store.ExpandName(".")
	require.NoError(t, err)
	assert.Equal(t, "main", name)

	name, err = env.store.ExpandName("other")
	require.NoError(t, err)
	assert.Equal(t, "other", name)
}

func TestCheckConflict(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1, c2, c3 := mkID(0x01), mkID(0x02), mkID(0x03)
	g.addCommit(c1)
	g.addCommit(c2, c1)
	g.addCommit(c3) // 无关的根
	g.checkout = c2

	env := newTestEnv(t, g)
	env.apply(t, Change{Name: "main", Target: idPtr(c1)})

	t.Run("new name passes", func(t *testing.T) {
		_, err := env.store.CheckConflict(ctx, "fresh", false, idPtr(c2))
		assert.NoError(t, err)
	})

	t.Run("existing name without force", func(t *testing.T) {
		_, err := env.store.CheckConflict(ctx, "main", false, nil)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("force overrides", func(t *testing.T) {
		_, err := env.store.CheckConflict(ctx, "main", true, idPtr(c3))
		assert.NoError(t, err)
	})

	t.Run("forward move allowed", func(t *testing.T) {
		env.status.Reset()
		_, err := env.store.CheckConflict(ctx, "main", false, idPtr(c2))
		require.NoError(t, err)
		assert.Contains(t, env.status.String(), "moving bookmark 'main' forward")
	})

	t.Run("sideways move rejected", func(t *testing.T) {
		_, err := env.store.CheckConflict(ctx, "main", false, idPtr(c3))
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("reactivation is a no-op", func(t *testing.T) {
		env.apply(t, Change{Name: "here", Target: idPtr(c2)})
		delbms, err := env.store.CheckConflict(ctx, "here", false, idPtr(c2))
		assert.NoError(t, err)
		assert.Empty(t, delbms)
	})
}

func TestCheckConflictAbsorbsDivergentSiblings(t *testing.T) {
	ctx := context.Background()
	g := newFakeGraph()
	c1, c2, c3 := mkID(0x01), mkID(0x02), mkID(0x03)
	g.addCommit(c1)
	g.addCommit(c2, c1)
	g.addCommit(c3, c2)

	env := newTestEnv(t, g)
	env.apply(t,
		Change{Name: "topic", Target: idPtr(c1)},
		Change{Name: "topic@1", Target: idPtr(c2)},
	)

	// topic 前进到 c3，会吞掉目标是 c3 祖先的 topic@1
	delbms, err := env.store.CheckConflict(ctx, "topic", false, idPtr(c3))
	require.NoError(t, err)
	assert.Equal(t, []string{"topic@1"}, delbms)
}

func TestDivergentToDelete(t *testing.T) {
	g := newFakeGraph()
	c1, c2 := mkID(0x01), mkID(0x02)
	g.addCommit(c1)
	g.addCommit(c2, c1)

	env := newTestEnv(t, g)
	env.apply(t,
		Change{Name: "topic", Target: idPtr(c1)},
		Change{Name: "topic@1", Target: idPtr(c2)},
		Change{Name: "topic@other", Target: idPtr(c1)},
		Change{Name: "@", Target: idPtr(c2)},
		Change{Name: "plain", Target: idPtr(c2)},
	)

	got := env.store.DivergentToDelete([]types.CommitID{c1, c2}, "topic")
	assert.Equal(t, []string{"topic@1", "topic@other"}, got)

	// 自己不会出现在删除列表里；"@" 和不含 "@" 的名字按定义不发散
	got = env.store.DivergentToDelete([]types.CommitID{c2}, "topic@1")
	assert.NotContains(t, got, "topic@1")
	assert.NotContains(t, got, "@")
	assert.NotContains(t, got, "plain")
}
