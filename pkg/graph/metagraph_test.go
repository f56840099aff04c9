package graph

import (
	"context"
	"crypto/sha1"
	"testing"

	"bookvault/pkg/meta"
	"bookvault/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func mockID(input string) types.CommitID {
	return types.CommitID(sha1.Sum([]byte(input)))
}

func setupGraph(t *testing.T, mutation bool) (*MetaGraph, *meta.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&meta.Ref{}, &meta.CommitModel{}, &meta.Mutation{}))
	require.NoError(t, db.Exec("DELETE FROM refs").Error)
	require.NoError(t, db.Exec("DELETE FROM commits").Error)
	require.NoError(t, db.Exec("DELETE FROM mutations").Error)

	repo := meta.NewRepository(meta.NewWithConn(db))
	return NewMetaGraph(repo, mutation), repo
}

func TestMetaGraph_ResolveAndCheckout(t *testing.T) {
	g, repo := setupGraph(t, false)
	ctx := context.Background()

	c1 := mockID("c1")
	require.NoError(t, repo.AddCommit(ctx, c1, nil))

	ok, err := g.Resolve(ctx, c1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Resolve(ctx, mockID("ghost"))
	require.NoError(t, err)
	assert.False(t, ok)

	// 干净仓库的检出是 NullID
	head, err := g.CheckoutID(ctx)
	require.NoError(t, err)
	assert.True(t, head.IsNull())

	require.NoError(t, repo.UpdateRef(ctx, "HEAD", c1, 0))
	head, err = g.CheckoutID(ctx)
	require.NoError(t, err)
	assert.Equal(t, c1, head)
}

func TestMetaGraph_InForeground(t *testing.T) {
	g, repo := setupGraph(t, true)
	ctx := context.Background()

	// old 被 amend 成 newer，newer 上又长出 child
	// sibling 与这条线无关
	old := mockID("old")
	newer := mockID("newer")
	child := mockID("child")
	sibling := mockID("sibling")

	require.NoError(t, repo.AddCommit(ctx, old, nil))
	require.NoError(t, repo.AddCommit(ctx, newer, nil))
	require.NoError(t, repo.AddCommit(ctx, child, []types.CommitID{newer}))
	require.NoError(t, repo.AddCommit(ctx, sibling, nil))
	require.NoError(t, repo.AddMutation(ctx, old, newer))

	for name, tc := range map[string]struct {
		candidate types.CommitID
		want      bool
	}{
		"self":              {old, true},
		"successor":         {newer, true},
		"successor's child": {child, true},
		"unrelated":         {sibling, false},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := g.InForeground(ctx, old, tc.candidate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMetaGraph_MutationFlag(t *testing.T) {
	g, _ := setupGraph(t, true)
	assert.True(t, g.MutationEnabled())

	g2, _ := setupGraph(t, false)
	assert.False(t, g2.MutationEnabled())
}
