package graph

import (
	"context"
	"errors"

	"bookvault/pkg/meta"
	"bookvault/pkg/types"
)

// headRefName 是当前检出在 Ref 表里的键
const headRefName = "HEAD"

// MetaGraph 把 meta.Repository 适配成 Graph
type MetaGraph struct {
	repo     *meta.Repository
	mutation bool
}

func NewMetaGraph(repo *meta.Repository, mutationEnabled bool) *MetaGraph {
	return &MetaGraph{repo: repo, mutation: mutationEnabled}
}

func (g *MetaGraph) Resolve(ctx context.Context, id types.CommitID) (bool, error) {
	return g.repo.HasCommit(ctx, id)
}

func (g *MetaGraph) IsDescendant(ctx context.Context, anc, desc types.CommitID) (bool, error) {
	return g.repo.IsAncestor(ctx, anc, desc)
}

// InForeground 先沿变异边求 base 的后继闭包，
// candidate 在闭包里、或者是闭包任一成员的后代，就算在前台。
func (g *MetaGraph) InForeground(ctx context.Context, base, candidate types.CommitID) (bool, error) {
	closure := []types.CommitID{base}
	seen := map[types.CommitID]bool{base: true}

	for i := 0; i < len(closure); i++ {
		if closure[i] == candidate {
			return true, nil
		}
		succs, err := g.repo.Successors(ctx, closure[i])
		if err != nil {
			return false, err
		}
		for _, s := range succs {
			if !seen[s] {
				seen[s] = true
				closure = append(closure, s)
			}
		}
	}

	for _, member := range closure {
		ok, err := g.repo.IsAncestor(ctx, member, candidate)
		if err != nil {
			if errors.Is(err, meta.ErrCommitNotFound) {
				continue
			}
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (g *MetaGraph) MutationEnabled() bool { return g.mutation }

func (g *MetaGraph) CheckoutID(ctx context.Context) (types.CommitID, error) {
	ref, err := g.repo.GetRef(ctx, headRefName)
	if errors.Is(err, meta.ErrRefNotFound) {
		return types.NullID, nil // 干净仓库
	}
	if err != nil {
		return types.NullID, err
	}
	return types.ParseCommitID(ref.CommitHash)
}

func (g *MetaGraph) RevOrder(ctx context.Context, id types.CommitID) (int64, error) {
	return g.repo.Ordinal(ctx, id)
}

// Refresh SQL 实现没有进程内缓存，每次查询都是最新视图
func (g *MetaGraph) Refresh(ctx context.Context) error { return nil }
