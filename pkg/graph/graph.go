package graph

import (
	"context"

	"bookvault/pkg/types"
)

// Graph 是书签核心对提交图的全部依赖
// 具体实现见 MetaGraph (SQL 索引)；测试里用内存假图。
type Graph interface {
	// Resolve 检查提交是否存在于本地图中
	Resolve(ctx context.Context, id types.CommitID) (bool, error)

	// IsDescendant 判断 desc 是否为 anc 的后代 (含相等)
	IsDescendant(ctx context.Context, anc, desc types.CommitID) (bool, error)

	// InForeground 判断 candidate 是否在 base 的“前台”里：
	// 顺着变异后继边 (rebase/amend/fold) 的闭包，再加上闭包成员的后代
	InForeground(ctx context.Context, base, candidate types.CommitID) (bool, error)

	// MutationEnabled 选择 InForeground 与 IsDescendant 之中的哪一个
	// 作为前进判定的依据。二者只会用其一，绝不取并集。
	MutationEnabled() bool

	// CheckoutID 当前检出的提交；干净仓库返回 NullID
	CheckoutID(ctx context.Context) (types.CommitID, error)

	// RevOrder 本地修订序号，祖先的序号小于后代
	RevOrder(ctx context.Context, id types.CommitID) (int64, error)

	// Refresh 丢弃实现内部可能有的缓存视图
	// (书签文件里出现未知节点时会先 Refresh 再重试一次)
	Refresh(ctx context.Context) error
}
