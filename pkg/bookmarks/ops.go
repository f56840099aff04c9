package bookmarks

import (
	"context"
	"fmt"

	"bookvault/pkg/transaction"
	"bookvault/pkg/types"
)

// Delete 删除一批书签，整批原子生效
// 任意一个名字不存在都直接失败；删掉活动书签会同时取消激活。
func (s *Store) Delete(ctx context.Context, tx *transaction.Tx, names []string) error {
	var changes []Change
	for _, name := range names {
		if _, ok := s.entries[name]; !ok {
			return fmt.Errorf("%w: bookmark '%s' does not exist", ErrNotFound, name)
		}
		if name == s.active {
			if err := s.Deactivate(ctx); err != nil {
				return err
			}
		}
		changes = append(changes, Change{Name: name})
	}
	return s.ApplyChanges(ctx, tx, changes)
}

// Rename 把 old 改名为 newName
//
// force 允许覆盖已存在的 newName；inactive 阻止激活新名字。
// 一个批次完成三件事：删冲突的发散名、写新名、删旧名。
func (s *Store) Rename(ctx context.Context, tx *transaction.Tx, old, newName string, force, inactive bool) error {
	mark, err := CheckFormat(newName)
	if err != nil {
		return err
	}
	target, ok := s.entries[old]
	if !ok {
		return fmt.Errorf("%w: bookmark '%s' does not exist", ErrNotFound, old)
	}

	conflicts, err := s.CheckConflict(ctx, mark, force, nil)
	if err != nil {
		return err
	}

	var changes []Change
	for _, bm := range conflicts {
		changes = append(changes, Change{Name: bm})
	}
	targetCopy := target
	changes = append(changes, Change{Name: mark, Target: &targetCopy}, Change{Name: old})

	if err := s.ApplyChanges(ctx, tx, changes); err != nil {
		return err
	}
	if s.active == old && !inactive {
		return s.Activate(ctx, mark)
	}
	if s.active == old {
		return s.Deactivate(ctx)
	}
	return nil
}

// Add 添加一批书签
//
// rev 为 nil 时目标是当前检出。只有在没给 rev、不带 inactive、
// 且第一个名字最终指向检出时，才激活第一个名字。
func (s *Store) Add(ctx context.Context, tx *transaction.Tx, names []string, rev *types.CommitID, force, inactive bool) error {
	cur, err := s.graph.CheckoutID(ctx)
	if err != nil {
		return err
	}

	newact := ""
	tgt := cur
	var changes []Change
	for _, name := range names {
		mark, err := CheckFormat(name)
		if err != nil {
			return err
		}
		if newact == "" {
			newact = mark
		}
		if inactive && mark == s.active {
			// "bv bookmark -i <active>" 的含义就是取消激活
			return s.Deactivate(ctx)
		}

		tgt = cur
		if rev != nil {
			tgt = *rev
			known, err := s.graph.Resolve(ctx, tgt)
			if err != nil {
				return err
			}
			if !known {
				return fmt.Errorf("unknown revision %s", tgt.Short())
			}
		}

		tgtCopy := tgt
		conflicts, err := s.CheckConflict(ctx, mark, force, &tgtCopy)
		if err != nil {
			return err
		}
		for _, bm := range conflicts {
			changes = append(changes, Change{Name: bm})
		}
		changes = append(changes, Change{Name: mark, Target: &tgtCopy})
	}

	if err := s.ApplyChanges(ctx, tx, changes); err != nil {
		return err
	}

	if !inactive && rev == nil && s.entries[newact] == cur {
		return s.Activate(ctx, newact)
	}
	if tgt != cur && newact == s.active {
		return s.Deactivate(ctx)
	}
	return nil
}

// Update 让活动书签跟上一次新提交
//
// 活动书签指向 parents 之一且挪到 node 是前进移动时，书签跟过去，
// 同时删掉被吸收的发散同名书签。所有变更在 trFunc 开出的事务里一批生效。
// 返回是否真的动了。
func (s *Store) Update(ctx context.Context, trFunc func() (*transaction.Tx, error), parents []types.CommitID, node types.CommitID) (bool, error) {
	if s.active == "" {
		return false, nil
	}

	deleteFrom := parents
	var changes []Change

	if containsID(parents, s.entries[s.active]) {
		divs := s.divergentTargets(s.active)
		deleteFrom = nil
		for _, d := range divs {
			anc, err := s.graph.IsDescendant(ctx, d, node)
			if err != nil {
				return false, err
			}
			if anc || d == node {
				deleteFrom = append(deleteFrom, d)
			}
		}

		ok, err := ValidDest(ctx, s.graph, s.entries[s.active], node)
		if err != nil {
			return false, err
		}
		if ok {
			nodeCopy := node
			changes = append(changes, Change{Name: s.active, Target: &nodeCopy})
		}
	}

	for _, bm := range s.DivergentToDelete(deleteFrom, s.active) {
		changes = append(changes, Change{Name: bm})
	}

	if len(changes) == 0 {
		return false, nil
	}

	tx, err := trFunc()
	if err != nil {
		return false, err
	}
	if err := s.ApplyChanges(ctx, tx, changes); err != nil {
		tx.Abort(ctx)
		return false, err
	}
	if err := tx.Close(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// PushBookmark 实现推送协议那侧的 compare-and-swap 移动：
// 只有本地观察到的旧值等于 old (或已经等于 new) 时才执行。
// new 为空串表示删除。返回是否成功 (false 不是错误，是拒绝)。
func (s *Store) PushBookmark(ctx context.Context, trFunc func() (*transaction.Tx, error), key, old, new string) (bool, error) {
	existing := ""
	if id, ok := s.entries[key]; ok {
		existing = id.Hex()
	}
	if existing != old && existing != new {
		return false, nil
	}

	var changes []Change
	if new == "" {
		if existing == "" {
			return false, nil
		}
		changes = []Change{{Name: key}}
	} else {
		id, err := types.ParseCommitID(new)
		if err != nil {
			return false, nil
		}
		known, err := s.graph.Resolve(ctx, id)
		if err != nil {
			return false, err
		}
		if !known {
			return false, nil
		}
		changes = []Change{{Name: key, Target: &id}}
	}

	tx, err := trFunc()
	if err != nil {
		return false, err
	}
	if err := s.ApplyChanges(ctx, tx, changes); err != nil {
		tx.Abort(ctx)
		return false, err
	}
	if err := tx.Close(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// List 枚举可对外公开的书签：
// 隐藏本地发散名 ("@" 在名字中间)，以及目标在图里不存在的条目
func (s *Store) List(ctx context.Context) (map[string]types.CommitID, error) {
	out := make(map[string]types.CommitID)
	for name, id := range s.entries {
		if isLocalDivergent(name) {
			continue
		}
		known, err := s.graph.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		if known {
			out[name] = id
		}
	}
	return out, nil
}

// isLocalDivergent: "@" 出现在名字中间 (不含结尾) 才算本地发散名
func isLocalDivergent(name string) bool {
	for i, r := range name {
		if r == '@' && i != len(name)-1 {
			return true
		}
	}
	return false
}

// HeadsForActive 返回与活动书签同逻辑名的全部目标
// 没有活动书签时报错 (调用它就没有意义)。
func (s *Store) HeadsForActive() ([]types.CommitID, error) {
	if s.active == "" {
		return nil, ErrNoActive
	}
	base := logicalName(s.active)
	var heads []types.CommitID
	for _, mark := range s.Names() {
		if logicalName(mark) == base {
			heads = append(heads, s.entries[mark])
		}
	}
	return heads, nil
}
