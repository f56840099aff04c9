package meta

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookvault/pkg/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrRefNotFound      = errors.New("reference not found")
	ErrConcurrentUpdate = errors.New("concurrent update detected (CAS failed)")
	ErrCommitNotFound   = errors.New("commit not found in metadata")
)

// Repository 封装所有对 SQL 数据库的操作
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// -----------------------------------------------------------------------------
// 1. 引用管理 (HEAD / 当前检出)
// -----------------------------------------------------------------------------

// GetRef 获取指针的当前指向 (例如 "HEAD" -> "hash...")
func (r *Repository) GetRef(ctx context.Context, name string) (*Ref, error) {
	var ref Ref
	err := r.db.GetConn().WithContext(ctx).
		Where("name = ?", name).
		First(&ref).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRefNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateRef 原子更新引用 (CAS - Compare And Swap)
// oldVersion: 你之前读到的版本号。如果数据库里现在的版本号不等于这个，
// 说明有人抢先改了，更新失败。
func (r *Repository) UpdateRef(ctx context.Context, name string, newHash types.CommitID, oldVersion int64) error {
	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 场景 A: 第一次创建 (Create)
		if oldVersion == 0 {
			ref := Ref{
				Name:       name,
				CommitHash: newHash.Hex(),
				Version:    1,
			}
			if err := tx.Create(&ref).Error; err != nil {
				// 兼容性: 处理不同数据库 (PG 与 SQLite) 的唯一约束错误
				if errors.Is(err, gorm.ErrDuplicatedKey) ||
					strings.Contains(err.Error(), "UNIQUE constraint failed") {
					return ErrConcurrentUpdate
				}
				return fmt.Errorf("failed to create ref: %w", err)
			}
			return nil
		}

		// 场景 B: 更新现有引用 (Update with CAS)
		result := tx.Model(&Ref{}).
			Where("name = ? AND version = ?", name, oldVersion).
			Updates(map[string]any{
				"commit_hash": newHash.Hex(),
				"version":     gorm.Expr("version + 1"), // 版本号自增
				"updated_at":  time.Now(),
			})

		if result.Error != nil {
			return result.Error
		}

		// 关键检查：如果影响行数为 0，说明 version 不匹配（被人抢先改了）
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}

		return nil
	})
}

// -----------------------------------------------------------------------------
// 2. 提交图索引 (Commit Graph Index)
// -----------------------------------------------------------------------------

// AddCommit 登记一个提交节点 (幂等)
// Ordinal 在同一事务里取 max+1，保证本地序号单调递增
func (r *Repository) AddCommit(ctx context.Context, id types.CommitID, parents []types.CommitID) error {
	parentHashes := make([]string, 0, len(parents))
	for _, p := range parents {
		parentHashes = append(parentHashes, p.Hex())
	}
	parentsJSON, err := json.Marshal(parentHashes)
	if err != nil {
		return fmt.Errorf("failed to marshal parents: %w", err)
	}

	return r.db.GetConn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&CommitModel{}).Where("hash = ?", id.Hex()).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil // 已存在，幂等跳过
		}

		var maxOrdinal int64
		row := tx.Model(&CommitModel{}).Select("COALESCE(MAX(ordinal), 0)").Row()
		if err := row.Scan(&maxOrdinal); err != nil {
			return err
		}

		model := CommitModel{
			Hash:      id.Hex(),
			Ordinal:   maxOrdinal + 1,
			Parents:   datatypes.JSON(parentsJSON),
			CreatedAt: time.Now(),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).Create(&model).Error; err != nil {
			return fmt.Errorf("failed to index commit: %w", err)
		}
		return nil
	})
}

func (r *Repository) HasCommit(ctx context.Context, id types.CommitID) (bool, error) {
	var count int64
	err := r.db.GetConn().WithContext(ctx).
		Model(&CommitModel{}).
		Where("hash = ?", id.Hex()).
		Count(&count).Error
	return count > 0, err
}

// Ordinal 返回提交的本地修订序号
func (r *Repository) Ordinal(ctx context.Context, id types.CommitID) (int64, error) {
	var commit CommitModel
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", id.Hex()).
		First(&commit).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrCommitNotFound
	}
	if err != nil {
		return 0, err
	}
	return commit.Ordinal, nil
}

// Parents 返回提交的父节点列表
func (r *Repository) Parents(ctx context.Context, id types.CommitID) ([]types.CommitID, error) {
	var commit CommitModel
	err := r.db.GetConn().WithContext(ctx).
		Where("hash = ?", id.Hex()).
		First(&commit).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCommitNotFound
	}
	if err != nil {
		return nil, err
	}

	var parentHashes []string
	if len(commit.Parents) > 0 {
		if err := json.Unmarshal(commit.Parents, &parentHashes); err != nil {
			return nil, fmt.Errorf("corrupt parents column for %s: %w", id.Short(), err)
		}
	}

	parents := make([]types.CommitID, 0, len(parentHashes))
	for _, h := range parentHashes {
		p, err := types.ParseCommitID(h)
		if err != nil {
			return nil, err
		}
		parents = append(parents, p)
	}
	return parents, nil
}

// IsAncestor 判断 anc 是否为 desc 的祖先 (含 anc == desc)
// 从 desc 沿父边向上 BFS；利用 Ordinal 剪枝：
// 祖先的序号必然小于后代，序号更小的节点不可能再走到 anc
func (r *Repository) IsAncestor(ctx context.Context, anc, desc types.CommitID) (bool, error) {
	if anc == desc {
		return true, nil
	}

	ancOrdinal, err := r.Ordinal(ctx, anc)
	if err != nil {
		return false, err
	}

	seen := map[types.CommitID]bool{desc: true}
	queue := []types.CommitID{desc}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		parents, err := r.Parents(ctx, cur)
		if err != nil {
			if errors.Is(err, ErrCommitNotFound) {
				continue // 图里没有的节点当作断边
			}
			return false, err
		}
		for _, p := range parents {
			if p == anc {
				return true, nil
			}
			if seen[p] {
				continue
			}
			seen[p] = true

			ord, err := r.Ordinal(ctx, p)
			if err != nil {
				if errors.Is(err, ErrCommitNotFound) {
					continue
				}
				return false, err
			}
			if ord > ancOrdinal {
				queue = append(queue, p)
			}
		}
	}
	return false, nil
}

// -----------------------------------------------------------------------------
// 3. 变异记录 (Mutation / Obsolescence)
// -----------------------------------------------------------------------------

// AddMutation 记录一次改写：pred 被 succ 取代
func (r *Repository) AddMutation(ctx context.Context, pred, succ types.CommitID) error {
	m := Mutation{
		Predecessor: pred.Hex(),
		Successor:   succ.Hex(),
		CreatedAt:   time.Now(),
	}
	return r.db.GetConn().WithContext(ctx).Create(&m).Error
}

// Successors 返回直接后继 (一条边的距离)
func (r *Repository) Successors(ctx context.Context, id types.CommitID) ([]types.CommitID, error) {
	var rows []Mutation
	err := r.db.GetConn().WithContext(ctx).
		Where("predecessor = ?", id.Hex()).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	succs := make([]types.CommitID, 0, len(rows))
	for _, row := range rows {
		s, err := types.ParseCommitID(row.Successor)
		if err != nil {
			return nil, err
		}
		succs = append(succs, s)
	}
	return succs, nil
}
