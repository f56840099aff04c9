package meta

import (
	"time"

	"gorm.io/datatypes"
)

// Ref 存储可变指针 (目前只有 "HEAD"，即当前检出)
type Ref struct {
	// Name 是主键，例如 "HEAD"
	Name string `gorm:"primaryKey;type:varchar(255)"`

	// CommitHash 指向当前的 Commit ID (40 位十六进制)
	CommitHash string `gorm:"type:char(40);not null"`

	// Version 用于乐观锁并发控制 (CAS)
	// 每次更新时 +1，防止并发覆盖
	Version int64 `gorm:"default:1"`

	UpdatedAt time.Time
}

// CommitModel 是提交图节点在关系型数据库中的投影 (索引)
// 书签核心不创建提交，只消费这张索引：存在性、父子关系、本地序号
type CommitModel struct {
	// Hash 是主键
	Hash string `gorm:"primaryKey;type:char(40)"`

	// Ordinal 是本地单调递增的修订序号
	// 提交越早入库序号越小，用于 advance/diverge 判定时的排序
	Ordinal int64 `gorm:"uniqueIndex;not null"`

	// Parents: 使用 JSON 存储父节点列表 (支持 Merge Commit 多父节点)
	// 这是一个数组 ["hash1", "hash2"]
	Parents datatypes.JSON

	CreatedAt time.Time
}

// TableName 强制指定表名
func (CommitModel) TableName() string {
	return "commits"
}

// Mutation 记录一条变异/废弃边：Predecessor 被改写成了 Successor
// (rebase / amend / fold 之后，旧提交的“前台后继”就是顺着这些边走出来的)
type Mutation struct {
	ID          uint   `gorm:"primaryKey"`
	Predecessor string `gorm:"index;type:char(40);not null"`
	Successor   string `gorm:"type:char(40);not null"`

	CreatedAt time.Time
}

func (Mutation) TableName() string {
	return "mutations"
}
