package meta

import (
	"context"
	"crypto/sha1"
	"testing"

	"bookvault/pkg/types"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// -----------------------------------------------------------------------------
// 通用辅助函数 (Helpers)
// 注意：文件名必须以 _test.go 结尾，否则会被编译进生产代码！
// -----------------------------------------------------------------------------

// mockID 生成确定性的测试用 CommitID
func mockID(input string) types.CommitID {
	return types.CommitID(sha1.Sum([]byte(input)))
}

// setupRepo 搭建基于内存 SQLite 的测试环境
func setupRepo(t *testing.T) *Repository {
	t.Helper()

	// "file::memory:?cache=shared" 确保连接池共享同一个内存实例
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 测试时静默日志
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&Ref{}, &CommitModel{}, &Mutation{})
	require.NoError(t, err)

	// 每个测试用例清空表，共享内存库会带着上一个用例的数据
	require.NoError(t, db.Exec("DELETE FROM refs").Error)
	require.NoError(t, db.Exec("DELETE FROM commits").Error)
	require.NoError(t, db.Exec("DELETE FROM mutations").Error)

	return NewRepository(NewWithConn(db))
}

// mustAddCommit 登记提交，失败直接终止测试
func mustAddCommit(t *testing.T, repo *Repository, id types.CommitID, parents ...types.CommitID) {
	t.Helper()
	require.NoError(t, repo.AddCommit(context.Background(), id, parents))
}

// buildLinearChain 建 c0 <- c1 <- ... <- cN 的链，返回各节点
func buildLinearChain(t *testing.T, repo *Repository, n int) []types.CommitID {
	t.Helper()
	ids := make([]types.CommitID, n)
	for i := 0; i < n; i++ {
		ids[i] = mockID(string(rune('a' + i)))
		if i == 0 {
			mustAddCommit(t, repo, ids[i])
		} else {
			mustAddCommit(t, repo, ids[i], ids[i-1])
		}
	}
	return ids
}
