// pkg/app/app.go
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"bookvault/pkg/bookmarks"
	"bookvault/pkg/config"
	"bookvault/pkg/graph"
	"bookvault/pkg/journal"
	"bookvault/pkg/meta"
	"bookvault/pkg/remotenames"
	"bookvault/pkg/storage"
	"bookvault/pkg/storage/cache"
	"bookvault/pkg/storage/disk"
	"bookvault/pkg/storage/s3"
	"bookvault/pkg/transaction"

	"github.com/spf13/viper"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有“单例”服务
type App struct {
	Store       storage.Store
	Meta        *meta.Repository
	Graph       graph.Graph
	Bookmarks   *bookmarks.Store
	RemoteNames *remotenames.Cache
	Accessed    *remotenames.AccessedSet
	Journal     *journal.FileJournal
	Reporter    *bookmarks.Reporter
	RepoPath    string
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	// 1. 获取仓库根路径 (Single Source of Truth)
	storePath := viper.GetString("storage.path")
	if storePath == "" {
		return nil, fmt.Errorf("storage path not set")
	}
	repoPath := filepath.Dir(storePath)

	// 2. 初始化存储层 (Dependency Injection)
	store, err := initStore(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	// 3. 元数据层: 提交图索引 + HEAD 指针
	db, err := meta.NewDB(ctx, meta.Config{
		Driver:   viper.GetString("database.driver"),
		Path:     filepath.Join(repoPath, "meta.db"),
		Host:     viper.GetString("database.host"),
		Port:     viper.GetInt("database.port"),
		User:     viper.GetString("database.user"),
		Password: viper.GetString("database.password"),
		DBName:   viper.GetString("database.dbname"),
		SSLMode:  viper.GetString("database.sslmode"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init metadata db: %w", err)
	}
	repo := meta.NewRepository(db)
	g := graph.NewMetaGraph(repo, viper.GetBool("mutation.enabled"))

	// 4. 书签层
	rep := bookmarks.DefaultReporter()
	bms, err := bookmarks.Load(ctx, store, g, rep)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmarks: %w", err)
	}

	jnl := journal.NewFileJournal(store, "journal")
	rns := remotenames.NewCache(store, g, jnl, rep, viper.GetBool("remotenames.alias_default"))
	accessed := remotenames.NewAccessedSet(store, g, rep)

	return &App{
		Store:       store,
		Meta:        repo,
		Graph:       g,
		Bookmarks:   bms,
		RemoteNames: rns,
		Accessed:    accessed,
		Journal:     jnl,
		Reporter:    rep,
		RepoPath:    repoPath,
	}, nil
}

// initStore 按配置选择存储后端，可选套一层 Redis 缓存
func initStore(ctx context.Context, repoPath string) (storage.Store, error) {
	var backend storage.Store
	var err error

	switch viper.GetString("storage.type") {
	case "", "disk":
		path := viper.GetString("storage.path")
		if path == "" {
			path = filepath.Join(repoPath, "store")
		}
		backend, err = disk.NewAdapter(path)
	case "s3":
		bucket := viper.GetString("storage.s3.bucket")
		if bucket == "" {
			return nil, fmt.Errorf("s3 bucket is required")
		}
		backend, err = s3.NewAdapter(ctx, s3.Config{
			Endpoint:        viper.GetString("storage.s3.endpoint"),
			Region:          viper.GetString("storage.s3.region"),
			Bucket:          bucket,
			Prefix:          viper.GetString("storage.s3.prefix"),
			AccessKeyID:     viper.GetString("storage.s3.access_key_id"),
			SecretAccessKey: viper.GetString("storage.s3.secret_access_key"),
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", viper.GetString("storage.type"))
	}
	if err != nil {
		return nil, err
	}

	// Redis 缓存是装饰器，配了才开；连不上时直接穿透到后端
	if redisURL := viper.GetString("storage.cache.redis_url"); redisURL != "" {
		return cache.NewCachedStore(backend, cache.Config{RedisURL: redisURL})
	}
	return backend, nil
}

// OpenTransaction 开一个书签写事务
func (a *App) OpenTransaction(ctx context.Context) (*transaction.Tx, error) {
	return transaction.Open(ctx, a.Store, "bookmarks")
}

// PathAliases 返回配置里的远端别名表
func (a *App) PathAliases() map[string]string {
	return config.Paths()
}
