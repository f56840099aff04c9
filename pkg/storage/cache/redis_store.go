package cache

import (
	"context"
	"fmt"
	"time"

	"bookvault/pkg/storage"

	"github.com/redis/go-redis/v9"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 缓存层
// 对 S3 后端尤其有用：bookmarks/remotenames 体积小、读多写少，
// 缓存命中时可以省掉一次对象存储的网络往返。
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client // Redis 客户端
	ttl     time.Duration // 缓存过期时间 (例如 24h)
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
}

func NewCachedStore(backend storage.Store, cfg Config) (*CachedStore, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ttl:     cfg.TTL,
	}, nil
}

// cacheKey 生成 Redis Key，添加前缀防止冲突
func (s *CachedStore) cacheKey(name string) string {
	return "bv:file:" + name
}

// Read 优先查 Redis，未命中再穿透到底层存储并回填
func (s *CachedStore) Read(ctx context.Context, name string) ([]byte, error) {
	key := s.cacheKey(name)

	val, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		// Cache Hit!
		return val, nil
	}
	if err != redis.Nil {
		// 架构决策：缓存故障降级 (Cache Failure Fallback)
		// Redis 挂了不应该让整个程序崩溃，退化为无缓存模式直接查底层。
		fmt.Printf("WARN: Redis error: %v\n", err)
	}

	data, err := s.backend.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	// 缓存回填 (Cache Fill)，错误可以忽略
	s.client.Set(ctx, key, data, s.ttl)
	return data, nil
}

// Write 先写底层，成功后再刷新缓存 (write-through)
// 顺序很重要：底层失败时缓存绝不能先于持久层变新
func (s *CachedStore) Write(ctx context.Context, name string, data []byte) error {
	if err := s.backend.Write(ctx, name, data); err != nil {
		return err
	}
	s.client.Set(ctx, s.cacheKey(name), data, s.ttl)
	return nil
}

func (s *CachedStore) Remove(ctx context.Context, name string) error {
	if err := s.backend.Remove(ctx, name); err != nil {
		return err
	}
	s.client.Del(ctx, s.cacheKey(name))
	return nil
}

// Lock 透传 - 互斥必须由底层保证，缓存层不参与
func (s *CachedStore) Lock(ctx context.Context, name string) (storage.UnlockFunc, error) {
	return s.backend.Lock(ctx, name)
}
