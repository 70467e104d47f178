package host

import (
	"context"
	"strings"
	"time"

	"github.com/fixkme/ptimer/config"
	"github.com/fixkme/ptimer/errs"
	"github.com/redis/go-redis/v9"
)

const (
	RedisModeSingle   = "single"
	RedisModeSentinel = "sentinel"
	RedisModeCluster  = "cluster"
)

func splitAddrs(s string) []string {
	var addrs []string
	for _, addr := range strings.Split(s, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

// NewRedisClient 按部署模式创建客户端, 不发起连接
func NewRedisClient(conf *config.RelayConfig) (redis.UniversalClient, error) {
	if conf == nil {
		return nil, errs.Argument.Print("redis config is nil")
	}
	addrs := splitAddrs(conf.RedisAddr)
	if len(addrs) < 1 {
		return nil, errs.Argument.Printf("redis addr invalid (%s)", conf.RedisAddr)
	}
	switch conf.RedisMode {
	case RedisModeCluster:
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: conf.RedisPassword,
		}), nil
	case RedisModeSentinel:
		if conf.RedisMasterName == "" {
			return nil, errs.Argument.Print("sentinel mode needs redis_master_name")
		}
		return redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    conf.RedisMasterName,
			SentinelAddrs: addrs,
			Password:      conf.RedisPassword,
			DB:            conf.RedisDB,
		}), nil
	default: // 默认single模式
		return redis.NewClient(&redis.Options{
			Addr:     addrs[0],
			Password: conf.RedisPassword,
			DB:       conf.RedisDB,
		}), nil
	}
}

// DialRedis 创建客户端并ping一次
func DialRedis(ctx context.Context, conf *config.RelayConfig) (redis.UniversalClient, error) {
	client, err := NewRedisClient(conf)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err = client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}
