package redis

import (
	"context"
	"net"
	"strings"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/trainstats/internal/constants"
)

// New creates a single-node client with the given options on top of the package defaults.
func New(opts ...Option) (*redis.Client, error) {
	opt := &redis.Options{
		Dialer: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{
				Timeout: constants.RedisDialTimeout,
			}

			return dialer.DialContext(ctx, network, addr)
		},
		MaxRetries:   constants.RedisClientMaxRetries,
		DialTimeout:  constants.RedisDialTimeout,
		ReadTimeout:  constants.RedisClientReadTimeout,
		WriteTimeout: constants.RedisClientWriteTimeout,
		PoolSize:     constants.RedisClientPoolSize,
		MinIdleConns: constants.RedisClientMinIdleConns,
		PoolTimeout:  constants.RedisClientPoolTimeout,
	}

	ApplyOptions(opt, opts...)

	if strings.TrimSpace(opt.Addr) == "" {
		return nil, ewrap.New("redis address is empty")
	}

	return redis.NewClient(opt), nil
}

// NewCluster creates a cluster client. Each job is a single list key and
// therefore lives on a single slot.
func NewCluster(opts ...ClusterOption) (*redis.ClusterClient, error) {
	opt := &redis.ClusterOptions{
		MaxRetries:   constants.RedisClientMaxRetries,
		ReadTimeout:  constants.RedisClientReadTimeout,
		WriteTimeout: constants.RedisClientWriteTimeout,
		PoolSize:     constants.RedisClientPoolSize,
		MinIdleConns: constants.RedisClientMinIdleConns,
		PoolTimeout:  constants.RedisClientPoolTimeout,
	}

	ApplyClusterOptions(opt, opts...)

	if len(opt.Addrs) == 0 {
		return nil, ewrap.New("redis cluster addresses are empty")
	}

	return redis.NewClusterClient(opt), nil
}
