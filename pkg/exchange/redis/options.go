// Package redis builds the go-redis clients the exchange publishes to and drains from.
// Single-node and cluster deployments are both supported through functional options
// applied to redis.Options and redis.ClusterOptions.
package redis

import (
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// Option is a function type that can be used to configure a single-node client.
type Option func(*redis.Options)

// ApplyOptions applies the given options to the given redis.Options.
func ApplyOptions(opt *redis.Options, options ...Option) {
	for _, option := range options {
		option(opt)
	}
}

// WithAddr sets the `Addr` field of the `redis.Options` struct.
func WithAddr(addr string) Option {
	return func(opt *redis.Options) {
		opt.Addr = addr
	}
}

// WithUsername sets the `Username` field of the `redis.Options` struct.
func WithUsername(username string) Option {
	return func(opt *redis.Options) {
		opt.Username = username
	}
}

// WithPassword sets the `Password` field of the `redis.Options` struct.
func WithPassword(password string) Option {
	return func(opt *redis.Options) {
		opt.Password = password
	}
}

// WithDB sets the `DB` field of the `redis.Options` struct.
func WithDB(db int) Option {
	return func(opt *redis.Options) {
		opt.DB = db
	}
}

// WithDialTimeout sets the `DialTimeout` field of the `redis.Options` struct.
func WithDialTimeout(dialTimeout time.Duration) Option {
	return func(opt *redis.Options) {
		opt.DialTimeout = dialTimeout
	}
}

// WithTLSConfig sets the `TLSConfig` field of the `redis.Options` struct.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(opt *redis.Options) {
		opt.TLSConfig = tlsConfig
	}
}

// WithPoolSize sets the `PoolSize` field of the `redis.Options` struct.
func WithPoolSize(poolSize int) Option {
	return func(opt *redis.Options) {
		opt.PoolSize = poolSize
	}
}

// ClusterOption configures a cluster client.
type ClusterOption func(*redis.ClusterOptions)

// ApplyClusterOptions applies the given options to the given redis.ClusterOptions.
func ApplyClusterOptions(opt *redis.ClusterOptions, options ...ClusterOption) {
	for _, option := range options {
		option(opt)
	}
}

// WithClusterAddrs sets the seed nodes of the cluster.
func WithClusterAddrs(addrs ...string) ClusterOption {
	return func(opt *redis.ClusterOptions) {
		opt.Addrs = append([]string(nil), addrs...)
	}
}

// WithClusterPassword sets the cluster password.
func WithClusterPassword(password string) ClusterOption {
	return func(opt *redis.ClusterOptions) {
		opt.Password = password
	}
}

// WithClusterTLSConfig sets the cluster TLS configuration.
func WithClusterTLSConfig(tlsConfig *tls.Config) ClusterOption {
	return func(opt *redis.ClusterOptions) {
		opt.TLSConfig = tlsConfig
	}
}
