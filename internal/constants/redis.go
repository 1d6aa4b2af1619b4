package constants

import "time"

const (
	// RedisKeyPrefix prefixes the list each job's snapshots are pushed to.
	RedisKeyPrefix = "trainstats:job:"
	// RedisExchangeTTL bounds how long an undrained hand-off list survives.
	RedisExchangeTTL = 24 * time.Hour
	// RedisDialTimeout is the timeout for the Redis dialer.
	RedisDialTimeout = 10 * time.Second
	// RedisClientMaxRetries is the maximum number of retries for the Redis client.
	RedisClientMaxRetries = 10
	// RedisClientReadTimeout is the read timeout for the Redis client.
	RedisClientReadTimeout = 30 * time.Second
	// RedisClientWriteTimeout is the write timeout for the Redis client.
	RedisClientWriteTimeout = 30 * time.Second
	// RedisClientPoolTimeout is the pool timeout for the Redis client.
	RedisClientPoolTimeout = 30 * time.Second
	// RedisClientPoolSize is the pool size for the Redis client.
	RedisClientPoolSize = 20
	// RedisClientMinIdleConns is the minimum number of idle connections for the Redis client.
	RedisClientMinIdleConns = 10
)
