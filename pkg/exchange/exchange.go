// Package exchange hands worker statistics to the coordinator through Redis.
//
// Workers publish encoded snapshots onto a per-job list; the coordinator
// drains the list and merges what it finds. A snapshot that cannot be
// decoded or that the coordinator refuses is moved to the job's rejected
// list instead of being dropped. The exchange is a hand-off, not storage:
// lists expire after a TTL.
package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/redis/go-redis/v9"

	"github.com/hyp3rd/trainstats/internal/constants"
	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/internal/sentinel"
	"github.com/hyp3rd/trainstats/pkg/stats"
)

const (
	rejectedSuffix   = ":rejected"
	processingSuffix = ":processing"
)

// Sink receives each drained set. An error rejects the set.
type Sink func(set *stats.Set) error

// Exchange publishes and drains statistics snapshots.
type Exchange struct {
	rdb      redis.Cmdable
	registry *stats.Registry
	ser      serializer.ISerializer
	prefix   string
	ttl      time.Duration
}

// New returns an exchange on rdb that restores snapshots with registry.
// Snapshots are encoded with msgpack unless WithSerializer says otherwise.
func New(rdb redis.Cmdable, registry *stats.Registry, opts ...Option) (*Exchange, error) {
	if isNilClient(rdb) {
		return nil, sentinel.ErrNilClient
	}

	if registry == nil {
		return nil, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "registry")
	}

	ex := &Exchange{
		rdb:      rdb,
		registry: registry,
		prefix:   constants.RedisKeyPrefix,
		ttl:      constants.RedisExchangeTTL,
	}

	for _, opt := range opts {
		opt(ex)
	}

	if ex.ser == nil {
		ser, err := serializer.New(constants.ExchangeCodec)
		if err != nil {
			return nil, err
		}

		ex.ser = ser
	}

	return ex, nil
}

// Key returns the list holding the pending snapshots of job.
func (ex *Exchange) Key(job string) string { return ex.prefix + job }

// Publish pushes the snapshot of set onto the job's list and refreshes its TTL.
func (ex *Exchange) Publish(ctx context.Context, job string, set *stats.Set) error {
	if job == "" {
		return ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "job")
	}

	data, err := stats.Encode(ex.ser, set)
	if err != nil {
		return err
	}

	key := ex.Key(job)

	pipe := ex.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)

	if ex.ttl > 0 {
		pipe.Expire(ctx, key, ex.ttl)
	}

	_, err = pipe.Exec(ctx)
	if err != nil {
		return ewrap.Wrapf(err, "failed to publish %s to %s", set.Name(), key)
	}

	return nil
}

// Pending returns how many snapshots wait on the job's list.
func (ex *Exchange) Pending(ctx context.Context, job string) (int64, error) {
	return ex.length(ctx, ex.Key(job))
}

// Rejected returns how many snapshots of job were rejected.
func (ex *Exchange) Rejected(ctx context.Context, job string) (int64, error) {
	return ex.length(ctx, ex.Key(job)+rejectedSuffix)
}

// Drain hands the job's snapshots, in publish order, to sink until the list
// is empty and returns how many sets sink accepted. Rejections are not
// errors; Redis failures and cancellation are.
//
// Each snapshot is moved to the job's processing list while it is handled and
// removed once accepted or rejected, so a Redis failure in between leaves it
// there. Drain first puts such leftovers back at the head of the job's list;
// a leftover whose removal failed after sink accepted it is delivered again.
// Only one coordinator may drain a job at a time.
func (ex *Exchange) Drain(ctx context.Context, job string, sink Sink) (int, error) {
	if job == "" {
		return 0, ewrap.Wrap(sentinel.ErrParamCannotBeEmpty, "job")
	}

	key := ex.Key(job)
	processing := key + processingSuffix

	err := ctx.Err()
	if err != nil {
		return 0, ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, err.Error())
	}

	err = ex.requeue(ctx, key, processing)
	if err != nil {
		return 0, err
	}

	var (
		accepted int
		data     []byte
		set      *stats.Set
	)

	for {
		err = ctx.Err()
		if err != nil {
			return accepted, ewrap.Wrap(sentinel.ErrTimeoutOrCanceled, err.Error())
		}

		data, err = ex.rdb.LMove(ctx, key, processing, "LEFT", "RIGHT").Bytes()
		if errors.Is(err, redis.Nil) {
			return accepted, nil
		}

		if err != nil {
			return accepted, ewrap.Wrapf(err, "failed to move from %s", key)
		}

		set, err = ex.registry.Decode(ex.ser, data)
		if err == nil {
			err = sink(set)
		}

		if err != nil {
			err = ex.reject(ctx, key, processing, data)
			if err != nil {
				return accepted, err
			}

			continue
		}

		accepted++

		err = ex.rdb.LRem(ctx, processing, 1, data).Err()
		if err != nil {
			return accepted, ewrap.Wrapf(err, "failed to acknowledge snapshot in %s", processing)
		}
	}
}

// InFlight returns how many snapshots of job were left mid-drain.
func (ex *Exchange) InFlight(ctx context.Context, job string) (int64, error) {
	return ex.length(ctx, ex.Key(job)+processingSuffix)
}

// requeue moves leftovers of an interrupted drain back to the head of key, keeping their order.
func (ex *Exchange) requeue(ctx context.Context, key, processing string) error {
	for {
		err := ex.rdb.LMove(ctx, processing, key, "RIGHT", "LEFT").Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}

		if err != nil {
			return ewrap.Wrapf(err, "failed to requeue %s", processing)
		}
	}
}

func (ex *Exchange) reject(ctx context.Context, key, processing string, data []byte) error {
	rejected := key + rejectedSuffix

	pipe := ex.rdb.TxPipeline()
	pipe.RPush(ctx, rejected, data)
	pipe.LRem(ctx, processing, 1, data)

	if ex.ttl > 0 {
		pipe.Expire(ctx, rejected, ex.ttl)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return ewrap.Wrapf(err, "failed to move snapshot to %s", rejected)
	}

	return nil
}

func (ex *Exchange) length(ctx context.Context, key string) (int64, error) {
	n, err := ex.rdb.LLen(ctx, key).Result()
	if err != nil {
		return 0, ewrap.Wrapf(err, "failed to read length of %s", key)
	}

	return n, nil
}

// isNilClient reports whether rdb is nil, including a nil go-redis client held in the interface.
func isNilClient(rdb redis.Cmdable) bool {
	switch client := rdb.(type) {
	case nil:
		return true
	case *redis.Client:
		return client == nil
	case *redis.ClusterClient:
		return client == nil
	case *redis.Ring:
		return client == nil
	default:
		return false
	}
}
