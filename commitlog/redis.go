package commitlog

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	sop "github.com/SharedCode/sop"
)

// redisHandle is the stream entry ID returned by XADD.
type redisHandle string

// RedisCommitLog is a CommitLog backend over a Redis stream: Append is an
// XADD, Flush is a WAIT for the configured number of replicas to
// acknowledge (so "flushed" means "replicated", the closest Redis analogue
// to an fsync), and Replay is an XRANGE over the whole stream. With
// WaitReplicas <= 0, Flush returns nil without issuing a WAIT.
type RedisCommitLog struct {
	rdb        *redis.Client
	stream     string
	waitReplicas int
	waitTimeout  time.Duration
}

// RedisCommitLogOptions configures a RedisCommitLog.
type RedisCommitLogOptions struct {
	Addr         string
	Password     string
	DB           int
	Stream       string
	WaitReplicas int
	WaitTimeout  time.Duration
}

// NewRedisCommitLog constructs a RedisCommitLog from options.
func NewRedisCommitLog(opts RedisCommitLogOptions) *RedisCommitLog {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 2 * time.Second
	}
	return &RedisCommitLog{rdb: rdb, stream: opts.Stream, waitReplicas: opts.WaitReplicas, waitTimeout: opts.WaitTimeout}
}

func (r *RedisCommitLog) Append(ctx context.Context, cid sop.UUID, payload []byte) (Handle, error) {
	var handle Handle
	err := sop.Retry(ctx, func(ctx context.Context) error {
		id, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: r.stream,
			Values: map[string]any{
				"cid":     cid.String(),
				"payload": payload,
			},
		}).Result()
		if err != nil {
			if sop.ShouldRetry(err) {
				return sop.RetryableError(err)
			}
			return err
		}
		handle = redisHandle(id)
		return nil
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("commitlog(redis): xadd cid=%s: %w", cid, err)
	}
	return handle, nil
}

func (r *RedisCommitLog) Flush(ctx context.Context, handle Handle) error {
	if r.waitReplicas <= 0 {
		return nil
	}
	err := sop.Retry(ctx, func(ctx context.Context) error {
		n, err := r.rdb.Wait(ctx, r.waitReplicas, r.waitTimeout).Result()
		if err != nil {
			if sop.ShouldRetry(err) {
				return sop.RetryableError(err)
			}
			return err
		}
		if int(n) < r.waitReplicas {
			return fmt.Errorf("only %d/%d replicas acked", n, r.waitReplicas)
		}
		return nil
	}, nil)
	if err != nil {
		return fmt.Errorf("commitlog(redis): flush handle=%v: %w", handle, err)
	}
	return nil
}

func (r *RedisCommitLog) Replay(ctx context.Context, callback func(cid sop.UUID, payload []byte) error) (int, int, error) {
	entries, err := r.rdb.XRange(ctx, r.stream, "-", "+").Result()
	if err != nil {
		return 0, 0, fmt.Errorf("commitlog(redis): xrange: %w", err)
	}

	read, applied := 0, 0
	for _, e := range entries {
		read++
		cidStr, _ := e.Values["cid"].(string)
		cid, err := sop.ParseUUID(cidStr)
		if err != nil {
			return read, applied, fmt.Errorf("commitlog(redis): entry %s: bad cid: %w", e.ID, err)
		}
		var payload []byte
		switch v := e.Values["payload"].(type) {
		case string:
			payload = []byte(v)
		case []byte:
			payload = v
		}
		if err := callback(cid, payload); err == nil {
			applied++
		}
	}
	return read, applied, nil
}

func (r *RedisCommitLog) Close() error {
	return r.rdb.Close()
}
