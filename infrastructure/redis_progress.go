package infrastructure

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"cv-shortlist/domain"
)

const (
	progressKeyPrefix = "analysis:progress:"

	// Progress of a running analysis expires when nothing advances it for a day,
	// finished progress an hour after completion.
	runningProgressTTL  = 24 * time.Hour
	finishedProgressTTL = time.Hour
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connection failed: %w", err)
	}
	return client, nil
}

// RedisProgressTracker keeps analysis progress in a hash per job opening.
type RedisProgressTracker struct {
	client *redis.Client
}

func NewRedisProgressTracker(client *redis.Client) *RedisProgressTracker {
	return &RedisProgressTracker{client: client}
}

func progressKey(jobOpeningID string) string {
	return progressKeyPrefix + jobOpeningID
}

func (t *RedisProgressTracker) Start(ctx context.Context, jobOpeningID string, total int) error {
	key := progressKey(jobOpeningID)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, "total", total, "processed", 0, "failed", 0)
		pipe.Expire(ctx, key, runningProgressTTL)
		return nil
	})
	return err
}

func (t *RedisProgressTracker) Advance(ctx context.Context, jobOpeningID string, failed bool) error {
	key := progressKey(jobOpeningID)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "processed", 1)
		if failed {
			pipe.HIncrBy(ctx, key, "failed", 1)
		}
		pipe.Expire(ctx, key, runningProgressTTL)
		return nil
	})
	return err
}

func (t *RedisProgressTracker) Finish(ctx context.Context, jobOpeningID string) error {
	return t.client.Expire(ctx, progressKey(jobOpeningID), finishedProgressTTL).Err()
}

// Get returns zero counters when no progress is recorded.
func (t *RedisProgressTracker) Get(ctx context.Context, jobOpeningID string) (domain.AnalysisProgress, error) {
	progress := domain.AnalysisProgress{JobOpeningID: jobOpeningID}

	fields, err := t.client.HGetAll(ctx, progressKey(jobOpeningID)).Result()
	if err != nil {
		return progress, err
	}
	for name, dst := range map[string]*int{
		"total":     &progress.Total,
		"processed": &progress.Processed,
		"failed":    &progress.Failed,
	} {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if *dst, err = strconv.Atoi(v); err != nil {
			return progress, fmt.Errorf("progress field %s: %w", name, err)
		}
	}
	return progress, nil
}
