package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// History хранит окна антифрода в sorted set, score хранит время события в миллисекундах.
type History struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

func NewHistory(client redis.UniversalClient, retention time.Duration) *History {
	return &History{client: client, prefix: "fraud:", retention: retention}
}

// NewClient открывает соединение и проверяет его. Ошибка останавливает запуск.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: нет соединения с %s: %w", addr, err)
	}
	return client, nil
}

func (h *History) Record(ctx context.Context, key string, at time.Time) error {
	redisKey := h.prefix + key
	score := at.UnixMilli()

	pipe := h.client.TxPipeline()
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(score), Member: strconv.FormatInt(score, 10) + ":" + uuid.NewString()})
	if h.retention > 0 {
		pipe.ZRemRangeByScore(ctx, redisKey, "-inf", "("+strconv.FormatInt(at.Add(-h.retention).UnixMilli(), 10))
		pipe.Expire(ctx, redisKey, h.retention+time.Minute)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: не удалось записать событие %s: %w", key, err)
	}
	return nil
}

func (h *History) Since(ctx context.Context, key string, from time.Time) ([]time.Time, error) {
	entries, err := h.client.ZRangeByScoreWithScores(ctx, h.prefix+key, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: не удалось прочитать окно %s: %w", key, err)
	}
	result := make([]time.Time, 0, len(entries))
	for _, z := range entries {
		result = append(result, time.UnixMilli(int64(z.Score)))
	}
	return result, nil
}
