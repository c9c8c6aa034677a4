package ruleset

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/llm-mail-sorter/internal/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisRepository keeps the rule-set in a Redis hash, one field per sender
type RedisRepository struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisRepository connects to Redis and verifies the connection
func NewRedisRepository(addr, password string, db int, key string, logger *zap.Logger) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRepository{client: client, key: key, logger: logger}, nil
}

func (r *RedisRepository) savedAtKey() string {
	return r.key + ":saved_at"
}

// Load reads the rule-set; core.ErrRuleSetNotFound if it was never saved
func (r *RedisRepository) Load(ctx context.Context) (core.RuleSet, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rule-set: %w", err)
	}
	if len(fields) == 0 {
		n, err := r.client.Exists(ctx, r.savedAtKey()).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read rule-set: %w", err)
		}
		if n == 0 {
			return nil, core.ErrRuleSetNotFound
		}
		return core.RuleSet{}, nil
	}

	rs := make(core.RuleSet, len(fields))
	for sender, value := range fields {
		entry, err := decodeEntry([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rule-set entry for %s: %w", sender, err)
		}
		rs[sender] = entry
	}
	return rs, nil
}

// Save replaces the whole hash in one MULTI/EXEC
func (r *RedisRepository) Save(ctx context.Context, rs core.RuleSet) error {
	values := make(map[string]any, len(rs))
	for sender, entry := range rs {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode rule-set entry for %s: %w", sender, err)
		}
		values[sender] = string(data)
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(values) > 0 {
			pipe.HSet(ctx, r.key, values)
		}
		pipe.Set(ctx, r.savedAtKey(), time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save rule-set: %w", err)
	}
	r.logger.Debug("Saved rule-set", zap.String("key", r.key), zap.Int("entries", len(rs)))
	return nil
}

// Close closes the Redis client
func (r *RedisRepository) Close() error {
	return r.client.Close()
}
