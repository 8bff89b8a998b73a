package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rhea-assistant/server/internal/agent/model"
	errx "github.com/rhea-assistant/server/internal/core/error"
	logx "github.com/rhea-assistant/server/pkg/logger"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

// RedisCheckpointRepository stores one JSON document per thread holding the
// full ConversationState. Save replaces the document atomically, so a crash
// mid-turn leaves the previous checkpoint intact.
type RedisCheckpointRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCheckpointRepository(rdb redis.Cmdable, ttl time.Duration) *RedisCheckpointRepository {
	return &RedisCheckpointRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisCheckpointRepository) threadKey(threadID string) string {
	return fmt.Sprintf("thread:%s:state", threadID)
}

func (r *RedisCheckpointRepository) Load(ctx context.Context, threadID string) (*model.ConversationState, error) {
	key := r.threadKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}

	state, err := decodeState([]byte(raw))
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to decode checkpoint")
		return nil, fmt.Errorf("decode checkpoint for thread %s: %w", threadID, err)
	}
	return state, nil
}

func (r *RedisCheckpointRepository) Save(ctx context.Context, threadID string, state *model.ConversationState) error {
	b, err := encodeState(state)
	if err != nil {
		logx.Error().Err(err).Str("thread_id", threadID).Msg("failed to encode checkpoint")
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	key := r.threadKey(threadID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to write checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func encodeState(state *model.ConversationState) ([]byte, error) {
	return json.Marshal(state)
}

func decodeState(b []byte) (*model.ConversationState, error) {
	var state model.ConversationState
	if err := json.Unmarshal(b, &state); err != nil {
		return nil, err
	}
	if state.History == nil {
		state.History = []*schema.Message{}
	}
	return &state, nil
}
