package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rhea-assistant/server/internal/agent/model"
	errx "github.com/rhea-assistant/server/internal/core/error"
	logx "github.com/rhea-assistant/server/pkg/logger"
)

const scanBatch = 256

// RedisPassageStore implements model.MemoryGateway on top of Redis hashes:
// one hash per passage holding the text, its metadata and its embedding
// vector. Ranking runs client-side over a bounded scan, which is adequate
// for the per-assistant passage volumes this service sees; swap the scan for
// a server-side vector index if that stops being true.
type RedisPassageStore struct {
	rdb      redis.Cmdable
	embedder Embedder
	cfg      model.MemoryConfig
}

func NewRedisPassageStore(rdb redis.Cmdable, embedder Embedder, cfg model.MemoryConfig) *RedisPassageStore {
	return &RedisPassageStore{rdb: rdb, embedder: embedder, cfg: cfg}
}

func (s *RedisPassageStore) Index(ctx context.Context, text string, meta model.PassageMetadata) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("index passage: %w", err)
	}
	vecJSON, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("index passage: marshal vector: %w", err)
	}

	key := s.cfg.KeyPrefix + uuid.NewString()
	fields := map[string]any{
		"text":      text,
		"role":      meta.Role,
		"thread_id": meta.ThreadID,
		"vec":       string(vecJSON),
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to store passage")
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisPassageStore) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve passages: %w", err)
	}

	keys, err := s.scanPassageKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*redis.SliceCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.HMGet(ctx, key, "text", "vec")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Int("keys", len(keys)).Msg("failed to read passages")
		return nil, errx.WrapRedis(err)
	}

	scored := make([]scoredPassage, 0, len(keys))
	for i, cmd := range cmds {
		vals := cmd.Val()
		if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
			continue
		}
		text, _ := vals[0].(string)
		rawVec, _ := vals[1].(string)
		var vec []float32
		if err := json.Unmarshal([]byte(rawVec), &vec); err != nil {
			logx.Warn().Err(err).Str("key", keys[i]).Msg("skipping passage with unreadable vector")
			continue
		}
		scored = append(scored, scoredPassage{text: text, score: cosine(queryVec, vec)})
	}

	return topK(scored, k), nil
}

func (s *RedisPassageStore) scanPassageKeys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, s.cfg.KeyPrefix+"*", scanBatch).Result()
		if err != nil {
			logx.Error().Err(err).Msg("failed to scan passage keys")
			return nil, errx.WrapRedis(err)
		}
		keys = append(keys, batch...)
		if next == 0 || len(keys) >= s.cfg.MaxScan {
			break
		}
		cursor = next
	}
	if len(keys) > s.cfg.MaxScan {
		keys = keys[:s.cfg.MaxScan]
	}
	return keys, nil
}
