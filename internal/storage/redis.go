package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Veraticus/dossier/internal/common"
	"github.com/Veraticus/dossier/internal/model"
	"github.com/Veraticus/dossier/internal/service"
	goredis "github.com/redis/go-redis/v9"
)

var _ service.SummaryStore = (*RedisStorage)(nil)

// DefaultRedisPrefix namespaces every key written by RedisStorage.
const DefaultRedisPrefix = "dossier:"

// RedisStorage implements service.SummaryStore on Redis. Each summary is a
// JSON string under <prefix>summary:<id>, and a sorted set scored by
// updated_at indexes them for listing and pruning.
type RedisStorage struct {
	rdb    *goredis.Client
	prefix string
}

// DialRedis connects to addr and verifies the connection with a PING.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	if err := validateString(addr, "addr"); err != nil {
		return nil, err
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

// NewRedisStorage wraps an existing client. An empty prefix selects DefaultRedisPrefix.
func NewRedisStorage(rdb *goredis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStorage{rdb: rdb, prefix: prefix}
}

func (s *RedisStorage) summaryKey(sessionID string) string {
	return s.prefix + "summary:" + sessionID
}

func (s *RedisStorage) indexKey() string {
	return s.prefix + "summaries"
}

func scoreOf(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// SaveSummary inserts or replaces the summary record of a session.
func (s *RedisStorage) SaveSummary(ctx context.Context, summary model.SessionSummary) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSummary(summary); err != nil {
		return err
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = summary.CreatedAt
	}
	summary.Recovered = false

	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode session summary: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.summaryKey(summary.SessionID), raw, 0)
		pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
			Score:  scoreOf(summary.UpdatedAt),
			Member: summary.SessionID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session summary: %w", err)
	}
	return nil
}

// GetSummary retrieves the summary of one session.
func (s *RedisStorage) GetSummary(ctx context.Context, sessionID string) (*model.SessionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return nil, err
	}

	raw, err := s.rdb.Get(ctx, s.summaryKey(sessionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("session summary %s: %w", sessionID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session summary: %w", err)
	}

	var summary model.SessionSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode session summary %s: %w", sessionID, err)
	}
	return &summary, nil
}

// ListSummaries returns every stored summary, most recently updated first.
// Index entries whose record has disappeared are skipped.
func (s *RedisStorage) ListSummaries(ctx context.Context) ([]model.SessionSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	ids, err := s.rdb.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list session summaries: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.summaryKey(id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session summaries: %w", err)
	}

	summaries := make([]model.SessionSummary, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var summary model.SessionSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("failed to decode session summary %s: %w", ids[i], err)
		}
		summaries = append(summaries, summary)
	}
	sortSummaries(summaries)
	return summaries, nil
}

// DeleteSummary removes the summary of one session.
func (s *RedisStorage) DeleteSummary(ctx context.Context, sessionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(sessionID, "sessionID"); err != nil {
		return err
	}
	return s.deleteIDs(ctx, []string{sessionID})
}

// DeleteSummariesBefore removes summaries last updated before cutoff.
func (s *RedisStorage) DeleteSummariesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	ids, err := s.rdb.ZRangeByScore(ctx, s.indexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatFloat(scoreOf(cutoff), 'f', -1, 64),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to find expired session summaries: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.deleteIDs(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *RedisStorage) deleteIDs(ctx context.Context, ids []string) error {
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = s.summaryKey(id)
		members[i] = id
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, s.indexKey(), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session summaries: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.rdb.Close()
}
