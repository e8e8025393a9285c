package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dropout-alerts/internal/models"
)

const clearBatchSize = 200

// RedisAssessmentStore keeps one JSON assessment per student under
// prefix+generation+":"+id so replicas can reuse each other's scoring pass.
// The generation changes with the models or the dataset, so assessments from
// an older pass are never served.
type RedisAssessmentStore struct {
	client     redis.Cmdable
	prefix     string
	ttl        time.Duration
	generation func() string
}

// NewRedisAssessmentStore builds the store. A zero ttl keeps keys until Clear.
func NewRedisAssessmentStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisAssessmentStore {
	return &RedisAssessmentStore{client: client, prefix: prefix, ttl: ttl}
}

// WithGeneration scopes keys to the value fn returns at each Lookup or Save.
func (s *RedisAssessmentStore) WithGeneration(fn func() string) *RedisAssessmentStore {
	s.generation = fn
	return s
}

func (s *RedisAssessmentStore) keyspace() string {
	if s.generation == nil {
		return s.prefix
	}
	if gen := s.generation(); gen != "" {
		return s.prefix + gen + ":"
	}
	return s.prefix
}

func (s *RedisAssessmentStore) Lookup(ctx context.Context, ids []string) (map[string]models.RiskAssessment, error) {
	if len(ids) == 0 {
		return map[string]models.RiskAssessment{}, nil
	}
	space := s.keyspace()
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = space + id
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make(map[string]models.RiskAssessment, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a models.RiskAssessment
		if err := json.Unmarshal([]byte(raw), &a); err != nil || a.StudentID != ids[i] {
			continue
		}
		out[ids[i]] = a
	}
	return out, nil
}

func (s *RedisAssessmentStore) Save(ctx context.Context, assessments []models.RiskAssessment) error {
	space := s.keyspace()
	pipe := s.client.Pipeline()
	for _, a := range assessments {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("encode assessment %s: %w", a.StudentID, err)
		}
		pipe.Set(ctx, space+a.StudentID, data, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// Clear deletes every key under the prefix, whatever its generation.
func (s *RedisAssessmentStore) Clear(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", clearBatchSize).Result()
		if err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
