package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/eleven-am/lecture-transcriber/internal/shared"
	"github.com/redis/go-redis/v9"
)

const (
	sessionTTL = 24 * time.Hour
	metricsTTL = 7 * 24 * time.Hour
	dateLayout = "2006-01-02"
)

type Store struct {
	redis *redis.Client
	now   func() time.Time
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient, now: time.Now}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

func (s *Store) CreateSession(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = shared.NewID("live_")
	}
	now := s.now()
	sess.Status = StatusActive
	sess.StartedAt = now
	sess.LastActiveAt = now

	return s.put(ctx, sess)
}

func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, SessionRedisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *Store) UpdateSession(ctx context.Context, sess *Session) error {
	sess.LastActiveAt = s.now()
	return s.put(ctx, sess)
}

// EndSession applies fn to the stored record and marks it finished.
func (s *Store) EndSession(ctx context.Context, id string, status Status, fn func(*Session)) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if fn != nil {
		fn(sess)
	}
	ended := s.now()
	sess.Status = status
	sess.EndedAt = &ended
	return s.UpdateSession(ctx, sess)
}

func (s *Store) put(ctx context.Context, sess *Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, sess.RedisKey(), data, sessionTTL).Err()
}

func (s *Store) IncrementMetric(ctx context.Context, field string, value int64) error {
	return s.IncrementMetrics(ctx, map[string]int64{field: value})
}

// IncrementMetrics adds every non-zero delta to the current hour's bucket in
// one round trip.
func (s *Store) IncrementMetrics(ctx context.Context, deltas map[string]int64) error {
	now := s.now().UTC()
	key := MetricsRedisKey(now.Format(dateLayout), now.Hour())

	pipe := s.redis.Pipeline()
	queued := 0
	for field, v := range deltas {
		if v == 0 {
			continue
		}
		pipe.HIncrBy(ctx, key, field, v)
		queued++
	}
	if queued == 0 {
		return nil
	}
	pipe.Expire(ctx, key, metricsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetMetrics returns the non-empty hourly buckets of the last hours hours,
// newest first.
func (s *Store) GetMetrics(ctx context.Context, hours int) ([]*Metrics, error) {
	now := s.now().UTC()
	var metrics []*Metrics

	for i := 0; i < hours; i++ {
		t := now.Add(-time.Duration(i) * time.Hour)
		key := MetricsRedisKey(t.Format(dateLayout), t.Hour())

		data, err := s.redis.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("read metrics %s: %w", key, err)
		}
		if len(data) == 0 {
			continue
		}

		m := &Metrics{
			Date: t.Format(dateLayout),
			Hour: t.Hour(),
		}
		m.Sessions = parseCounter(data, FieldSessions)
		m.Windows = parseCounter(data, FieldWindows)
		m.Results = parseCounter(data, FieldResults)
		m.Errors = parseCounter(data, FieldErrors)
		m.Dropped = parseCounter(data, FieldDropped)
		m.AudioBytes = parseCounter(data, FieldAudioBytes)

		metrics = append(metrics, m)
	}

	return metrics, nil
}

func parseCounter(data map[string]string, field string) int64 {
	v, _ := strconv.ParseInt(data[field], 10, 64)
	return v
}
