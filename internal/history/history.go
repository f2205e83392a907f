// Package history persists evaluation results in Redis so runs can be compared over time.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ricesearch/rice-eval/internal/evaluation"
	rcontext "github.com/ricesearch/rice-eval/internal/pkg/context"
	"github.com/ricesearch/rice-eval/internal/pkg/errors"
)

const (
	// DefaultPrefix namespaces history keys.
	DefaultPrefix = "rice:eval:history:"

	defaultName = "default"
)

// Record is one stored evaluation.
type Record struct {
	ID       string             `json:"id"`
	StoredAt time.Time          `json:"stored_at"`
	Result   *evaluation.Result `json:"result"`
}

// Store keeps one sorted set per evaluator name, scored by completion time.
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration // 0 keeps everything
	now    func() time.Time
}

// New connects to Redis at url and verifies the connection.
func New(url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.ConfigurationError("invalid redis URL").WithDetail("cause", err.Error())
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.StoreError("connecting to redis", err)
	}

	return NewWithClient(client, ttl), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		prefix: DefaultPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Store) key(name string) string {
	if name == "" {
		name = defaultName
	}
	return s.prefix + name
}

// Save stores r under its evaluator name and trims records older than the TTL.
func (s *Store) Save(ctx context.Context, r *evaluation.Result) (*Record, error) {
	rec := &Record{
		ID:       runID(ctx),
		StoredAt: s.now(),
		Result:   r,
	}

	member, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.InternalError("encoding history record", err)
	}

	completed := r.CompletedAt
	if completed.IsZero() {
		completed = rec.StoredAt
	}

	key := s.key(r.Name)
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(completed.UnixMilli()),
		Member: member,
	})
	if s.ttl > 0 {
		minScore := s.now().Add(-s.ttl).UnixMilli()
		pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", minScore))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.StoreError("saving history record", err)
	}
	return rec, nil
}

// WriteReport implements evaluation.ReportSink.
func (s *Store) WriteReport(ctx context.Context, r *evaluation.Result) error {
	_, err := s.Save(ctx, r)
	return err
}

// List returns records for name completed at or after since, oldest first.
func (s *Store) List(ctx context.Context, name string, since time.Time) ([]Record, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key(name), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", since.UnixMilli()),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.StoreError("loading history", err)
	}
	return decode(members), nil
}

// Latest returns the most recent record for name.
func (s *Store) Latest(ctx context.Context, name string) (*Record, error) {
	members, err := s.client.ZRevRange(ctx, s.key(name), 0, 0).Result()
	if err != nil {
		return nil, errors.StoreError("loading history", err)
	}
	records := decode(members)
	if len(records) == 0 {
		return nil, errors.NotFoundError("history for " + name)
	}
	return &records[0], nil
}

// Names returns every evaluator name with stored history.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	var names []string
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, errors.StoreError("listing history", err)
	}
	return names, nil
}

// Delete removes all history for name.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return errors.StoreError("deleting history", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func decode(members []string) []Record {
	records := make([]Record, 0, len(members))
	for _, m := range members {
		var rec Record
		if err := json.Unmarshal([]byte(m), &rec); err != nil {
			// Skip invalid entries
			continue
		}
		records = append(records, rec)
	}
	return records
}

func runID(ctx context.Context) string {
	if id := rcontext.GetRunID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
