package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const jobsKey = "reminder:jobs"

// Job is a scheduled one-shot notification tied to a booking.
type Job struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	ClientID  string    `json:"client_id"`
	FireAt    time.Time `json:"fire_at"`
	Message   string    `json:"message"`
}

// JobStore persists pending reminder jobs so they survive restarts.
type JobStore interface {
	Put(ctx context.Context, job Job) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]Job, error)
}

// RedisJobStore keeps pending jobs in a Redis hash keyed by job id.
type RedisJobStore struct {
	redis *redis.Client
}

// NewRedisJobStore creates a job store. Returns nil when redis is absent;
// the scheduler treats a nil store as "in-memory only".
func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	if redisClient == nil {
		return nil
	}
	return &RedisJobStore{redis: redisClient}
}

func (s *RedisJobStore) Put(ctx context.Context, job Job) error {
	if s == nil || s.redis == nil {
		return nil
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("reminder: marshal job: %w", err)
	}
	if err := s.redis.HSet(ctx, jobsKey, job.ID.String(), data).Err(); err != nil {
		return fmt.Errorf("reminder: store job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if err := s.redis.HDel(ctx, jobsKey, id.String()).Err(); err != nil {
		return fmt.Errorf("reminder: delete job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) List(ctx context.Context) ([]Job, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	fields, err := s.redis.HGetAll(ctx, jobsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("reminder: list jobs: %w", err)
	}

	jobs := make([]Job, 0, len(fields))
	for _, raw := range fields {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

var _ JobStore = (*RedisJobStore)(nil)
