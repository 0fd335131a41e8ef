package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"cally-platform/internal/calendar"
)

// ErrEmpty signals no job was available within the poll window.
var ErrEmpty = errors.New("syncqueue: empty")

// DefaultKey is the redis list backing the provider-sync outbox.
const DefaultKey = "calendar:sync:jobs"

// Queue is the outbox consumed by the sync worker. EnqueueSync satisfies
// calendar.SyncEnqueuer.
type Queue interface {
	EnqueueSync(ctx context.Context, job calendar.SyncJob) error
	Dequeue(ctx context.Context, timeout time.Duration) (calendar.SyncJob, error)
}

// RedisQueue is a redis-list outbox: LPUSH to publish, BRPOP to consume.
// Jobs survive API restarts; a worker crash mid-push re-delivers nothing,
// which is acceptable because pushes are idempotent per provider event id.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) EnqueueSync(ctx context.Context, job calendar.SyncJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("syncqueue: marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("syncqueue: enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (calendar.SyncJob, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return calendar.SyncJob{}, ErrEmpty
	}
	if err != nil {
		return calendar.SyncJob{}, fmt.Errorf("syncqueue: dequeue: %w", err)
	}
	// BRPOP returns [key, value].
	var job calendar.SyncJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return calendar.SyncJob{}, fmt.Errorf("syncqueue: unmarshal job: %w", err)
	}
	return job, nil
}

// MemoryQueue is an in-process outbox for tests and local runs without
// redis.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs []calendar.SyncJob
}

func NewMemoryQueue() *MemoryQueue { return &MemoryQueue{} }

func (q *MemoryQueue) EnqueueSync(ctx context.Context, job calendar.SyncJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

// Dequeue matches BRPOP semantics: a positive timeout blocks until a job
// arrives or the window elapses; a zero timeout returns immediately.
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (calendar.SyncJob, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, nil
		}
		q.mu.Unlock()

		if timeout <= 0 || !time.Now().Before(deadline) {
			return calendar.SyncJob{}, ErrEmpty
		}
		select {
		case <-ctx.Done():
			return calendar.SyncJob{}, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
