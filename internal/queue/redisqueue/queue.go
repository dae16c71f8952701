package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/job"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/geocoder89/bookinghub/internal/queue/redisclient"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix  = "bookinghub:jobs:"
	// finished jobs are kept around for inspection, then expire
	finishedTTL    = 7 * 24 * time.Hour
	promoteBatch   = 100
	enqueueRetries = 3
)

// Queue is a job queue on redis. Pending ids sit in a ready list (or a
// delayed zset scored by run_at), claimed ids move to a processing list
// with LMOVE so a claim is atomic across workers.
type Queue struct {
	rdb    *redis.Client
	client *redisclient.Client
	prefix string
	prom   *observability.Prom
	now    func() time.Time
}

func New(client *redisclient.Client, prom *observability.Prom) *Queue {
	return &Queue{
		rdb:    client.Raw(),
		client: client,
		prefix: defaultPrefix,
		prom:   prom,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (q *Queue) observe(op string, fn func() error) error {
	if q.prom != nil {
		return q.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (q *Queue) jobKey(id string) string   { return q.prefix + "job:" + id }
func (q *Queue) idemKey(key string) string { return q.prefix + "idem:" + key }
func (q *Queue) readyKey() string          { return q.prefix + "ready" }
func (q *Queue) processingKey() string     { return q.prefix + "processing" }
func (q *Queue) delayedKey() string        { return q.prefix + "delayed" }

func (q *Queue) Ping(ctx context.Context) error { return q.client.Ping(ctx) }

func (q *Queue) Close() error { return q.client.Close() }

// Enqueue stores a new pending job. A request whose idempotency key was seen
// before returns the job created the first time. The key and the job are
// written in one MULTI under WATCH, so neither exists without the other.
func (q *Queue) Enqueue(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)

	b, err := json.Marshal(j)
	if err != nil {
		return job.Job{}, fmt.Errorf("enqueue job: %w", err)
	}

	var out job.Job
	err = q.observe("redisqueue.enqueue", func() error {
		if req.IdempotencyKey == nil {
			out = j
			return q.insert(ctx, q.rdb, j, b, "")
		}

		idem := q.idemKey(*req.IdempotencyKey)
		for attempt := 0; attempt < enqueueRetries; attempt++ {
			err := q.rdb.Watch(ctx, func(tx *redis.Tx) error {
				existingID, err := tx.Get(ctx, idem).Result()
				switch {
				case err == nil:
					existing, err := q.load(ctx, existingID)
					if err == nil {
						out = existing
						return nil
					}
					// key outlived its job; take it over
					if !errors.Is(err, job.ErrJobNotFound) {
						return err
					}
				case !errors.Is(err, redis.Nil):
					return err
				}

				out = j
				return q.insert(ctx, tx, j, b, idem)
			}, idem)
			if !errors.Is(err, redis.TxFailedErr) {
				return err
			}
		}
		return redis.TxFailedErr
	})

	if err != nil {
		return job.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return out, nil
}

// txPipeliner is satisfied by both *redis.Client and a watching *redis.Tx.
type txPipeliner interface {
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// insert writes the job, queues its id and, when idem is set, claims the
// idempotency key, all in a single transaction.
func (q *Queue) insert(ctx context.Context, c txPipeliner, j job.Job, b []byte, idem string) error {
	_, err := c.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if idem != "" {
			pipe.Set(ctx, idem, j.ID, 0)
		}
		pipe.Set(ctx, q.jobKey(j.ID), b, 0)
		if j.RunAt.After(q.now()) {
			pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(j.RunAt.UnixMilli()), Member: j.ID})
		} else {
			pipe.LPush(ctx, q.readyKey(), j.ID)
		}
		return nil
	})
	return err
}

func (q *Queue) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job

	err := q.observe("redisqueue.claim_next", func() error {
		if err := q.promoteDue(ctx); err != nil {
			return err
		}

		id, err := q.rdb.LMove(ctx, q.readyKey(), q.processingKey(), "RIGHT", "LEFT").Result()
		if err != nil {
			return err
		}

		j, err = q.load(ctx, id)
		if err != nil {
			return err
		}

		now := q.now()
		j.Status = job.StatusProcessing
		j.LockedAt = &now
		j.LockedBy = &workerID
		j.UpdatedAt = now

		return q.save(ctx, j, 0)
	})

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return job.Job{}, job.ErrJobNotFound
		}
		return job.Job{}, err
	}
	return j, nil
}

// promoteDue moves delayed jobs whose run_at has passed onto the ready list.
func (q *Queue) promoteDue(ctx context.Context) error {
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(q.now().UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return err
	}

	for _, id := range ids {
		// only the worker that removes the member pushes it
		removed, err := q.rdb.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return err
		}
		if removed == 1 {
			if err := q.rdb.LPush(ctx, q.readyKey(), id).Err(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *Queue) MarkDone(ctx context.Context, id string) error {
	return q.observe("redisqueue.mark_done", func() error {
		return q.finish(ctx, id, func(j *job.Job) {
			j.Status = job.StatusDone
			j.LastError = nil
		})
	})
}

func (q *Queue) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return q.observe("redisqueue.mark_failed", func() error {
		return q.finish(ctx, id, func(j *job.Job) {
			j.Status = job.StatusFailed
			j.LastError = &errMsg
		})
	})
}

func (q *Queue) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return q.observe("redisqueue.reschedule", func() error {
		j, err := q.load(ctx, id)
		if err != nil {
			return err
		}

		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt.UTC()
		j.LockedAt = nil
		j.LockedBy = nil
		j.LastError = &errMsg
		j.UpdatedAt = q.now()

		b, err := json.Marshal(j)
		if err != nil {
			return err
		}

		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, q.jobKey(id), b, 0)
			pipe.LRem(ctx, q.processingKey(), 1, id)
			pipe.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(j.RunAt.UnixMilli()), Member: id})
			return nil
		})
		return err
	})
}

// RequeueStaleProcessing puts back jobs whose lock is older than lockTTL.
func (q *Queue) RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error) {
	var n int64

	err := q.observe("redisqueue.requeue_stale", func() error {
		ids, err := q.rdb.LRange(ctx, q.processingKey(), 0, -1).Result()
		if err != nil {
			return err
		}

		cutoff := q.now().Add(-lockTTL)
		for _, id := range ids {
			j, err := q.load(ctx, id)
			if err != nil {
				if errors.Is(err, job.ErrJobNotFound) {
					q.rdb.LRem(ctx, q.processingKey(), 1, id)
					continue
				}
				return err
			}
			if j.LockedAt == nil || j.LockedAt.After(cutoff) {
				continue
			}

			j.Status = job.StatusPending
			j.LockedAt = nil
			j.LockedBy = nil
			j.UpdatedAt = q.now()

			b, err := json.Marshal(j)
			if err != nil {
				return err
			}

			_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, q.jobKey(id), b, 0)
				pipe.LRem(ctx, q.processingKey(), 1, id)
				pipe.LPush(ctx, q.readyKey(), id)
				return nil
			})
			if err != nil {
				return err
			}
			n++
		}
		return nil
	})

	return n, err
}

func (q *Queue) GetByID(ctx context.Context, id string) (job.Job, error) {
	var j job.Job
	err := q.observe("redisqueue.get_by_id", func() error {
		var err error
		j, err = q.load(ctx, id)
		return err
	})
	return j, err
}

func (q *Queue) finish(ctx context.Context, id string, mutate func(j *job.Job)) error {
	j, err := q.load(ctx, id)
	if err != nil {
		return err
	}

	mutate(&j)
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = q.now()

	b, err := json.Marshal(j)
	if err != nil {
		return err
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.jobKey(id), b, finishedTTL)
		if j.IdempotencyKey != nil {
			pipe.Expire(ctx, q.idemKey(*j.IdempotencyKey), finishedTTL)
		}
		pipe.LRem(ctx, q.processingKey(), 1, id)
		return nil
	})
	return err
}

func (q *Queue) load(ctx context.Context, id string) (job.Job, error) {
	b, err := q.rdb.Get(ctx, q.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return job.Job{}, job.ErrJobNotFound
		}
		return job.Job{}, err
	}

	var j job.Job
	if err := json.Unmarshal(b, &j); err != nil {
		return job.Job{}, fmt.Errorf("decode job %s: %w", id, err)
	}
	return j, nil
}

func (q *Queue) save(ctx context.Context, j job.Job, ttl time.Duration) error {
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return q.rdb.Set(ctx, q.jobKey(j.ID), b, ttl).Err()
}
