package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/job"
)

// JobsRepo is an in-process queue. Jobs do not survive a restart.
type JobsRepo struct {
	mu    sync.Mutex
	items map[string]job.Job
	idem  map[string]string
	now   func() time.Time
}

func NewJobsRepo() *JobsRepo {
	return &JobsRepo{
		items: make(map[string]job.Job),
		idem:  make(map[string]string),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *JobsRepo) Enqueue(_ context.Context, req job.CreateRequest) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req.IdempotencyKey != nil {
		if id, ok := r.idem[*req.IdempotencyKey]; ok {
			return r.items[id], nil
		}
	}

	j := job.New(req)
	r.items[j.ID] = j
	if req.IdempotencyKey != nil {
		r.idem[*req.IdempotencyKey] = j.ID
	}
	return j, nil
}

func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var ready []job.Job
	for _, j := range r.items {
		if j.Status == job.StatusPending && !j.RunAt.After(now) && j.Attempts < j.MaxAttempts {
			ready = append(ready, j)
		}
	}
	if len(ready) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}

	sort.Slice(ready, func(a, b int) bool {
		if !ready[a].RunAt.Equal(ready[b].RunAt) {
			return ready[a].RunAt.Before(ready[b].RunAt)
		}
		return ready[a].CreatedAt.Before(ready[b].CreatedAt)
	})

	j := ready[0]
	j.Status = job.StatusProcessing
	j.LockedAt = &now
	j.LockedBy = &workerID
	j.UpdatedAt = now
	r.items[j.ID] = j
	return j, nil
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusDone
		j.LastError = nil
	})
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt.UTC()
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) GetByID(_ context.Context, id string) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (r *JobsRepo) Ping(context.Context) error { return nil }

func (r *JobsRepo) update(id string, mutate func(j *job.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.items[id]
	if !ok {
		return job.ErrJobNotFound
	}

	mutate(&j)
	j.LockedAt = nil
	j.LockedBy = nil
	j.UpdatedAt = r.now()
	r.items[id] = j
	return nil
}
