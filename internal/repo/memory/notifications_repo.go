package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/notification"
)

type NotificationsRepo struct {
	mu     sync.RWMutex
	items  map[int64]notification.Notification
	nextID int64
}

func NewNotificationsRepo() *NotificationsRepo {
	return &NotificationsRepo{items: make(map[int64]notification.Notification)}
}

func (r *NotificationsRepo) Create(_ context.Context, n notification.Notification) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.nextID++
	n.ID = r.nextID
	n.Read = false
	n.CreatedAt = now
	n.UpdatedAt = now

	r.items[n.ID] = n
	return n, nil
}

func (r *NotificationsRepo) ListByUser(_ context.Context, userID int64, limit int) ([]notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []notification.Notification{}
	for _, n := range r.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	// newest first; ids break ties within the same instant
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *NotificationsRepo) MarkRead(_ context.Context, userID, id int64) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return notification.Notification{}, notification.ErrNotFound
	}

	n.Read = true
	n.UpdatedAt = time.Now().UTC()
	r.items[id] = n
	return n, nil
}
