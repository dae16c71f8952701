package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/bookinghub/internal/domain/notification"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotificationsRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationsRepo {
	return &NotificationsRepo{pool: pool, prom: prom}
}

func (r *NotificationsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *NotificationsRepo) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	err := r.observe("notifications.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO notifications (content, user_id, read, created_at, updated_at)
			VALUES ($1, $2, FALSE, NOW(), NOW())
			RETURNING id, read, created_at, updated_at
		`, n.Content, n.UserID).Scan(&n.ID, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	})
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (r *NotificationsRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]notification.Notification, error) {
	out := make([]notification.Notification, 0, limit)

	err := r.observe("notifications.list_by_user", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT id, content, user_id, read, created_at, updated_at
			FROM notifications
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, userID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var n notification.Notification
			if err := rows.Scan(&n.ID, &n.Content, &n.UserID, &n.Read, &n.CreatedAt, &n.UpdatedAt); err != nil {
				return err
			}
			out = append(out, n)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MarkRead flags a notification as read. Rows of other recipients are
// reported as not found.
func (r *NotificationsRepo) MarkRead(ctx context.Context, userID, id int64) (notification.Notification, error) {
	var n notification.Notification

	err := r.observe("notifications.mark_read", func() error {
		return r.pool.QueryRow(ctx, `
			UPDATE notifications
			SET read = TRUE,
			    updated_at = NOW()
			WHERE id = $1 AND user_id = $2
			RETURNING id, content, user_id, read, created_at, updated_at
		`, id, userID).Scan(&n.ID, &n.Content, &n.UserID, &n.Read, &n.CreatedAt, &n.UpdatedAt)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, err
	}
	return n, nil
}
