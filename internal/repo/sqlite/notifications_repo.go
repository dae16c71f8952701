package sqlite

import (
	"context"
	"errors"

	"github.com/geocoder89/bookinghub/internal/domain/notification"
	"gorm.io/gorm"
)

type NotificationsRepo struct {
	db *gorm.DB
}

func NewNotificationsRepo(db *gorm.DB) *NotificationsRepo {
	return &NotificationsRepo{db: db}
}

func toNotification(r notificationRow) notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		Content:   r.Content,
		UserID:    r.UserID,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r *NotificationsRepo) Create(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	row := notificationRow{Content: n.Content, UserID: n.UserID}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return notification.Notification{}, err
	}
	return toNotification(row), nil
}

func (r *NotificationsRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]notification.Notification, error) {
	var rows []notificationRow
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, toNotification(row))
	}
	return out, nil
}

func (r *NotificationsRepo) MarkRead(ctx context.Context, userID, id int64) (notification.Notification, error) {
	var row notificationRow
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notification.Notification{}, notification.ErrNotFound
		}
		return notification.Notification{}, err
	}

	row.Read = true
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return notification.Notification{}, err
	}
	return toNotification(row), nil
}
