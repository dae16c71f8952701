package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/user"
	"gorm.io/gorm"
)

type AppointmentsRepo struct {
	db       *gorm.DB
	filesURL string
}

func NewAppointmentsRepo(db *gorm.DB, filesURL string) *AppointmentsRepo {
	return &AppointmentsRepo{db: db, filesURL: filesURL}
}

func toAppointment(r appointmentRow) appointment.Appointment {
	a := appointment.Appointment{
		ID:         r.ID,
		UserID:     r.UserID,
		ProviderID: r.ProviderID,
		Date:       r.Date.UTC(),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.CanceledAt != nil {
		t := r.CanceledAt.UTC()
		a.CanceledAt = &t
	}
	return a
}

func (r *AppointmentsRepo) FindActiveBySlot(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
	var row appointmentRow
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND date = ? AND canceled_at IS NULL", providerID, date.UTC()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appointment.Appointment{}, appointment.ErrNotFound
		}
		return appointment.Appointment{}, err
	}
	return toAppointment(row), nil
}

func (r *AppointmentsRepo) Create(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	row := appointmentRow{
		UserID:     a.UserID,
		ProviderID: a.ProviderID,
		Date:       a.Date.UTC(),
		CanceledAt: a.CanceledAt,
	}

	// Omit keeps gorm from upserting the zero-valued associations
	err := r.db.WithContext(ctx).Omit("User", "Provider").Create(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return appointment.Appointment{}, appointment.ErrSlotTaken
		}
		return appointment.Appointment{}, err
	}
	return toAppointment(row), nil
}

func (r *AppointmentsRepo) GetDetail(ctx context.Context, id int64) (appointment.Detail, error) {
	var row appointmentRow
	err := r.db.WithContext(ctx).Preload("User").Preload("Provider").First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appointment.Detail{}, appointment.ErrNotFound
		}
		return appointment.Detail{}, err
	}

	return appointment.Detail{
		Appointment: toAppointment(row),
		Provider:    appointment.Party{ID: row.Provider.ID, Name: row.Provider.Name, Email: row.Provider.Email},
		User:        appointment.Party{ID: row.User.ID, Name: row.User.Name},
	}, nil
}

func (r *AppointmentsRepo) Save(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	res := r.db.WithContext(ctx).
		Model(&appointmentRow{}).
		Where("id = ? AND canceled_at IS NULL", a.ID).
		Updates(map[string]any{"canceled_at": a.CanceledAt, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return appointment.Appointment{}, res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&appointmentRow{}).Where("id = ?", a.ID).Count(&n).Error; err != nil {
			return appointment.Appointment{}, err
		}
		if n > 0 {
			return appointment.Appointment{}, appointment.ErrAlreadyCanceled
		}
		return appointment.Appointment{}, appointment.ErrNotFound
	}

	var row appointmentRow
	if err := r.db.WithContext(ctx).First(&row, a.ID).Error; err != nil {
		return appointment.Appointment{}, err
	}
	return toAppointment(row), nil
}

func (r *AppointmentsRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]appointment.ListItem, error) {
	var rows []appointmentRow
	err := r.db.WithContext(ctx).
		Preload("Provider.Avatar").
		Where("user_id = ? AND canceled_at IS NULL", userID).
		Order("date ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]appointment.ListItem, 0, len(rows))
	for _, row := range rows {
		item := appointment.ListItem{
			ID:   row.ID,
			Date: row.Date.UTC(),
			Provider: appointment.ProviderSummary{
				ID:   row.Provider.ID,
				Name: row.Provider.Name,
			},
		}
		if row.Provider.Avatar != nil {
			item.Provider.Avatar = user.NewAvatar(row.Provider.Avatar.ID, row.Provider.Avatar.Path, r.filesURL)
		}
		out = append(out, item)
	}
	return out, nil
}
