package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AppointmentsRepo struct {
	pool     *pgxpool.Pool
	prom     *observability.Prom
	filesURL string
}

func NewAppointmentsRepo(pool *pgxpool.Pool, prom *observability.Prom, filesURL string) *AppointmentsRepo {
	return &AppointmentsRepo{pool: pool, prom: prom, filesURL: filesURL}
}

func (r *AppointmentsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const appointmentColumns = `id, user_id, provider_id, date, canceled_at, created_at, updated_at`

func scanAppointment(row pgx.Row, a *appointment.Appointment) error {
	return row.Scan(&a.ID, &a.UserID, &a.ProviderID, &a.Date, &a.CanceledAt, &a.CreatedAt, &a.UpdatedAt)
}

func (r *AppointmentsRepo) FindActiveBySlot(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
	var a appointment.Appointment

	err := r.observe("appointments.find_active_by_slot", func() error {
		return scanAppointment(r.pool.QueryRow(ctx, `
			SELECT `+appointmentColumns+`
			FROM appointments
			WHERE provider_id = $1 AND date = $2 AND canceled_at IS NULL
			LIMIT 1
		`, providerID, date.UTC()), &a)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return appointment.Appointment{}, appointment.ErrNotFound
		}
		return appointment.Appointment{}, err
	}
	return normalize(a), nil
}

func (r *AppointmentsRepo) Create(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	var out appointment.Appointment

	err := r.observe("appointments.create", func() error {
		return scanAppointment(r.pool.QueryRow(ctx, `
			INSERT INTO appointments (user_id, provider_id, date, canceled_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING `+appointmentColumns,
			a.UserID, a.ProviderID, a.Date.UTC(), a.CanceledAt,
		), &out)
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return appointment.Appointment{}, appointment.ErrSlotTaken
		}
		return appointment.Appointment{}, err
	}
	return normalize(out), nil
}

func (r *AppointmentsRepo) GetDetail(ctx context.Context, id int64) (appointment.Detail, error) {
	var d appointment.Detail

	err := r.observe("appointments.get_detail", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT a.id, a.user_id, a.provider_id, a.date, a.canceled_at, a.created_at, a.updated_at,
			       p.id, p.name, p.email,
			       u.id, u.name
			FROM appointments a
			JOIN users p ON p.id = a.provider_id
			JOIN users u ON u.id = a.user_id
			WHERE a.id = $1
		`, id).Scan(
			&d.ID, &d.UserID, &d.ProviderID, &d.Date, &d.CanceledAt, &d.CreatedAt, &d.UpdatedAt,
			&d.Provider.ID, &d.Provider.Name, &d.Provider.Email,
			&d.User.ID, &d.User.Name,
		)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return appointment.Detail{}, appointment.ErrNotFound
		}
		return appointment.Detail{}, err
	}
	d.Appointment = normalize(d.Appointment)
	return d, nil
}

// Save persists the mutable fields of a; only canceled_at changes after creation.
func (r *AppointmentsRepo) Save(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	var out appointment.Appointment

	err := r.observe("appointments.save", func() error {
		return scanAppointment(r.pool.QueryRow(ctx, `
			UPDATE appointments
			SET canceled_at = $2,
			    updated_at = NOW()
			WHERE id = $1 AND canceled_at IS NULL
			RETURNING `+appointmentColumns,
			a.ID, a.CanceledAt,
		), &out)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return appointment.Appointment{}, r.missingOrCanceled(ctx, a.ID)
		}
		return appointment.Appointment{}, err
	}
	return normalize(out), nil
}

// missingOrCanceled tells apart the two reasons a guarded update can touch
// no row.
func (r *AppointmentsRepo) missingOrCanceled(ctx context.Context, id int64) error {
	var exists bool
	err := r.observe("appointments.exists", func() error {
		return r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	})
	if err != nil {
		return err
	}
	if exists {
		return appointment.ErrAlreadyCanceled
	}
	return appointment.ErrNotFound
}

func (r *AppointmentsRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]appointment.ListItem, error) {
	out := make([]appointment.ListItem, 0, limit)

	var rows pgx.Rows
	err := r.observe("appointments.list_by_user", func() error {
		var qerr error
		rows, qerr = r.pool.Query(ctx, `
			SELECT a.id, a.date, p.id, p.name, f.id, f.path
			FROM appointments a
			JOIN users p ON p.id = a.provider_id
			LEFT JOIN files f ON f.id = p.avatar_id
			WHERE a.user_id = $1 AND a.canceled_at IS NULL
			ORDER BY a.date ASC, a.id ASC
			LIMIT $2 OFFSET $3
		`, userID, limit, offset)
		return qerr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item     appointment.ListItem
			avatarID sql.NullInt64
			path     sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.Date, &item.Provider.ID, &item.Provider.Name, &avatarID, &path); err != nil {
			return nil, err
		}
		item.Date = item.Date.UTC()
		if avatarID.Valid {
			item.Provider.Avatar = user.NewAvatar(avatarID.Int64, path.String, r.filesURL)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func normalize(a appointment.Appointment) appointment.Appointment {
	a.Date = a.Date.UTC()
	if a.CanceledAt != nil {
		t := a.CanceledAt.UTC()
		a.CanceledAt = &t
	}
	return a
}
