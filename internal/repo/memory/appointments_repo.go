package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
)

type AppointmentsRepo struct {
	mu     sync.RWMutex
	items  map[int64]appointment.Appointment
	nextID int64
	users  *UsersRepo
}

func NewAppointmentsRepo(users *UsersRepo) *AppointmentsRepo {
	return &AppointmentsRepo{
		items: make(map[int64]appointment.Appointment),
		users: users,
	}
}

func (r *AppointmentsRepo) FindActiveBySlot(_ context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.activeAt(providerID, date); ok {
		return a, nil
	}
	return appointment.Appointment{}, appointment.ErrNotFound
}

func (r *AppointmentsRepo) activeAt(providerID int64, date time.Time) (appointment.Appointment, bool) {
	for _, a := range r.items {
		if a.ProviderID == providerID && a.CanceledAt == nil && a.Date.Equal(date) {
			return a, true
		}
	}
	return appointment.Appointment{}, false
}

// Create enforces one active appointment per provider slot under the write lock.
func (r *AppointmentsRepo) Create(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a.Date = a.Date.UTC()
	if a.CanceledAt == nil {
		if _, taken := r.activeAt(a.ProviderID, a.Date); taken {
			return appointment.Appointment{}, appointment.ErrSlotTaken
		}
	}

	now := time.Now().UTC()
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = now
	a.UpdatedAt = now

	r.items[a.ID] = a
	return a, nil
}

func (r *AppointmentsRepo) GetDetail(ctx context.Context, id int64) (appointment.Detail, error) {
	r.mu.RLock()
	a, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return appointment.Detail{}, appointment.ErrNotFound
	}

	d := appointment.Detail{Appointment: a}
	if p, err := r.users.GetByID(ctx, a.ProviderID); err == nil {
		d.Provider = appointment.Party{ID: p.ID, Name: p.Name, Email: p.Email}
	}
	if u, err := r.users.GetByID(ctx, a.UserID); err == nil {
		d.User = appointment.Party{ID: u.ID, Name: u.Name}
	}
	return d, nil
}

func (r *AppointmentsRepo) Save(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.items[a.ID]
	if !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	if cur.CanceledAt != nil {
		return appointment.Appointment{}, appointment.ErrAlreadyCanceled
	}

	cur.CanceledAt = a.CanceledAt
	cur.UpdatedAt = time.Now().UTC()
	r.items[a.ID] = cur
	return cur, nil
}

func (r *AppointmentsRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]appointment.ListItem, error) {
	r.mu.RLock()
	var mine []appointment.Appointment
	for _, a := range r.items {
		if a.UserID == userID && a.CanceledAt == nil {
			mine = append(mine, a)
		}
	}
	r.mu.RUnlock()

	sort.Slice(mine, func(i, j int) bool {
		if !mine[i].Date.Equal(mine[j].Date) {
			return mine[i].Date.Before(mine[j].Date)
		}
		return mine[i].ID < mine[j].ID
	})

	out := make([]appointment.ListItem, 0, limit)
	for i := offset; i < len(mine) && len(out) < limit; i++ {
		a := mine[i]
		item := appointment.ListItem{ID: a.ID, Date: a.Date, Provider: appointment.ProviderSummary{ID: a.ProviderID}}
		if p, err := r.users.GetByID(ctx, a.ProviderID); err == nil {
			item.Provider.Name = p.Name
			item.Provider.Avatar = p.Avatar
		}
		out = append(out, item)
	}
	return out, nil
}
