package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/user"
)

type fakeUsers struct {
	byID  map[int64]user.User
	getFn func(ctx context.Context, id int64) (user.User, error)
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (user.User, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	u, ok := f.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

// fakeAppointments keeps rows in a map and enforces one active row per slot.
type fakeAppointments struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]appointment.Appointment
	users  map[int64]user.User

	findFn   func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error)
	createFn func(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	detailFn func(ctx context.Context, id int64) (appointment.Detail, error)
	saves    int
}

func newFakeAppointments(users map[int64]user.User) *fakeAppointments {
	return &fakeAppointments{rows: map[int64]appointment.Appointment{}, users: users}
}

func (f *fakeAppointments) FindActiveBySlot(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
	if f.findFn != nil {
		return f.findFn(ctx, providerID, date)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ProviderID == providerID && a.Date.Equal(date) && a.CanceledAt == nil {
			return a, nil
		}
	}
	return appointment.Appointment{}, appointment.ErrNotFound
}

func (f *fakeAppointments) Create(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	if f.createFn != nil {
		return f.createFn(ctx, a)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	f.rows[a.ID] = a
	return a, nil
}

func (f *fakeAppointments) GetDetail(ctx context.Context, id int64) (appointment.Detail, error) {
	if f.detailFn != nil {
		return f.detailFn(ctx, id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return appointment.Detail{}, appointment.ErrNotFound
	}
	p := f.users[a.ProviderID]
	u := f.users[a.UserID]
	return appointment.Detail{
		Appointment: a,
		Provider:    appointment.Party{ID: p.ID, Name: p.Name, Email: p.Email},
		User:        appointment.Party{ID: u.ID, Name: u.Name},
	}, nil
}

func (f *fakeAppointments) Save(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if cur, ok := f.rows[a.ID]; ok && cur.CanceledAt != nil {
		return appointment.Appointment{}, appointment.ErrAlreadyCanceled
	}
	f.rows[a.ID] = a
	return a, nil
}

func (f *fakeAppointments) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]appointment.ListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []appointment.Appointment
	for _, a := range f.rows {
		if a.UserID == userID && a.CanceledAt == nil {
			mine = append(mine, a)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].Date.Before(mine[j].Date) })

	var out []appointment.ListItem
	for i := offset; i < len(mine) && i < offset+limit; i++ {
		p := f.users[mine[i].ProviderID]
		out = append(out, appointment.ListItem{
			ID:       mine[i].ID,
			Date:     mine[i].Date,
			Provider: appointment.ProviderSummary{ID: p.ID, Name: p.Name, Avatar: p.Avatar},
		})
	}
	return out, nil
}

func (f *fakeAppointments) get(id int64) appointment.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type recordingNotifier struct {
	booked   []appointment.Appointment
	canceled []appointment.Detail
}

func (n *recordingNotifier) Booked(_ context.Context, a appointment.Appointment) {
	n.booked = append(n.booked, a)
}

func (n *recordingNotifier) Canceled(_ context.Context, d appointment.Detail) {
	n.canceled = append(n.canceled, d)
}
