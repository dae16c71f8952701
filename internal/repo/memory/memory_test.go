package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/job"
	"github.com/geocoder89/bookinghub/internal/domain/notification"
	"github.com/geocoder89/bookinghub/internal/domain/user"
)

func seed() (*UsersRepo, *AppointmentsRepo) {
	users := NewUsersRepo()
	users.Add(user.User{ID: 1, Name: "Ana", Email: "ana@example.com"})
	users.Add(user.User{ID: 7, Name: "Diego", Email: "diego@example.com", Provider: true,
		Avatar: user.NewAvatar(3, "diego.png", "http://localhost:3333")})
	return users, NewAppointmentsRepo(users)
}

func TestAppointmentsRepo_ConcurrentCreateOneWinner(t *testing.T) {
	_, repo := seed()
	slot := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		taken   int
		workers = 20
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(context.Background(), appointment.Appointment{UserID: 1, ProviderID: 7, Date: slot})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, appointment.ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || taken != workers-1 {
		t.Fatalf("expected exactly one winner, got wins=%d taken=%d", wins, taken)
	}
}

func TestAppointmentsRepo_CanceledFreesSlot(t *testing.T) {
	_, repo := seed()
	ctx := context.Background()
	slot := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)

	a, err := repo.Create(ctx, appointment.Appointment{UserID: 1, ProviderID: 7, Date: slot})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	now := time.Now().UTC()
	a.CanceledAt = &now
	if _, err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	if _, err := repo.FindActiveBySlot(ctx, 7, slot); !errors.Is(err, appointment.ErrNotFound) {
		t.Fatalf("expected slot free, got %v", err)
	}
	if _, err := repo.Create(ctx, appointment.Appointment{UserID: 1, ProviderID: 7, Date: slot}); err != nil {
		t.Fatalf("expected rebooking to succeed, got %v", err)
	}
}

func TestAppointmentsRepo_SaveRejectsSecondCancel(t *testing.T) {
	_, repo := seed()
	ctx := context.Background()

	a, err := repo.Create(ctx, appointment.Appointment{UserID: 1, ProviderID: 7, Date: time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	first := time.Now().UTC()
	a.CanceledAt = &first
	if _, err := repo.Save(ctx, a); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	second := first.Add(time.Minute)
	a.CanceledAt = &second
	if _, err := repo.Save(ctx, a); !errors.Is(err, appointment.ErrAlreadyCanceled) {
		t.Fatalf("expected ErrAlreadyCanceled, got %v", err)
	}
	d, err := repo.GetDetail(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetDetail error: %v", err)
	}
	if !d.CanceledAt.Equal(first) {
		t.Fatalf("canceled_at overwritten: %v", d.CanceledAt)
	}

	if _, err := repo.Save(ctx, appointment.Appointment{ID: 999, CanceledAt: &second}); !errors.Is(err, appointment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAppointmentsRepo_DetailAndList(t *testing.T) {
	_, repo := seed()
	ctx := context.Background()

	later, _ := repo.Create(ctx, appointment.Appointment{UserID: 1, ProviderID: 7, Date: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)})
	sooner, _ := repo.Create(ctx, appointment.Appointment{UserID: 1, ProviderID: 7, Date: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)})

	d, err := repo.GetDetail(ctx, later.ID)
	if err != nil {
		t.Fatalf("GetDetail error: %v", err)
	}
	if d.Provider.Email != "diego@example.com" || d.User.Name != "Ana" {
		t.Fatalf("unexpected detail %+v", d)
	}

	items, err := repo.ListByUser(ctx, 1, 20, 0)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(items) != 2 || items[0].ID != sooner.ID {
		t.Fatalf("expected ascending by date, got %+v", items)
	}
	if items[0].Provider.Avatar == nil || items[0].Provider.Avatar.URL != "http://localhost:3333/files/diego.png" {
		t.Fatalf("expected provider avatar, got %+v", items[0].Provider.Avatar)
	}

	if _, err := repo.GetDetail(ctx, 999); !errors.Is(err, appointment.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNotificationsRepo_MarkReadOnlyRecipient(t *testing.T) {
	repo := NewNotificationsRepo()
	ctx := context.Background()

	n, _ := repo.Create(ctx, notification.Notification{Content: "Novo agendamento", UserID: 7})

	if _, err := repo.MarkRead(ctx, 1, n.ID); !errors.Is(err, notification.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}

	got, err := repo.MarkRead(ctx, 7, n.ID)
	if err != nil {
		t.Fatalf("MarkRead error: %v", err)
	}
	if !got.Read {
		t.Fatalf("expected read")
	}
}

func TestNotificationsRepo_ListNewestFirst(t *testing.T) {
	repo := NewNotificationsRepo()
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_, _ = repo.Create(ctx, notification.Notification{Content: "n", UserID: 7})
	}
	_, _ = repo.Create(ctx, notification.Notification{Content: "other", UserID: 1})

	list, err := repo.ListByUser(ctx, 7, 20)
	if err != nil {
		t.Fatalf("ListByUser error: %v", err)
	}
	if len(list) != 20 {
		t.Fatalf("expected 20, got %d", len(list))
	}
	if list[0].ID != 25 {
		t.Fatalf("expected newest first, got id %d", list[0].ID)
	}
}

func TestJobsRepo_Lifecycle(t *testing.T) {
	repo := NewJobsRepo()
	ctx := context.Background()
	key := "appointment:cancel:1"

	first, _ := repo.Enqueue(ctx, job.CreateRequest{Type: "CancellationMail", IdempotencyKey: &key, MaxAttempts: 3})
	second, _ := repo.Enqueue(ctx, job.CreateRequest{Type: "CancellationMail", IdempotencyKey: &key})
	if first.ID != second.ID {
		t.Fatalf("expected idempotent enqueue")
	}

	claimed, err := repo.ClaimNext(ctx, "w1")
	if err != nil {
		t.Fatalf("ClaimNext error: %v", err)
	}
	if _, err := repo.ClaimNext(ctx, "w2"); !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("expected no second claim, got %v", err)
	}

	if err := repo.Reschedule(ctx, claimed.ID, time.Now().Add(time.Hour), "smtp down"); err != nil {
		t.Fatalf("Reschedule error: %v", err)
	}
	if _, err := repo.ClaimNext(ctx, "w1"); !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("expected delayed job not claimable, got %v", err)
	}

	repo.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	again, err := repo.ClaimNext(ctx, "w1")
	if err != nil {
		t.Fatalf("ClaimNext after delay: %v", err)
	}
	if again.Attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", again.Attempts)
	}

	if err := repo.MarkDone(ctx, again.ID); err != nil {
		t.Fatalf("MarkDone error: %v", err)
	}
	got, _ := repo.GetByID(ctx, again.ID)
	if got.Status != job.StatusDone || got.LockedBy != nil {
		t.Fatalf("unexpected final job %+v", got)
	}
}
