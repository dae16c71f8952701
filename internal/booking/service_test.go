package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/bookinghub/internal/clock"
	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/user"
)

const (
	clientID   int64 = 1
	otherID    int64 = 2
	providerID int64 = 7
)

type fixture struct {
	svc      *Service
	store    *fakeAppointments
	users    *fakeUsers
	notifier *recordingNotifier
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	return newFixtureIn(t, now, time.UTC)
}

func newFixtureIn(t *testing.T, now time.Time, loc *time.Location) *fixture {
	t.Helper()

	users := map[int64]user.User{
		clientID:   {ID: clientID, Name: "Ana", Email: "ana@example.com"},
		otherID:    {ID: otherID, Name: "Bruno", Email: "bruno@example.com"},
		providerID: {ID: providerID, Name: "Diego", Email: "diego@example.com", Provider: true},
	}
	store := newFakeAppointments(users)
	fu := &fakeUsers{byID: users}
	n := &recordingNotifier{}

	svc := NewService(Deps{
		Users:        fu,
		Appointments: store,
		Notifier:     n,
		Clock:        clock.Fixed{T: now},
		Location:     loc,
		Log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	return &fixture{svc: svc, store: store, users: fu, notifier: n}
}

func ptr(v int64) *int64 { return &v }

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return v
}

func assertReason(t *testing.T, err error, want string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", want)
	}
	if got := ReasonOf(err); got != want {
		t.Fatalf("expected reason %q, got %q (err=%v)", want, got, err)
	}
}

func TestCreateAppointment_FloorsToHour(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))

	a, err := f.svc.CreateAppointment(context.Background(), CreateInput{
		RequesterID: clientID,
		ProviderID:  ptr(providerID),
		Date:        "2024-06-01T15:37:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if want := mustTime(t, "2024-06-01T15:00:00Z"); !a.Date.Equal(want) {
		t.Fatalf("expected date %s, got %s", want, a.Date)
	}
	if a.CanceledAt != nil {
		t.Fatalf("expected canceled_at nil, got %v", a.CanceledAt)
	}
	if a.UserID != clientID || a.ProviderID != providerID {
		t.Fatalf("unexpected parties %+v", a)
	}
	if len(f.notifier.booked) != 1 || f.notifier.booked[0].ID != a.ID {
		t.Fatalf("expected one booked notification for %d, got %+v", a.ID, f.notifier.booked)
	}
}

func TestCreateAppointment_FloorsAnyOffsetToHourGrid(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))

	a, err := f.svc.CreateAppointment(context.Background(), CreateInput{
		RequesterID: clientID,
		ProviderID:  ptr(providerID),
		Date:        "2024-06-01T15:37:12.345-03:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := mustTime(t, "2024-06-01T18:00:00Z"); !a.Date.Equal(want) {
		t.Fatalf("expected %s, got %s", want, a.Date)
	}
	if a.Date.Location() != time.UTC {
		t.Fatalf("expected stored date in UTC, got %s", a.Date.Location())
	}
}

func TestCreateAppointment_HalfHourOffsetLandsOnHour(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	ctx := context.Background()

	// 15:37+05:30 is 10:07Z, so it belongs to the 10:00Z slot
	a, err := f.svc.CreateAppointment(ctx, CreateInput{
		RequesterID: clientID,
		ProviderID:  ptr(providerID),
		Date:        "2024-06-01T15:37:00+05:30",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := mustTime(t, "2024-06-01T10:00:00Z"); !a.Date.Equal(want) {
		t.Fatalf("expected %s, got %s", want, a.Date)
	}

	_, err = f.svc.CreateAppointment(ctx, CreateInput{
		RequesterID: otherID,
		ProviderID:  ptr(providerID),
		Date:        "2024-06-01T10:05:00Z",
	})
	assertReason(t, err, ReasonSlotTaken)

	slots, err := f.svc.DayAvailability(ctx, providerID, "2024-06-01")
	if err != nil {
		t.Fatalf("day availability: %v", err)
	}
	for _, sl := range slots {
		if sl.Time == "10:00" && sl.Available {
			t.Fatalf("10:00 should be taken")
		}
	}
}

func TestCreateAppointment_FloorsInDisplayLocation(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	f := newFixtureIn(t, mustTime(t, "2024-05-01T10:00:00Z"), loc)

	a, err := f.svc.CreateAppointment(context.Background(), CreateInput{
		RequesterID: clientID,
		ProviderID:  ptr(providerID),
		Date:        "2024-06-01T10:05:00Z",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 10:05Z is 15:35 local; the slot is 15:00 local, 09:30Z
	if want := mustTime(t, "2024-06-01T09:30:00Z"); !a.Date.Equal(want) {
		t.Fatalf("expected %s, got %s", want, a.Date)
	}
	if got := a.Date.In(loc); got.Minute() != 0 || got.Second() != 0 {
		t.Fatalf("expected slot on the local hour, got %s", got)
	}
}

func TestCreateAppointment_Schema(t *testing.T) {
	tests := []struct {
		name       string
		providerID *int64
		date       string
	}{
		{"missing provider", nil, "2024-06-01T15:00:00Z"},
		{"zero provider", ptr(0), "2024-06-01T15:00:00Z"},
		{"negative provider", ptr(-3), "2024-06-01T15:00:00Z"},
		{"missing date", ptr(providerID), ""},
		{"garbage date", ptr(providerID), "tomorrow at noon"},
		{"invalid calendar date", ptr(providerID), "2024-02-30T10:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
			_, err := f.svc.CreateAppointment(context.Background(), CreateInput{
				RequesterID: clientID,
				ProviderID:  tt.providerID,
				Date:        tt.date,
			})
			assertReason(t, err, ReasonSchema)
		})
	}
}

func TestCreateAppointment_NotAProvider(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		date string
	}{
		{"plain user, future date", otherID, "2024-06-01T15:00:00Z"},
		{"plain user, past date", otherID, "2020-01-01T15:00:00Z"},
		{"unknown user", 999, "2024-06-01T15:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
			_, err := f.svc.CreateAppointment(context.Background(), CreateInput{
				RequesterID: clientID,
				ProviderID:  ptr(tt.id),
				Date:        tt.date,
			})
			assertReason(t, err, ReasonNotAProvider)
			if len(f.store.rows) != 0 {
				t.Fatalf("expected nothing persisted")
			}
		})
	}
}

func TestCreateAppointment_PastDate(t *testing.T) {
	now := mustTime(t, "2024-06-01T15:20:00Z")

	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{"yesterday", "2024-05-31T16:00:00Z", true},
		// floors to 15:00, which is before 15:20
		{"current hour", "2024-06-01T15:40:00Z", true},
		{"next hour", "2024-06-01T16:00:00Z", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, now)
			_, err := f.svc.CreateAppointment(context.Background(), CreateInput{
				RequesterID: clientID,
				ProviderID:  ptr(providerID),
				Date:        tt.date,
			})
			if tt.wantErr {
				assertReason(t, err, ReasonPastDate)
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateAppointment_SlotTaken(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	ctx := context.Background()

	first, err := f.svc.CreateAppointment(ctx, CreateInput{RequesterID: clientID, ProviderID: ptr(providerID), Date: "2024-06-01T15:05:00Z"})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}

	_, err = f.svc.CreateAppointment(ctx, CreateInput{RequesterID: otherID, ProviderID: ptr(providerID), Date: "2024-06-01T15:50:00Z"})
	assertReason(t, err, ReasonSlotTaken)

	if got := f.store.get(first.ID); got.CanceledAt != nil {
		t.Fatalf("first booking must stay active")
	}
	if len(f.notifier.booked) != 1 {
		t.Fatalf("expected only the first booking notified, got %d", len(f.notifier.booked))
	}
}

func TestCreateAppointment_SlotFreedByCancellation(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	ctx := context.Background()

	first, err := f.svc.CreateAppointment(ctx, CreateInput{RequesterID: clientID, ProviderID: ptr(providerID), Date: "2024-06-01T15:00:00Z"})
	if err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := f.svc.CancelAppointment(ctx, clientID, first.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := f.svc.CreateAppointment(ctx, CreateInput{RequesterID: otherID, ProviderID: ptr(providerID), Date: "2024-06-01T15:00:00Z"}); err != nil {
		t.Fatalf("expected slot to be bookable again, got %v", err)
	}
}

func TestCreateAppointment_StoreUniqueViolationIsSlotTaken(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	f.store.createFn = func(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
		return appointment.Appointment{}, appointment.ErrSlotTaken
	}

	_, err := f.svc.CreateAppointment(context.Background(), CreateInput{RequesterID: clientID, ProviderID: ptr(providerID), Date: "2024-06-01T15:00:00Z"})
	assertReason(t, err, ReasonSlotTaken)
	if len(f.notifier.booked) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestCreateAppointment_StoreFailurePropagates(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	boom := errors.New("connection reset")
	f.store.findFn = func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
		return appointment.Appointment{}, boom
	}

	_, err := f.svc.CreateAppointment(context.Background(), CreateInput{RequesterID: clientID, ProviderID: ptr(providerID), Date: "2024-06-01T15:00:00Z"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error to propagate, got %v", err)
	}
	if ReasonOf(err) != "" {
		t.Fatalf("store failure must not be a rule rejection")
	}
}

func book(t *testing.T, f *fixture, requester int64, date string) appointment.Appointment {
	t.Helper()
	a, err := f.svc.CreateAppointment(context.Background(), CreateInput{RequesterID: requester, ProviderID: ptr(providerID), Date: date})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}

func TestCancelAppointment_Success(t *testing.T) {
	now := mustTime(t, "2024-06-01T12:00:00Z")
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	a := book(t, f, clientID, "2024-06-01T15:00:00Z")

	f.svc.clock = clock.Fixed{T: now}

	d, err := f.svc.CancelAppointment(context.Background(), clientID, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.CanceledAt == nil || !d.CanceledAt.Equal(now) {
		t.Fatalf("expected canceled_at %s, got %v", now, d.CanceledAt)
	}
	if stored := f.store.get(a.ID); stored.CanceledAt == nil {
		t.Fatalf("expected canceled_at persisted")
	}
	if d.Provider.Email != "diego@example.com" || d.User.Name != "Ana" {
		t.Fatalf("expected detail joined with parties, got %+v", d)
	}
	if len(f.notifier.canceled) != 1 || f.notifier.canceled[0].ID != a.ID {
		t.Fatalf("expected cancellation notified, got %+v", f.notifier.canceled)
	}
}

func TestCancelAppointment_LeadTime(t *testing.T) {
	tests := []struct {
		name    string
		now     string
		wantErr bool
	}{
		{"three hours before", "2024-06-01T12:00:00Z", false},
		{"exactly two hours before", "2024-06-01T13:00:00Z", false},
		{"one hour before", "2024-06-01T14:00:00Z", true},
		{"after start", "2024-06-01T15:30:00Z", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
			a := book(t, f, clientID, "2024-06-01T15:37:00Z")
			f.svc.clock = clock.Fixed{T: mustTime(t, tt.now)}

			_, err := f.svc.CancelAppointment(context.Background(), clientID, a.ID)

			if tt.wantErr {
				assertReason(t, err, ReasonTooLate)
				if f.store.get(a.ID).CanceledAt != nil {
					t.Fatalf("canceled_at must stay nil")
				}
				if f.store.saves != 0 || len(f.notifier.canceled) != 0 {
					t.Fatalf("rejected cancellation must not save or notify")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCancelAppointment_LostRace(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	a := book(t, f, clientID, "2024-06-01T15:00:00Z")
	f.svc.clock = clock.Fixed{T: mustTime(t, "2024-06-01T12:00:00Z")}

	stale, err := f.store.GetDetail(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if _, err := f.svc.CancelAppointment(context.Background(), clientID, a.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	// a second request that read the row before the first one committed
	f.store.detailFn = func(context.Context, int64) (appointment.Detail, error) { return stale, nil }
	_, err = f.svc.CancelAppointment(context.Background(), clientID, a.ID)

	assertReason(t, err, ReasonAlreadyCanceled)
	if len(f.notifier.canceled) != 1 {
		t.Fatalf("expected a single cancellation notice, got %d", len(f.notifier.canceled))
	}
}

func TestCancelAppointment_NotOwner(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	a := book(t, f, clientID, "2024-06-01T15:00:00Z")

	_, err := f.svc.CancelAppointment(context.Background(), otherID, a.ID)

	var ae *AuthorizationError
	if !errors.As(err, &ae) || ae.Reason != ReasonNotOwner {
		t.Fatalf("expected not_owner authorization error, got %v", err)
	}
	if f.store.get(a.ID).CanceledAt != nil || f.store.saves != 0 {
		t.Fatalf("record must stay unmutated")
	}
	if len(f.notifier.canceled) != 0 {
		t.Fatalf("expected no notification")
	}
}

func TestCancelAppointment_NotOwnerCheckedBeforeLeadTime(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	a := book(t, f, clientID, "2024-06-01T15:00:00Z")
	f.svc.clock = clock.Fixed{T: mustTime(t, "2024-06-01T14:30:00Z")}

	_, err := f.svc.CancelAppointment(context.Background(), otherID, a.ID)
	assertReason(t, err, ReasonNotOwner)
}

func TestCancelAppointment_AlreadyCanceled(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	a := book(t, f, clientID, "2024-06-01T15:00:00Z")

	first, err := f.svc.CancelAppointment(context.Background(), clientID, a.ID)
	if err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	f.svc.clock = clock.Fixed{T: mustTime(t, "2024-05-02T10:00:00Z")}
	_, err = f.svc.CancelAppointment(context.Background(), clientID, a.ID)
	assertReason(t, err, ReasonAlreadyCanceled)

	if got := f.store.get(a.ID).CanceledAt; got == nil || !got.Equal(*first.CanceledAt) {
		t.Fatalf("canceled_at must be set exactly once, got %v", got)
	}
}

func TestCancelAppointment_NotFound(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))

	_, err := f.svc.CancelAppointment(context.Background(), clientID, 404)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExample_BookThenCancelTooLate(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))

	a := book(t, f, clientID, "2024-06-01T15:37:00Z")
	if !a.Date.Equal(mustTime(t, "2024-06-01T15:00:00Z")) || a.CanceledAt != nil {
		t.Fatalf("unexpected stored appointment %+v", a)
	}

	f.svc.clock = clock.Fixed{T: mustTime(t, "2024-06-01T14:00:00Z")}
	_, err := f.svc.CancelAppointment(context.Background(), clientID, a.ID)
	assertReason(t, err, ReasonTooLate)
}

func TestListAppointments(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	ctx := context.Background()

	base := mustTime(t, "2024-06-01T00:00:00Z")
	for i := 0; i < 25; i++ {
		// book newest first to check ordering
		d := base.AddDate(0, 0, 25-i).Add(10 * time.Hour)
		book(t, f, clientID, d.Format(time.RFC3339))
	}
	book(t, f, otherID, base.Add(10*time.Hour).Format(time.RFC3339))

	page1, err := f.svc.ListAppointments(ctx, clientID, 1)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1) != PageSize {
		t.Fatalf("expected %d items, got %d", PageSize, len(page1))
	}
	for i := 1; i < len(page1); i++ {
		if page1[i].Date.Before(page1[i-1].Date) {
			t.Fatalf("expected ascending dates")
		}
	}

	page2, err := f.svc.ListAppointments(ctx, clientID, 2)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2) != 5 {
		t.Fatalf("expected 5 items on page 2, got %d", len(page2))
	}

	page3, err := f.svc.ListAppointments(ctx, clientID, 3)
	if err != nil {
		t.Fatalf("page 3: %v", err)
	}
	if page3 == nil || len(page3) != 0 {
		t.Fatalf("expected empty non-nil page, got %v", page3)
	}

	_, err = f.svc.ListAppointments(ctx, clientID, 0)
	assertReason(t, err, ReasonInvalidPage)
}

func TestListAppointments_IncludesPast(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-05-01T10:00:00Z"))
	a := book(t, f, clientID, "2024-06-01T15:00:00Z")

	f.svc.clock = clock.Fixed{T: mustTime(t, "2024-07-01T10:00:00Z")}
	items, err := f.svc.ListAppointments(context.Background(), clientID, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("expected past appointment %d listed, got %+v", a.ID, items)
	}
}

func TestDayAvailability(t *testing.T) {
	f := newFixture(t, mustTime(t, "2024-06-01T10:30:00Z"))
	ctx := context.Background()

	book(t, f, clientID, "2024-06-01T14:00:00Z")

	slots, err := f.svc.DayAvailability(ctx, providerID, "2024-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != LastHour-FirstHour+1 {
		t.Fatalf("expected %d slots, got %d", LastHour-FirstHour+1, len(slots))
	}

	byTime := map[string]bool{}
	for _, s := range slots {
		byTime[s.Time] = s.Available
	}

	cases := map[string]bool{
		"08:00": false, // past
		"10:00": false, // started
		"11:00": true,
		"14:00": false, // taken
		"19:00": true,
	}
	for slot, want := range cases {
		if byTime[slot] != want {
			t.Fatalf("slot %s: expected available=%v", slot, want)
		}
	}

	_, err = f.svc.DayAvailability(ctx, otherID, "2024-06-01")
	assertReason(t, err, ReasonNotAProvider)

	_, err = f.svc.DayAvailability(ctx, providerID, "01/06/2024")
	assertReason(t, err, ReasonSchema)
}
