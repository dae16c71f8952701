package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/bookinghub/internal/clock"
	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/geocoder89/bookinghub/internal/observability"
)

const (
	// LeadTime is how long before its slot an appointment can still be canceled.
	LeadTime = 2 * time.Hour
	PageSize = 20
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type AppointmentStore interface {
	SlotFinder
	Create(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	GetDetail(ctx context.Context, id int64) (appointment.Detail, error)
	Save(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]appointment.ListItem, error)
}

// Notifier receives booking events after they are persisted. It must not
// block the caller on delivery and has no way to fail the request.
type Notifier interface {
	Booked(ctx context.Context, a appointment.Appointment)
	Canceled(ctx context.Context, d appointment.Detail)
}

type Deps struct {
	Users        UserStore
	Appointments AppointmentStore
	Notifier     Notifier
	Clock        clock.Clock
	Location     *time.Location
	Log          *slog.Logger
	Metrics      *observability.Prom
}

type Service struct {
	users        UserStore
	appointments AppointmentStore
	checker      *Checker
	notifier     Notifier
	clock        clock.Clock
	loc          *time.Location
	log          *slog.Logger
	metrics      *observability.Prom
}

func NewService(d Deps) *Service {
	if d.Clock == nil {
		d.Clock = clock.System{}
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}

	return &Service{
		users:        d.Users,
		appointments: d.Appointments,
		checker:      NewChecker(d.Appointments),
		notifier:     d.Notifier,
		clock:        d.Clock,
		loc:          d.Location,
		log:          d.Log,
		metrics:      d.Metrics,
	}
}

type CreateInput struct {
	RequesterID int64
	ProviderID  *int64
	Date        string
}

func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (appt appointment.Appointment, err error) {
	defer func() { s.record("create", err) }()

	if in.ProviderID == nil || *in.ProviderID <= 0 {
		return appointment.Appointment{}, invalid(ReasonSchema, "Validation fails")
	}
	raw, err := ParseDate(in.Date, s.loc)
	if err != nil {
		return appointment.Appointment{}, invalid(ReasonSchema, "Validation fails")
	}
	providerID := *in.ProviderID

	provider, err := s.users.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return appointment.Appointment{}, invalid(ReasonNotAProvider, "You can only create appointments with providers")
		}
		return appointment.Appointment{}, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Provider {
		return appointment.Appointment{}, invalid(ReasonNotAProvider, "You can only create appointments with providers")
	}

	slotStart := StartOfHour(raw, s.loc)

	if slotStart.Before(s.clock.Now()) {
		return appointment.Appointment{}, invalid(ReasonPastDate, "Past date is not allowed")
	}

	free, err := s.checker.IsAvailable(ctx, providerID, slotStart)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if !free {
		return appointment.Appointment{}, invalid(ReasonSlotTaken, "Appointment date is not available")
	}

	created, err := s.appointments.Create(ctx, appointment.Appointment{
		UserID:     in.RequesterID,
		ProviderID: providerID,
		Date:       slotStart,
	})
	if err != nil {
		// lost the race to a concurrent booking
		if errors.Is(err, appointment.ErrSlotTaken) {
			return appointment.Appointment{}, invalid(ReasonSlotTaken, "Appointment date is not available")
		}
		return appointment.Appointment{}, fmt.Errorf("create appointment: %w", err)
	}

	s.log.InfoContext(ctx, "appointment.created",
		"appointment_id", created.ID,
		"provider_id", created.ProviderID,
		"user_id", created.UserID,
		"date", created.Date.Format(time.RFC3339),
	)

	s.notifier.Booked(ctx, created)

	return created, nil
}

func (s *Service) CancelAppointment(ctx context.Context, requesterID, appointmentID int64) (d appointment.Detail, err error) {
	defer func() { s.record("cancel", err) }()

	detail, err := s.appointments.GetDetail(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			return appointment.Detail{}, ErrNotFound
		}
		return appointment.Detail{}, fmt.Errorf("load appointment: %w", err)
	}

	if detail.UserID != requesterID {
		return appointment.Detail{}, &AuthorizationError{
			Reason:  ReasonNotOwner,
			Message: "You do not have permission to cancel this appointment.",
		}
	}

	if detail.IsCanceled() {
		return appointment.Detail{}, invalid(ReasonAlreadyCanceled, "Appointment is already canceled.")
	}

	now := s.clock.Now()
	if detail.Date.Add(-LeadTime).Before(now) {
		return appointment.Detail{}, invalid(ReasonTooLate, "You can only cancel appointments 2 hours in advance.")
	}

	detail.CanceledAt = &now
	saved, err := s.appointments.Save(ctx, detail.Appointment)
	if err != nil {
		if errors.Is(err, appointment.ErrAlreadyCanceled) {
			return appointment.Detail{}, invalid(ReasonAlreadyCanceled, "Appointment is already canceled.")
		}
		if errors.Is(err, appointment.ErrNotFound) {
			return appointment.Detail{}, ErrNotFound
		}
		return appointment.Detail{}, fmt.Errorf("save appointment: %w", err)
	}
	detail.Appointment = saved

	s.log.InfoContext(ctx, "appointment.canceled",
		"appointment_id", detail.ID,
		"provider_id", detail.ProviderID,
		"user_id", detail.UserID,
	)

	s.notifier.Canceled(ctx, detail)

	return detail, nil
}

// ListAppointments returns one page of the requester's non-canceled
// appointments ordered by date. Past appointments are included.
func (s *Service) ListAppointments(ctx context.Context, requesterID int64, page int) ([]appointment.ListItem, error) {
	if page < 1 {
		return nil, invalid(ReasonInvalidPage, "Page must be a positive integer")
	}

	items, err := s.appointments.ListByUser(ctx, requesterID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if items == nil {
		items = []appointment.ListItem{}
	}
	return items, nil
}

type Slot struct {
	Time      string    `json:"time"`
	Value     time.Time `json:"value"`
	Available bool      `json:"available"`
}

// FirstHour and LastHour bound the bookable hours of a day, inclusive.
const (
	FirstHour = 8
	LastHour  = 19
)

// DayAvailability lists the bookable hours of day for a provider. A slot is
// available when it is in the future and nobody holds it.
func (s *Service) DayAvailability(ctx context.Context, providerID int64, day string) ([]Slot, error) {
	d, err := time.ParseInLocation("2006-01-02", day, s.loc)
	if err != nil {
		return nil, invalid(ReasonSchema, "Invalid date")
	}

	provider, err := s.users.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, invalid(ReasonNotAProvider, "Provider not found")
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if !provider.Provider {
		return nil, invalid(ReasonNotAProvider, "Provider not found")
	}

	now := s.clock.Now()
	slots := make([]Slot, 0, LastHour-FirstHour+1)

	for h := FirstHour; h <= LastHour; h++ {
		start := time.Date(d.Year(), d.Month(), d.Day(), h, 0, 0, 0, s.loc)

		available := false
		if start.After(now) {
			available, err = s.checker.IsAvailable(ctx, providerID, start.UTC())
			if err != nil {
				return nil, err
			}
		}

		slots = append(slots, Slot{
			Time:      fmt.Sprintf("%02d:00", h),
			Value:     start,
			Available: available,
		})
	}
	return slots, nil
}

func (s *Service) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = ReasonOf(err)
		if result == "" {
			if errors.Is(err, ErrNotFound) {
				result = "not_found"
			} else {
				result = "error"
			}
		}
	}
	s.metrics.ObserveBooking(op, result)
}

type nopNotifier struct{}

func (nopNotifier) Booked(context.Context, appointment.Appointment) {}
func (nopNotifier) Canceled(context.Context, appointment.Detail)    {}
