package notifications

import (
	"context"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"strconv"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
	"github.com/geocoder89/bookinghub/internal/domain/job"
	"github.com/geocoder89/bookinghub/internal/domain/notification"
	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/geocoder89/bookinghub/internal/jobs"
)

const (
	CancellationTemplate = "cancellation"
	CancellationSubject  = "Agendamento cancelado"
	cancellationAttempts = 10
)

type UserReader interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type NotificationWriter interface {
	Create(ctx context.Context, n notification.Notification) (notification.Notification, error)
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, req job.CreateRequest) (job.Job, error)
}

type Config struct {
	Location *time.Location
	// Timeout bounds each side effect, independent of the request context.
	Timeout time.Duration
}

// Dispatcher emits booking side effects: an in-app notice to the provider
// on booking and a queued email on cancellation. Delivery is at most once
// and best effort; failures are logged and dropped.
type Dispatcher struct {
	users         UserReader
	notifications NotificationWriter
	queue         JobEnqueuer
	cfg           Config
	log           *slog.Logger
}

func NewDispatcher(users UserReader, notifications NotificationWriter, queue JobEnqueuer, cfg Config, log *slog.Logger) *Dispatcher {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		users:         users,
		notifications: notifications,
		queue:         queue,
		cfg:           cfg,
		log:           log,
	}
}

func (d *Dispatcher) Booked(ctx context.Context, a appointment.Appointment) {
	ctx, cancel := d.detach(ctx)
	defer cancel()

	if err := d.booked(ctx, a); err != nil {
		d.log.WarnContext(ctx, "notification.booked_failed", "appointment_id", a.ID, "err", err)
	}
}

func (d *Dispatcher) booked(ctx context.Context, a appointment.Appointment) error {
	requester, err := d.users.GetByID(ctx, a.UserID)
	if err != nil {
		return fmt.Errorf("load requester: %w", err)
	}

	content := fmt.Sprintf("Novo agendamento de %s para %s", requester.Name, FormatSlot(a.Date, d.cfg.Location))

	_, err = d.notifications.Create(ctx, notification.Notification{
		Content: content,
		UserID:  a.ProviderID,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (d *Dispatcher) Canceled(ctx context.Context, detail appointment.Detail) {
	ctx, cancel := d.detach(ctx)
	defer cancel()

	j, err := d.canceled(ctx, detail)
	if err != nil {
		d.log.WarnContext(ctx, "notification.cancellation_mail_failed", "appointment_id", detail.ID, "err", err)
		return
	}
	d.log.InfoContext(ctx, "notification.cancellation_mail_enqueued", "appointment_id", detail.ID, "job_id", j.ID)
}

func (d *Dispatcher) canceled(ctx context.Context, detail appointment.Detail) (job.Job, error) {
	payload := CancellationMail(detail, d.cfg.Location)

	raw, err := jobs.EncodePayload(jobs.JobCancellationMail, payload)
	if err != nil {
		return job.Job{}, err
	}

	key := "appointment:cancel:" + strconv.FormatInt(detail.ID, 10)
	return d.queue.Enqueue(ctx, job.CreateRequest{
		Type:           jobs.JobCancellationMail.String(),
		Payload:        raw,
		MaxAttempts:    cancellationAttempts,
		IdempotencyKey: &key,
	})
}

// CancellationMail resolves everything the mail needs up front so the
// worker never reads the store.
func CancellationMail(detail appointment.Detail, loc *time.Location) jobs.CancellationMailPayload {
	formatted := FormatSlot(detail.Date, loc)

	return jobs.CancellationMailPayload{
		Appointment: jobs.AppointmentRef{
			ID:            detail.ID,
			Date:          detail.Date,
			FormattedDate: formatted,
			Provider:      jobs.MailPerson{Name: detail.Provider.Name, Email: detail.Provider.Email},
			User:          jobs.MailPerson{Name: detail.User.Name},
		},
		Mail: jobs.MailEnvelope{
			Template: CancellationTemplate,
			To:       (&netmail.Address{Name: detail.Provider.Name, Address: detail.Provider.Email}).String(),
			Subject:  CancellationSubject,
			Context: map[string]string{
				"provider": detail.Provider.Name,
				"user":     detail.User.Name,
				"date":     formatted,
			},
		},
	}
}

func (d *Dispatcher) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
}
