package jobs

import (
	"context"
	"fmt"

	"github.com/geocoder89/bookinghub/internal/domain/job"
	"github.com/geocoder89/bookinghub/internal/mail"
	"github.com/geocoder89/bookinghub/internal/queue/worker"
)

// CancellationMailHandler sends the mail described by a CancellationMail job.
type CancellationMailHandler struct {
	sender mail.Sender
}

func NewCancellationMailHandler(sender mail.Sender) *CancellationMailHandler {
	return &CancellationMailHandler{sender: sender}
}

func (h *CancellationMailHandler) Handle(ctx context.Context, j job.Job) error {
	decoded, err := DecodePayload(j)
	if err != nil {
		return worker.Permanent(err)
	}

	p, ok := decoded.(CancellationMailPayload)
	if !ok {
		return worker.Permanent(ErrPayloadTypeMismatch)
	}

	err = h.sender.Send(ctx, mail.Message{
		To:       p.Mail.To,
		Subject:  p.Mail.Subject,
		Template: p.Mail.Template,
		Context:  p.Mail.Context,
	})
	if err != nil {
		err = fmt.Errorf("send cancellation mail for appointment %d: %w", p.Appointment.ID, err)
		if mail.IsMessageError(err) {
			return worker.Permanent(err)
		}
		return err
	}
	return nil
}

// Register wires every job handler onto w.
func Register(w *worker.Worker, sender mail.Sender) {
	w.Register(JobCancellationMail.String(), NewCancellationMailHandler(sender))
}
