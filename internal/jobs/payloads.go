package jobs

import "time"

type MailPerson struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// AppointmentRef carries everything the mail needs so the worker never
// reads the record store.
type AppointmentRef struct {
	ID            int64      `json:"id"`
	Date          time.Time  `json:"date"`
	FormattedDate string     `json:"formatted_date"`
	Provider      MailPerson `json:"provider"`
	User          MailPerson `json:"user"`
}

type MailEnvelope struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Context  map[string]string `json:"context"`
}

// CancellationMailPayload is the body of a CancellationMail job.
type CancellationMailPayload struct {
	Appointment AppointmentRef `json:"appointment"`
	Mail        MailEnvelope   `json:"mail"`
}
