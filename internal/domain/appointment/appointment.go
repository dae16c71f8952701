package appointment

import (
	"errors"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/user"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrSlotTaken       = errors.New("appointment slot already taken")
	ErrAlreadyCanceled = errors.New("appointment already canceled")
)

type Appointment struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	ProviderID int64      `json:"provider_id"`
	Date       time.Time  `json:"date"`
	CanceledAt *time.Time `json:"canceled_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (a Appointment) IsCanceled() bool {
	return a.CanceledAt != nil
}

// Party is the slice of a User an appointment is loaded with.
type Party struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Detail is an appointment joined with both the booking user and the provider.
type Detail struct {
	Appointment
	Provider Party `json:"provider"`
	User     Party `json:"user"`
}

type ProviderSummary struct {
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Avatar *user.Avatar `json:"avatar"`
}

// ListItem is the row shape of GET /appointments.
type ListItem struct {
	ID       int64           `json:"id"`
	Date     time.Time       `json:"date"`
	Provider ProviderSummary `json:"provider"`
}

type CreateAppointmentRequest struct {
	ProviderID *int64 `json:"provider_id" binding:"required,gt=0"`
	Date       string `json:"date" binding:"required"`
}
