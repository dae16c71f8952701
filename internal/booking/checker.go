package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
)

type SlotFinder interface {
	FindActiveBySlot(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error)
}

// Checker answers whether a provider is free at an exact slot start.
// Callers align the slot; the checker compares instants as given.
type Checker struct {
	store SlotFinder
}

func NewChecker(store SlotFinder) *Checker {
	return &Checker{store: store}
}

func (c *Checker) IsAvailable(ctx context.Context, providerID int64, slotStart time.Time) (bool, error) {
	_, err := c.store.FindActiveBySlot(ctx, providerID, slotStart)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, appointment.ErrNotFound) {
		return true, nil
	}
	return false, fmt.Errorf("check availability: %w", err)
}
