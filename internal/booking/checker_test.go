package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/bookinghub/internal/domain/appointment"
)

type slotFinderFunc func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error)

func (f slotFinderFunc) FindActiveBySlot(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
	return f(ctx, providerID, date)
}

func TestChecker_IsAvailable(t *testing.T) {
	slot := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	boom := errors.New("db down")

	tests := []struct {
		name    string
		find    slotFinderFunc
		want    bool
		wantErr error
	}{
		{
			name: "free",
			find: func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
				return appointment.Appointment{}, appointment.ErrNotFound
			},
			want: true,
		},
		{
			name: "taken",
			find: func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
				return appointment.Appointment{ID: 1, ProviderID: providerID, Date: date}, nil
			},
			want: false,
		},
		{
			name: "store error",
			find: func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
				return appointment.Appointment{}, boom
			},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewChecker(tt.find).IsAvailable(context.Background(), 7, slot)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestChecker_DoesNotRound(t *testing.T) {
	var seen time.Time
	c := NewChecker(slotFinderFunc(func(ctx context.Context, providerID int64, date time.Time) (appointment.Appointment, error) {
		seen = date
		return appointment.Appointment{}, appointment.ErrNotFound
	}))

	in := time.Date(2024, 6, 1, 15, 37, 0, 0, time.UTC)
	if _, err := c.IsAvailable(context.Background(), 7, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen.Equal(in) {
		t.Fatalf("expected checker to query %s as given, got %s", in, seen)
	}
}

func TestParseDate(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2024-06-01T15:37:00Z", time.Date(2024, 6, 1, 15, 37, 0, 0, time.UTC)},
		{"2024-06-01T15:37:00.123Z", time.Date(2024, 6, 1, 15, 37, 0, 123000000, time.UTC)},
		{"2024-06-01T15:37", time.Date(2024, 6, 1, 15, 37, 0, 0, saoPaulo)},
		{"2024-06-01 15:37:10", time.Date(2024, 6, 1, 15, 37, 10, 0, saoPaulo)},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.raw, saoPaulo)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tt.raw, err)
		}
		if !got.Equal(tt.want) {
			t.Fatalf("%q: expected %s, got %s", tt.raw, tt.want, got)
		}
	}

	if _, err := ParseDate("2024-06-01", saoPaulo); err == nil {
		t.Fatalf("expected date without time to be rejected")
	}
}
