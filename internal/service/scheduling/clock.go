package scheduling

import (
	"time"

	apperrors "github.com/medbook/clinic-api/pkg/errors"
)

// Scheduling time policy.
const (
	// SlotLength is the fixed length of every appointment.
	SlotLength = 59 * time.Minute
	// MinLeadTime is the minimum interval between "now" and an
	// appointment's start required to create, modify or cancel it.
	MinLeadTime = 15 * time.Minute
)

// Clock abstracts "now" so time-sensitive rules are testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NewClock returns the wall clock.
func NewClock() Clock { return systemClock{} }

// validateLeadTime rejects starts in the past and starts inside the
// lead-time window. The window check uses the absolute difference
// truncated to whole minutes, so a start slightly in the future but
// under 15 minutes away is rejected too: bookings must be locked in
// advance, and cancellations are gated the same way.
func validateLeadTime(start, now time.Time) error {
	if start.Before(now) {
		return apperrors.Conflict("appointments can only be created or modified at least 15 minutes before they start")
	}

	diff := start.Sub(now)
	if diff < 0 {
		diff = -diff
	}
	if diff.Truncate(time.Minute) < MinLeadTime {
		return apperrors.Conflict("appointments can only be created or modified at least 15 minutes before they start")
	}
	return nil
}

// availabilityWindow is the current hour-aligned slot: free for the
// rest of this hour, not free this instant.
func availabilityWindow(now time.Time) (time.Time, time.Time) {
	start := now.Truncate(time.Hour)
	return start, start.Add(SlotLength)
}
