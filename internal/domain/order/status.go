package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/venue-orders/internal/domain/apperr"
)

// Status is the fulfillment state of an order.
type Status string

const (
	// StatusEstablished means the order exists but is not yet being worked.
	StatusEstablished Status = "ESTABLISHED"
	// StatusProcessing means staff are preparing the order.
	StatusProcessing Status = "PROCESSING"
	// StatusReady means the order awaits pickup or delivery.
	StatusReady Status = "READY"
	// StatusDelivered is terminal.
	StatusDelivered Status = "DELIVERED"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusEstablished, StatusProcessing, StatusReady, StatusDelivered}

// ErrTerminalStatus is returned for any transition out of StatusDelivered.
var ErrTerminalStatus = errors.Wrap(apperr.ErrInvalidStatus, "order already delivered")

// ParseStatus converts s to a Status. Matching ignores case and surrounding
// whitespace; anything but the four known names fails with
// apperr.ErrInvalidStatus.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToUpper(strings.TrimSpace(s)))
	if v.Valid() {
		return v, nil
	}
	return "", errors.Wrap(apperr.ErrInvalidStatus, fmt.Sprintf("unknown status %q", s))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the position of s in the lifecycle, or -1 for unknown values.
func (s Status) Rank() int {
	for i, v := range Statuses {
		if v == s {
			return i
		}
	}
	return -1
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusDelivered
}

// CanTransitionTo checks that an order in s may be set to next. Staff drive
// the lifecycle, so any known status may be set from a non-terminal one,
// including moving back to correct a mistake.
func (s Status) CanTransitionTo(next Status) error {
	if !next.Valid() {
		return errors.Wrap(apperr.ErrInvalidStatus, fmt.Sprintf("unknown status %q", string(next)))
	}
	if s.Terminal() {
		return ErrTerminalStatus
	}
	return nil
}

func (s Status) String() string {
	return string(s)
}
