package models

import (
	"errors"
	"fmt"
)

// Domain failures. Precondition failures are returned to callers as typed
// errors so the transport layer can map them to a response the machine or
// UI can render; they are never raised as panics.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrInvalidAmount      = errors.New("points must be greater than zero")
	ErrRewardNotFound     = errors.New("reward not found")
	ErrRewardUnavailable  = errors.New("reward is not available")
	ErrOutOfStock         = errors.New("reward is out of stock")
	ErrRedemptionNotFound = errors.New("redemption not found")
	ErrInvalidStatus      = errors.New("invalid redemption status")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateAccount   = errors.New("card or email already registered")

	// ErrInternal wraps persistence failures after the enclosing
	// transaction has been rolled back. Never retried here; retry policy
	// belongs to the caller.
	ErrInternal = errors.New("internal error")
)

// InsufficientPointsError is returned when a balance cannot cover a
// redemption. It carries the required amount so the message shown on the
// machine display can name it.
type InsufficientPointsError struct {
	Required  int
	Available int
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: %d required, %d available", e.Required, e.Available)
}

// IsInsufficientPoints reports whether err is an InsufficientPointsError.
func IsInsufficientPoints(err error) bool {
	var ipe *InsufficientPointsError
	return errors.As(err, &ipe)
}
