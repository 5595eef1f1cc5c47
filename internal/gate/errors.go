package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the credential did not resolve to an identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoEntitlement means the caller has no active subscription.
	ErrNoEntitlement = errors.New("no_entitlement")
	// ErrRateLimited means the sliding-window throttle rejected the call.
	ErrRateLimited = errors.New("rate_limited")
)

// QuotaExceededError is returned when the precomputed request cost does not
// fit the remaining monthly cap. It carries the current numbers so the
// failure payload can report them.
type QuotaExceededError struct {
	Used int64
	Cost int64
	Cap  int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: used %d + cost %d > cap %d", e.Used, e.Cost, e.Cap)
}
