package trade

import (
	"database/sql"
	"errors"
	"fmt"
)

// Error taxonomy for the session state machine and settlement. Callers match
// with errors.Is; the HTTP layer maps these to status codes.
var (
	// ErrNotFound covers missing sessions, history records, and items not
	// visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrForbidden covers wrong-role actions: non-participants reading,
	// non-initiators completing or deleting.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState covers guard failures: expired or completed sessions,
	// missing partner, acceptance not yet mutual.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvariantViolation is fatal to a settlement attempt: insufficient
	// quantity or an item the giver does not own. Never partially applied.
	ErrInvariantViolation = errors.New("invariant violation")
)

// mapRepoErr translates repository lookup failures into the taxonomy.
// Repositories wrap sql.ErrNoRows so errors.Is still sees it here.
func mapRepoErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, err)
	}
	return err
}
