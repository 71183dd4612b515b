package tracking

import "errors"

var (
	// ErrNoParticipant - the referenced user has no tracked row.
	ErrNoParticipant = errors.New("no participant")

	// ErrConflict - concurrent write detected by the store.
	ErrConflict = errors.New("concurrent conflict")

	// ErrStoreUnavailable - the store failed or timed out; the
	// operation did not apply.
	ErrStoreUnavailable = errors.New("store unavailable")
)
