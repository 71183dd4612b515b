package storage

import (
	"errors"
	"fmt"

	"github.com/raidwatch/raidwatch-tgbot/tracking"
)

// retryConflict - run a store mutation, retrying a detected write
// conflict once. A second conflict is reported as unavailable.
func retryConflict(run func() error, conflict error) error {
	err := run()
	if !errors.Is(err, conflict) {
		return err
	}

	err = run()
	if errors.Is(err, conflict) {
		return fmt.Errorf("%w: %w", tracking.ErrStoreUnavailable, tracking.ErrConflict)
	}

	return err
}
