package fault

import (
	"errors"
	"fmt"
)

var (
	// ErrCoordination is reported when a multi-participant write could not be
	// applied to every participant. Nothing was committed.
	ErrCoordination = errors.New("coordination failure")

	// ErrPartialCommit is reported when a participant failed to commit after
	// at least one other participant committed. It wraps ErrCoordination.
	ErrPartialCommit = fmt.Errorf("%w: partial commit", ErrCoordination)
)
