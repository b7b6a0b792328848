package features

import (
	"errors"
	"fmt"
)

// ErrUpstreamIO marks failures of the dataset collaborators: missing files,
// undecodable audio, malformed index or annotation records
var ErrUpstreamIO = errors.New("upstream I/O failure")

// ItemError reports the failure of one dataset item
type ItemError struct {
	Index int    // Position in the dataset index
	ID    string // Chunk identifier
	Err   error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.ID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func upstream(op, id string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrUpstreamIO, op, id, err)
}
