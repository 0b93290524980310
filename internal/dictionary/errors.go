package dictionary

import (
	"errors"
	"fmt"
)

// Error taxonomy. Run failures wrap one of the first three; synchronous
// operations surface the rest.
var (
	ErrRemoteRequestFailed   = errors.New("remote request failed")
	ErrDeserializationFailed = errors.New("failed to deserialise remote payload")
	ErrTaskFailure           = errors.New("fetch task failed")
	ErrIOFailure             = errors.New("artifact io failure")
	ErrEntryExists           = errors.New("dictionary already exists")
	ErrNotFound              = errors.New("dictionary does not exist")
	ErrInvalidArgument       = errors.New("invalid argument")
)

// EntryExistsError reports a rejected submission and the status of the live entry.
type EntryExistsError struct {
	ID     string
	Status Status
}

func (e *EntryExistsError) Error() string {
	return fmt.Sprintf("a dictionary already exists with status: %s", e.Status.Label())
}

// Is lets errors.Is match ErrEntryExists.
func (e *EntryExistsError) Is(target error) bool {
	return target == ErrEntryExists
}

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
