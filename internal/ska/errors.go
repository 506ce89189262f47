package ska

import (
	"errors"
	"fmt"
)

// ErrTooSmall is matched by every size-related decode failure.
var ErrTooSmall = errors.New("ska: buffer too small")

// SizeError reports a buffer shorter than the header or the computed layout.
type SizeError struct {
	Required int64
	Actual   int64
}

func (e *SizeError) Error() string {
	if e.Required == HeaderSize {
		return fmt.Sprintf("ska: file too small to contain a header: need %d bytes, have %d bytes", e.Required, e.Actual)
	}
	return fmt.Sprintf("ska: file too small for expected layout: need %d bytes, have %d bytes", e.Required, e.Actual)
}

func (e *SizeError) Is(target error) bool { return target == ErrTooSmall }
