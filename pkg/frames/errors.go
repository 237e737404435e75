package frames

import (
	"errors"
	"fmt"
)

// ErrInvalidPercentage is returned by Plan for a percentage that does not
// yield a sampling interval (zero, negative, NaN or infinite).
var ErrInvalidPercentage = errors.New("frames: percentage must be greater than 0")

// ExtractionError reports that the ffmpeg decode process did not succeed.
type ExtractionError struct {
	Input string
	// ExitCode is the ffmpeg exit status, -1 when it was killed or never exited normally.
	ExitCode int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: exit code %d: %v", e.Input, e.ExitCode, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// FilesystemError reports a failure preparing or reading the output directory.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
