package fetcher

import "fmt"

// DecompressionError reports a malformed archive discovered mid-stream,
// after the HTTP response was already accepted.
type DecompressionError struct {
	// Err is the underlying gzip or tar error.
	Err error
}

// Error implements the error interface.
func (e *DecompressionError) Error() string {
	return fmt.Sprintf("malformed archive: %v", e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *DecompressionError) Unwrap() error {
	return e.Err
}

// FileSystemError reports a write or permission failure during extraction.
type FileSystemError struct {
	// Op names the failed filesystem operation.
	Op string
	// Err is the underlying filesystem error.
	Err error
}

// Error implements the error interface.
func (e *FileSystemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error for errors.Is/As.
func (e *FileSystemError) Unwrap() error {
	return e.Err
}
