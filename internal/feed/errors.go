package feed

import "fmt"

// TransportError means the upstream could not be reached or the response
// body could not be read (DNS, connection refused, timeout, ...).
type TransportError struct {
	Source string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: transport error: %v", e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UpstreamError means the upstream answered with a non-success status.
type UpstreamError struct {
	Source     string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("fetch %s: upstream returned status %d", e.Source, e.StatusCode)
}
