package dispatch

import "fmt"

// DeliveryError describes a failed webhook delivery: either a transport
// error or a non-2xx response.
type DeliveryError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dispatch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("dispatch %s: status %d", e.URL, e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
