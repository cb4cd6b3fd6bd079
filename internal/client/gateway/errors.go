package gateway

import (
	"errors"
	"fmt"

	"github.com/avdeyev/catchdex/internal/common"
)

var (
	// ErrUnavailable marks a network-class failure: the server could not
	// be reached at all (transport error, timeout, 502/503/504). It must
	// never be treated as an application rejection.
	ErrUnavailable = errors.New("server unavailable")

	// ErrUnauthorized marks an invalid or expired session. It is an
	// application-class error: queued work is not retried against it.
	ErrUnauthorized = common.ErrUnauthorized
)

// APIError is an application-class rejection: the server answered and said
// no (validation, not-found, conflict).
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d", e.Status)
}

// IsUnavailable reports whether err is network-class. Everything else
// returned by the gateway is application-class.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
