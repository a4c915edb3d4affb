package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an outbound failure as retryable, carrying the HTTP
// status when one was involved (429 from the marketing service, 5xx from
// the alert webhook).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

var transientErrnos = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
	syscall.EPIPE,
}

// transientFragments catches errors from HTTP clients that wrap the network
// failure into a plain string before it reaches us.
var transientFragments = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is worth retrying: an explicit
// TransientError anywhere in the chain, a network timeout, a recognizable
// connection-level errno, or a known transient message fragment.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status is safe to retry.
// 429 is the marketing service's rate-limit answer; 408 and the 5xx range
// are server-side and carry no verdict on the payload.
func IsTransientHTTPStatus(statusCode int) bool {
	return statusCode == 408 || statusCode == 429 ||
		(statusCode >= 500 && statusCode <= 599)
}
