package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks a failure as safe to retry. Boundary clients wrap
// throttling and server-side errors in it so the retry loop can tell them
// apart from permanent ones like a 404 or a malformed response.
type TransientError struct {
	Err    error
	Status int // HTTP status when the failure came off the wire, else 0
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. status may be 0 for non-HTTP failures.
func Transient(err error, status int) *TransientError {
	return &TransientError{Err: err, Status: status}
}

// connErrors are the socket-level failures worth another attempt.
var connErrors = []error{
	syscall.ECONNRESET,
	syscall.ECONNREFUSED,
	syscall.ECONNABORTED,
}

// wireHints catches transient failures that only survive as text once an
// HTTP client has wrapped them.
var wireHints = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err, or anything in its chain, looks like a
// failure that a later attempt could succeed past: an explicit
// TransientError, a network timeout, a dropped connection.
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

	for _, ce := range connErrors {
		if errors.Is(err, ce) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range wireHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}

// ClassifyError labels an error "transient" or "permanent" for logs and
// failure records.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// RetryableStatus reports whether an HTTP status signals a server-side or
// throttling condition worth retrying.
func RetryableStatus(status int) bool {
	switch status {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}
