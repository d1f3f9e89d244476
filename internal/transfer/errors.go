package transfer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/joseph-ayodele/tax-portal/internal/common"
)

// Fallback messages used when the server gave no usable `error` field.
const (
	MsgRequestFailed = "Request failed"
	MsgNetworkError  = "Network error"
)

// Error is the normalized failure of a backend call.
type Error struct {
	Method    string
	Path      string
	Status    int // 0 when no response was received
	RequestID string
	Message   string // server-provided `error` text, may be empty
	Cause     error
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	default:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Cause)
	}
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{common.ErrTransport, e.Cause}
	}
	return []error{common.ErrTransport}
}

// Display is the single human-readable message for this failure.
func (e *Error) Display() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status == 0 {
		return MsgNetworkError
	}
	return MsgRequestFailed
}

// Transient reports whether repeating the identical request may succeed.
func (e *Error) Transient() bool {
	if e.Status == 0 {
		return e.Cause != nil && !errors.Is(e.Cause, context.Canceled)
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// UserMessage picks the message to show for err: validation text, then the
// server's `error` field, then fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var te *Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return fallback
}

// IsTransient reports whether err is a transfer failure worth retrying.
func IsTransient(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Transient()
}

// IsStatus reports whether err is a transfer failure with the given HTTP status.
func IsStatus(err error, status int) bool {
	var te *Error
	return errors.As(err, &te) && te.Status == status
}
