package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies a failed backend call.
type ErrorKind int

const (
	// KindUnknown is any failure that fits no other kind.
	KindUnknown ErrorKind = iota
	// KindNetwork means no HTTP response was received.
	KindNetwork
	// KindRejected means the backend answered with an error status and a message.
	KindRejected
	// KindMalformed means a success response did not match the endpoint schema.
	KindMalformed
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindRejected:
		return "rejected"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method that reaches the transport.
type Error struct {
	Kind    ErrorKind
	Op      string // endpoint name, e.g. "login"
	Status  int    // HTTP status, 0 when no response
	Message string // backend message, verbatim
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	case e.Status != 0:
		return fmt.Sprintf("%s: %s error (status %d)", e.Op, e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) ErrorKind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UnreachableMessage is shown when the backend cannot be reached.
const UnreachableMessage = "Cannot reach the server. Please check if the backend is running."

// UserMessage maps err to the text shown to the user: a distinct message for
// an unreachable backend, the backend's own message when it rejected the
// request, and fallback otherwise.
func UserMessage(err error, fallback string) string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return fallback
	}
	switch apiErr.Kind {
	case KindNetwork:
		return UnreachableMessage
	case KindRejected:
		return apiErr.Message
	default:
		return fallback
	}
}

func transportError(op string, err error) *Error {
	kind := KindUnknown
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		// caller gave up; not the backend's fault
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		kind = KindNetwork
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func statusError(op string, status int, body []byte) *Error {
	msg := backendMessage(body)
	kind := KindUnknown
	if msg != "" {
		kind = KindRejected
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: msg}
}

// backendMessage extracts {"message": ...} or {"error": ...} from an error body.
func backendMessage(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if m := strings.TrimSpace(payload.Message); m != "" {
		return m
	}
	var s string
	if err := json.Unmarshal(payload.Error, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
