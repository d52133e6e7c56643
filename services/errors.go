package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a lifecycle failure. Handlers map kinds to status codes.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindGone         Kind = "gone"
	KindConflict     Kind = "conflict"
	KindInvalidInput Kind = "invalid_input"
	KindUpstream     Kind = "upstream_failure"
)

// Error is a typed lifecycle failure with a caller-facing message.
type Error struct {
	Kind Kind
	Msg  string

	sentinel *Error
	cause    error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Msg + ": " + e.cause.Error()
	}
	return e.Msg
}

// Unwrap exposes both the sentinel a detailed error was derived from and
// the underlying cause.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.sentinel != nil {
		errs = append(errs, e.sentinel)
	}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// detail derives a more specific error that still matches the sentinel.
func (e *Error) detail(msg string, cause error) *Error {
	return &Error{Kind: e.Kind, Msg: msg, sentinel: e, cause: cause}
}

var (
	ErrEventNotFound       = newError(KindNotFound, "Event not found")
	ErrEventEnded          = newError(KindGone, "Event has ended")
	ErrEventFull           = newError(KindConflict, "Event is full")
	ErrEventExists         = newError(KindConflict, "Event code already exists")
	ErrUsernameTaken       = newError(KindConflict, "Username already taken")
	ErrParticipantNotFound = newError(KindNotFound, "Participant not found")
	ErrParticipantExists   = newError(KindConflict, "Participant id already exists")

	ErrInvalidUsername    = newError(KindInvalidInput, "Username must be 2-30 characters of letters, digits, '_' or '-'")
	ErrInvalidEvent       = newError(KindInvalidInput, "Invalid event")
	ErrInvalidContentType = newError(KindInvalidInput, "Invalid file type. Must be PNG or JPEG.")
	ErrAvatarMissing      = newError(KindInvalidInput, "Avatar must be uploaded before registration")
	ErrMissingAvatar      = newError(KindInvalidInput, "Missing avatar file")
	ErrMissingEvidence    = newError(KindInvalidInput, "Missing evidence file")
	ErrOutOfBounds        = newError(KindInvalidInput, "Coordinates are outside the map")
	ErrInvalidOverride    = newError(KindInvalidInput, "completion_percentage must be between 0 and 100")

	ErrUpstream = newError(KindUpstream, "Asset storage failed")
)

// KindOf returns the kind of the first *Error in err's chain, or "" when
// err is not a lifecycle failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the caller-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return "internal server error"
}

func invalidContentType(role string) error {
	return ErrInvalidContentType.detail(
		fmt.Sprintf("Invalid %s file type. Must be PNG or JPEG.", role), nil)
}

func missingAvatar(role string) error {
	return ErrMissingAvatar.detail("Missing file: "+role, nil)
}

func missingEvidence(names []string) error {
	return ErrMissingEvidence.detail(
		"Missing evidence file(s): "+strings.Join(names, ", "), nil)
}

func upstreamFailure(assets []string, cause error) error {
	return ErrUpstream.detail(
		"Failed to store "+strings.Join(assets, ", ")+"; retry the upload", cause)
}
