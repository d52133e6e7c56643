package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/gosimple/slug"
	"github.com/samber/oops"

	"mission-control/metrics"
	"mission-control/models"
)

// CheckAdmission applies the admission gates in order: the event must be
// active (and not past ends_at), then it must have a free slot.
func CheckAdmission(e *models.Event, now time.Time) error {
	if !e.Active || e.HasEnded(now) {
		return ErrEventEnded
	}
	if e.IsFull() {
		return ErrEventFull
	}
	return nil
}

// EventRegistry answers read-only admission questions about events.
type EventRegistry struct {
	events  EventStore
	clock   Clock
	timeout time.Duration
}

func NewEventRegistry(events EventStore, clock Clock, timeout time.Duration) *EventRegistry {
	return &EventRegistry{events: events, clock: clock, timeout: callTimeout(timeout)}
}

// ValidateAdmission fails with ErrEventNotFound, ErrEventEnded or
// ErrEventFull, checked in that order. It never mutates the event.
func (r *EventRegistry) ValidateAdmission(ctx context.Context, code string) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	event, err := r.events.GetEvent(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := CheckAdmission(event, r.clock.Now()); err != nil {
		return nil, err
	}
	return event, nil
}

// CreateEventInput describes a new event. Code is used as given, after
// trimming; when it is empty it defaults to a slug of Name.
type CreateEventInput struct {
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	MaxParticipants int        `json:"max_participants"`
	EndsAt          *time.Time `json:"ends_at"`
	Active          *bool      `json:"active"`
}

// EventService manages events for operators.
type EventService struct {
	events  EventStore
	clock   Clock
	timeout time.Duration
	logger  *slog.Logger
}

func NewEventService(events EventStore, clock Clock, timeout time.Duration, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{events: events, clock: clock, timeout: callTimeout(timeout), logger: logger}
}

// CodeFromName derives an event code from a display name.
func CodeFromName(name string) string {
	return slug.Make(strings.TrimSpace(name))
}

// eventCode returns the explicit code verbatim or, failing that, the slug
// of the name. Participants join with the exact stored code.
func eventCode(in CreateEventInput) (string, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		code = CodeFromName(in.Name)
	}
	if code == "" {
		return "", ErrInvalidEvent.detail("code or name is required", nil)
	}
	if strings.ContainsFunc(code, func(r rune) bool { return r == '/' || unicode.IsSpace(r) }) {
		return "", ErrInvalidEvent.detail("code must not contain spaces or '/'", nil)
	}
	return code, nil
}

func (s *EventService) CreateEvent(ctx context.Context, in CreateEventInput) (*models.Event, error) {
	code, err := eventCode(in)
	if err != nil {
		return nil, err
	}
	if in.MaxParticipants < 0 {
		return nil, ErrInvalidEvent.detail("max_participants must not be negative", nil)
	}

	event := &models.Event{
		Code:            code,
		Name:            in.Name,
		Active:          true,
		MaxParticipants: in.MaxParticipants,
		EndsAt:          in.EndsAt,
		CreatedAt:       s.clock.Now(),
	}
	if event.MaxParticipants == 0 {
		event.MaxParticipants = models.DefaultMaxParticipants
	}
	if in.Active != nil {
		event.Active = *in.Active
	}
	if event.Name == "" {
		event.Name = code
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, oops.Code("EVENT_CREATE_FAILED").With("event_code", code).Wrap(err)
	}
	s.logger.InfoContext(ctx, "event created",
		"event_code", event.Code, "max_participants", event.MaxParticipants)
	return event, nil
}

func (s *EventService) GetEvent(ctx context.Context, code string) (*models.Event, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	event, err := s.events.GetEvent(ctx, code)
	if err != nil {
		return nil, oops.Code("EVENT_GET_FAILED").With("event_code", code).Wrap(err)
	}
	return event, nil
}

// CloseExpired deactivates every event whose end time has passed.
func (s *EventService) CloseExpired(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.events.CloseExpiredEvents(ctx, s.clock.Now())
	if err != nil {
		return 0, oops.Code("EVENT_EXPIRY_FAILED").Wrap(err)
	}
	if n > 0 {
		metrics.EventsClosed.Add(float64(n))
	}
	return n, nil
}

// DefaultCallTimeout bounds store and storage calls when no positive
// timeout is configured.
const DefaultCallTimeout = 15 * time.Second

func callTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultCallTimeout
	}
	return d
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, callTimeout(d))
}
