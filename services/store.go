package services

import (
	"context"
	"time"

	"mission-control/models"
)

// EventStore persists events.
type EventStore interface {
	// GetEvent returns ErrEventNotFound when the code is unknown.
	GetEvent(ctx context.Context, code string) (*models.Event, error)

	// CreateEvent returns ErrEventExists when the code is taken.
	CreateEvent(ctx context.Context, event *models.Event) error

	// CloseExpiredEvents deactivates active events whose ends_at is not after now.
	CloseExpiredEvents(ctx context.Context, now time.Time) (int64, error)
}

// ParticipantStore persists participants.
type ParticipantStore interface {
	// CreateParticipant admits p into p.EventCode as one atomic step: it
	// re-checks admission, inserts p guarded by the (event_code, username)
	// uniqueness constraint and increments the event's participant_count.
	// A concurrent duplicate observes ErrUsernameTaken.
	CreateParticipant(ctx context.Context, p *models.Participant) error

	// GetParticipant returns ErrParticipantNotFound when id is unknown.
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)

	// GetParticipantByUsername returns ErrParticipantNotFound when no
	// participant of the event holds the username.
	GetParticipantByUsername(ctx context.Context, eventCode, username string) (*models.Participant, error)

	// MergeUpdate applies patch atomically and returns the resulting record.
	// An empty patch returns the current record without writing.
	MergeUpdate(ctx context.Context, id string, patch models.ParticipantPatch) (*models.Participant, error)
}

// AssetStorage persists uploaded assets and returns their public URL.
// Uploading to an existing key overwrites it.
type AssetStorage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
