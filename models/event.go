// models/event.go
package models

import "time"

// DefaultMaxParticipants applies when an event is created without a limit.
const DefaultMaxParticipants = 500

// Event is a bounded, time-scoped container that admits participants.
type Event struct {
	Code             string     `json:"code" gorm:"primaryKey;type:varchar(64)"`
	Name             string     `json:"name"`
	Active           bool       `json:"active" gorm:"not null"`
	ParticipantCount int        `json:"participant_count" gorm:"not null;default:0"`
	MaxParticipants  int        `json:"max_participants" gorm:"not null"`
	EndsAt           *time.Time `json:"ends_at,omitempty" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// IsFull reports whether no more participants can be admitted.
func (e *Event) IsFull() bool {
	return e.ParticipantCount >= e.MaxParticipants
}

// HasEnded reports whether ends_at is set and not after now.
func (e *Event) HasEnded(now time.Time) bool {
	return e.EndsAt != nil && !e.EndsAt.After(now)
}
