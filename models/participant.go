// models/participant.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// LevelCount is the number of level completion flags (level_0 … level_5).
const LevelCount = 6

// Stage is the explicit lifecycle tag stored with every participant.
type Stage string

const (
	StageCreated        Stage = "created"
	StageAvatarUploaded Stage = "avatar_uploaded"
	StageRegistered     Stage = "registered"
)

func (s Stage) rank() int {
	switch s {
	case StageAvatarUploaded:
		return 1
	case StageRegistered:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether s is the same as or later than other.
func (s Stage) AtLeast(other Stage) bool {
	return s.rank() >= other.rank()
}

// Participant is an admitted actor inside one event.
// Column and JSON names are part of the public contract and must not change.
type Participant struct {
	ParticipantID string  `json:"participant_id" gorm:"column:participant_id;primaryKey;type:varchar(64)"`
	Username      string  `json:"username" gorm:"not null;size:30;uniqueIndex:idx_participant_event_username,priority:2"`
	EventCode     string  `json:"event_code" gorm:"not null;type:varchar(64);uniqueIndex:idx_participant_event_username,priority:1"`
	ProjectID     *string `json:"project_id"`

	X                 int  `json:"x" gorm:"not null"`
	Y                 int  `json:"y" gorm:"not null"`
	LocationConfirmed bool `json:"location_confirmed" gorm:"not null"`

	PortraitURL  *string    `json:"portrait_url" gorm:"type:text"`
	IconURL      *string    `json:"icon_url" gorm:"type:text"`
	SuitColor    *string    `json:"suit_color"`
	Appearance   *string    `json:"appearance" gorm:"type:text"`
	RegisteredAt *time.Time `json:"registered_at"`
	Active       bool       `json:"active" gorm:"not null"`
	Stage        Stage      `json:"stage" gorm:"type:varchar(32);not null"`

	EvidenceURLs datatypes.JSONMap `json:"evidence_urls"`

	Level0Complete       *bool `json:"level_0_complete" gorm:"column:level_0_complete"`
	Level1Complete       *bool `json:"level_1_complete" gorm:"column:level_1_complete"`
	Level2Complete       *bool `json:"level_2_complete" gorm:"column:level_2_complete"`
	Level3Complete       *bool `json:"level_3_complete" gorm:"column:level_3_complete"`
	Level4Complete       *bool `json:"level_4_complete" gorm:"column:level_4_complete"`
	Level5Complete       *bool `json:"level_5_complete" gorm:"column:level_5_complete"`
	CompletionPercentage *int  `json:"completion_percentage"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// levels returns pointers to the level flag fields, indexed by level.
func (p *Participant) levels() [LevelCount]**bool {
	return [LevelCount]**bool{
		&p.Level0Complete, &p.Level1Complete, &p.Level2Complete,
		&p.Level3Complete, &p.Level4Complete, &p.Level5Complete,
	}
}

// LevelComplete returns the flag for level n, or nil when unset or out of range.
func (p *Participant) LevelComplete(n int) *bool {
	if n < 0 || n >= LevelCount {
		return nil
	}
	return *p.levels()[n]
}

// HasAvatar reports whether both avatar assets are recorded.
func (p *Participant) HasAvatar() bool {
	return p.PortraitURL != nil && p.IconURL != nil
}

// EvidenceURL returns the stored URL for a named evidence asset.
func (p *Participant) EvidenceURL(name string) (string, bool) {
	v, ok := p.EvidenceURLs[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Clone returns a deep copy so callers cannot alias stored state.
func (p *Participant) Clone() *Participant {
	if p == nil {
		return nil
	}
	out := *p
	out.ProjectID = cloneString(p.ProjectID)
	out.PortraitURL = cloneString(p.PortraitURL)
	out.IconURL = cloneString(p.IconURL)
	out.SuitColor = cloneString(p.SuitColor)
	out.Appearance = cloneString(p.Appearance)
	out.CompletionPercentage = cloneInt(p.CompletionPercentage)
	if p.RegisteredAt != nil {
		t := *p.RegisteredAt
		out.RegisteredAt = &t
	}
	if p.EvidenceURLs != nil {
		out.EvidenceURLs = make(datatypes.JSONMap, len(p.EvidenceURLs))
		for k, v := range p.EvidenceURLs {
			out.EvidenceURLs[k] = v
		}
	}
	src, dst := p.levels(), out.levels()
	for i := range src {
		*dst[i] = cloneBool(*src[i])
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}
