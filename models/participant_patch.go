// models/participant_patch.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// ParticipantPatch is a partial participant update. Every field is
// independently absent (nil) or present; Apply touches present fields only.
type ParticipantPatch struct {
	X                 *int
	Y                 *int
	LocationConfirmed *bool

	PortraitURL *string
	IconURL     *string
	SuitColor   *string
	Appearance  *string
	Active      *bool
	Stage       *Stage

	// RegisteredAt is only applied while the target has no registered_at.
	RegisteredAt *time.Time

	// EvidenceURLs is merged key by key into the stored mapping.
	EvidenceURLs map[string]string

	Levels               [LevelCount]*bool
	CompletionPercentage *int
}

// IsEmpty reports whether the patch carries no fields at all.
func (pp ParticipantPatch) IsEmpty() bool {
	if pp.X != nil || pp.Y != nil || pp.LocationConfirmed != nil ||
		pp.PortraitURL != nil || pp.IconURL != nil || pp.SuitColor != nil ||
		pp.Appearance != nil || pp.Active != nil || pp.Stage != nil ||
		pp.RegisteredAt != nil || len(pp.EvidenceURLs) > 0 ||
		pp.CompletionPercentage != nil {
		return false
	}
	for _, l := range pp.Levels {
		if l != nil {
			return false
		}
	}
	return true
}

// Apply merges the patch into p and reports whether anything changed.
// The stage tag only ever moves forward.
func (pp ParticipantPatch) Apply(p *Participant) bool {
	changed := false

	setInt := func(dst *int, v *int) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil && *dst != *v {
			*dst = *v
			changed = true
		}
	}
	setOptString := func(dst **string, v *string) {
		if v != nil && (*dst == nil || **dst != *v) {
			*dst = cloneString(v)
			changed = true
		}
	}

	setInt(&p.X, pp.X)
	setInt(&p.Y, pp.Y)
	setBool(&p.LocationConfirmed, pp.LocationConfirmed)
	setBool(&p.Active, pp.Active)
	setOptString(&p.PortraitURL, pp.PortraitURL)
	setOptString(&p.IconURL, pp.IconURL)
	setOptString(&p.SuitColor, pp.SuitColor)
	setOptString(&p.Appearance, pp.Appearance)

	if pp.RegisteredAt != nil && p.RegisteredAt == nil {
		t := *pp.RegisteredAt
		p.RegisteredAt = &t
		changed = true
	}

	if len(pp.EvidenceURLs) > 0 {
		if p.EvidenceURLs == nil {
			p.EvidenceURLs = make(datatypes.JSONMap, len(pp.EvidenceURLs))
		}
		for k, v := range pp.EvidenceURLs {
			if cur, ok := p.EvidenceURLs[k]; !ok || cur != v {
				p.EvidenceURLs[k] = v
				changed = true
			}
		}
	}

	levels := p.levels()
	for i, v := range pp.Levels {
		if v != nil && (*levels[i] == nil || **levels[i] != *v) {
			*levels[i] = cloneBool(v)
			changed = true
		}
	}
	if pp.CompletionPercentage != nil &&
		(p.CompletionPercentage == nil || *p.CompletionPercentage != *pp.CompletionPercentage) {
		p.CompletionPercentage = cloneInt(pp.CompletionPercentage)
		changed = true
	}

	next := p.Stage
	if pp.Stage != nil && pp.Stage.AtLeast(next) {
		next = *pp.Stage
	}
	if p.HasAvatar() && !next.AtLeast(StageAvatarUploaded) {
		next = StageAvatarUploaded
	}
	if p.RegisteredAt != nil {
		next = StageRegistered
	}
	if next != p.Stage {
		p.Stage = next
		changed = true
	}

	return changed
}
