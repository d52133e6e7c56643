package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"mission-control/models"
	"mission-control/services"
)

// GormStore persists events and participants through GORM. Participant
// creation and merges run in transactions that lock the affected row.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the events and participants tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Event{}, &models.Participant{})
}

// uniqueViolation reports whether err is a unique constraint violation and
// returns whatever text identifies the violated constraint.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr.ConstraintName + " " + pgErr.Detail, true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key") {
		return msg, true
	}
	return "", false
}

func (g *GormStore) GetEvent(ctx context.Context, code string) (*models.Event, error) {
	var event models.Event
	err := g.db.WithContext(ctx).First(&event, "code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (g *GormStore) CreateEvent(ctx context.Context, event *models.Event) error {
	err := g.db.WithContext(ctx).Create(event).Error
	if err == nil {
		return nil
	}
	if _, dup := uniqueViolation(err); dup {
		return services.ErrEventExists
	}
	return err
}

func (g *GormStore) CloseExpiredEvents(ctx context.Context, now time.Time) (int64, error) {
	res := g.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("active = ? AND ends_at IS NOT NULL AND ends_at <= ?", true, now).
		Update("active", false)
	return res.RowsAffected, res.Error
}

func (g *GormStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&event, "code = ?", p.EventCode).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrEventNotFound
		}
		if err != nil {
			return err
		}

		if err := services.CheckAdmission(&event, p.CreatedAt); err != nil {
			return err
		}

		if err := tx.Create(p).Error; err != nil {
			constraint, dup := uniqueViolation(err)
			switch {
			case !dup:
				return err
			case strings.Contains(constraint, "participant_id"), strings.Contains(constraint, "pkey"):
				return services.ErrParticipantExists
			default:
				return services.ErrUsernameTaken
			}
		}

		return tx.Model(&models.Event{}).
			Where("code = ?", p.EventCode).
			UpdateColumn("participant_count", gorm.Expr("participant_count + ?", 1)).Error
	})
}

func (g *GormStore) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	err := g.db.WithContext(ctx).First(&p, "participant_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *GormStore) GetParticipantByUsername(ctx context.Context, eventCode, username string) (*models.Participant, error) {
	var p models.Participant
	err := g.db.WithContext(ctx).
		Where("event_code = ? AND username = ?", eventCode, username).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, services.ErrParticipantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (g *GormStore) MergeUpdate(ctx context.Context, id string, patch models.ParticipantPatch) (*models.Participant, error) {
	var out models.Participant
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&out, "participant_id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return services.ErrParticipantNotFound
		}
		if err != nil {
			return err
		}

		if patch.IsEmpty() || !patch.Apply(&out) {
			return nil
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
