package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"mission-control/models"
	"mission-control/services"
)

type usernameKey struct {
	eventCode string
	username  string
}

// MemoryStore keeps events and participants in process memory. A single
// mutex serializes writes, which makes CreateParticipant and MergeUpdate
// atomic. Returned records are copies, and map keys are never taken from
// caller-owned strings, which may alias reused request buffers.
type MemoryStore struct {
	mu           sync.RWMutex
	events       map[string]*models.Event
	participants map[string]*models.Participant
	usernames    map[usernameKey]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:       make(map[string]*models.Event),
		participants: make(map[string]*models.Participant),
		usernames:    make(map[usernameKey]string),
	}
}

func cloneEvent(e *models.Event) *models.Event {
	out := *e
	if e.EndsAt != nil {
		t := *e.EndsAt
		out.EndsAt = &t
	}
	return &out
}

func (m *MemoryStore) GetEvent(ctx context.Context, code string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[code]
	if !ok {
		return nil, services.ErrEventNotFound
	}
	return cloneEvent(e), nil
}

func (m *MemoryStore) CreateEvent(ctx context.Context, event *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[event.Code]; ok {
		return services.ErrEventExists
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	stored := cloneEvent(event)
	stored.Code = strings.Clone(event.Code)
	m.events[stored.Code] = stored
	return nil
}

func (m *MemoryStore) CloseExpiredEvents(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, e := range m.events {
		if e.Active && e.HasEnded(now) {
			e.Active = false
			e.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateParticipant(ctx context.Context, p *models.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.events[p.EventCode]
	if !ok {
		return services.ErrEventNotFound
	}
	if err := services.CheckAdmission(e, p.CreatedAt); err != nil {
		return err
	}
	key := usernameKey{eventCode: p.EventCode, username: p.Username}
	if _, taken := m.usernames[key]; taken {
		return services.ErrUsernameTaken
	}
	if _, dup := m.participants[p.ParticipantID]; dup {
		return services.ErrParticipantExists
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt

	stored := p.Clone()
	stored.ParticipantID = strings.Clone(p.ParticipantID)
	stored.EventCode = strings.Clone(p.EventCode)
	stored.Username = strings.Clone(p.Username)
	m.participants[stored.ParticipantID] = stored
	m.usernames[usernameKey{eventCode: stored.EventCode, username: stored.Username}] = stored.ParticipantID
	e.ParticipantCount++
	return nil
}

func (m *MemoryStore) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, services.ErrParticipantNotFound
	}
	return p.Clone(), nil
}

func (m *MemoryStore) GetParticipantByUsername(ctx context.Context, eventCode, username string) (*models.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.usernames[usernameKey{eventCode: eventCode, username: username}]
	if !ok {
		return nil, services.ErrParticipantNotFound
	}
	return m.participants[id].Clone(), nil
}

func (m *MemoryStore) MergeUpdate(ctx context.Context, id string, patch models.ParticipantPatch) (*models.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.participants[id]
	if !ok {
		return nil, services.ErrParticipantNotFound
	}
	if patch.IsEmpty() {
		return p.Clone(), nil
	}

	next := p.Clone()
	if patch.Apply(next) {
		next.UpdatedAt = time.Now().UTC()
		m.participants[p.ParticipantID] = next
	}
	return next.Clone(), nil
}
