package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mission-control/models"
	"mission-control/services"
	"mission-control/store"
)

type backend interface {
	services.EventStore
	services.ParticipantStore
}

// StoreSuite runs the same behaviour checks against every store backend.
type StoreSuite struct {
	suite.Suite
	newStore func(t *testing.T) backend
	store    backend
	ctx      context.Context
	now      time.Time
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(*testing.T) backend {
		return store.NewMemoryStore()
	}})
}

func TestGormStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func(t *testing.T) backend {
		db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
			Logger: logger.Discard,
		})
		require.NoError(t, err)
		sqlDB, err := db.DB()
		require.NoError(t, err)
		// One connection keeps the in-memory database shared and serializes transactions.
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })

		require.NoError(t, store.AutoMigrate(db))
		return store.NewGormStore(db)
	}})
}

func (s *StoreSuite) createEvent(code string, max int, active bool) {
	s.Require().NoError(s.store.CreateEvent(s.ctx, &models.Event{
		Code:            code,
		Name:            code,
		Active:          active,
		MaxParticipants: max,
	}))
}

func (s *StoreSuite) participant(id, event, username string) *models.Participant {
	return &models.Participant{
		ParticipantID: id,
		EventCode:     event,
		Username:      username,
		X:             20,
		Y:             30,
		Active:        true,
		Stage:         models.StageCreated,
		CreatedAt:     s.now,
	}
}

func (s *StoreSuite) TestGetEvent_NotFound() {
	_, err := s.store.GetEvent(s.ctx, "missing")
	s.ErrorIs(err, services.ErrEventNotFound)
}

func (s *StoreSuite) TestCreateEvent_DuplicateCode() {
	s.createEvent("mars", 10, true)

	err := s.store.CreateEvent(s.ctx, &models.Event{Code: "mars", Name: "again", Active: true, MaxParticipants: 5})
	s.ErrorIs(err, services.ErrEventExists)

	got, err := s.store.GetEvent(s.ctx, "mars")
	s.Require().NoError(err)
	s.Equal("mars", got.Name)
	s.Equal(10, got.MaxParticipants)
}

func (s *StoreSuite) TestCreateParticipant_IncrementsCount() {
	s.createEvent("mars", 10, true)

	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p2", "mars", "bob")))

	e, err := s.store.GetEvent(s.ctx, "mars")
	s.Require().NoError(err)
	s.Equal(2, e.ParticipantCount)

	p, err := s.store.GetParticipant(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal("alice", p.Username)
	s.Equal(20, p.X)
	s.Equal(30, p.Y)
	s.Equal(models.StageCreated, p.Stage)
	s.Nil(p.RegisteredAt)
	s.Nil(p.PortraitURL)
}

func (s *StoreSuite) TestCreateParticipant_Gates() {
	s.createEvent("closed", 10, false)
	s.createEvent("tiny", 1, true)

	err := s.store.CreateParticipant(s.ctx, s.participant("p0", "nowhere", "alice"))
	s.ErrorIs(err, services.ErrEventNotFound)

	err = s.store.CreateParticipant(s.ctx, s.participant("p1", "closed", "alice"))
	s.ErrorIs(err, services.ErrEventEnded)

	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p2", "tiny", "alice")))
	err = s.store.CreateParticipant(s.ctx, s.participant("p3", "tiny", "bob"))
	s.ErrorIs(err, services.ErrEventFull)

	e, err := s.store.GetEvent(s.ctx, "tiny")
	s.Require().NoError(err)
	s.Equal(1, e.ParticipantCount)

	_, err = s.store.GetParticipant(s.ctx, "p3")
	s.ErrorIs(err, services.ErrParticipantNotFound)
}

func (s *StoreSuite) TestCreateParticipant_EndedEvent() {
	ended := s.now.Add(-time.Hour)
	s.Require().NoError(s.store.CreateEvent(s.ctx, &models.Event{
		Code: "past", Name: "past", Active: true, MaxParticipants: 10, EndsAt: &ended,
	}))

	err := s.store.CreateParticipant(s.ctx, s.participant("p1", "past", "alice"))
	s.ErrorIs(err, services.ErrEventEnded)
}

func (s *StoreSuite) TestCreateParticipant_UsernameScopedToEvent() {
	s.createEvent("mars", 10, true)
	s.createEvent("venus", 10, true)

	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))

	err := s.store.CreateParticipant(s.ctx, s.participant("p2", "mars", "alice"))
	s.ErrorIs(err, services.ErrUsernameTaken)

	s.NoError(s.store.CreateParticipant(s.ctx, s.participant("p3", "venus", "alice")))

	e, err := s.store.GetEvent(s.ctx, "mars")
	s.Require().NoError(err)
	s.Equal(1, e.ParticipantCount)
}

func (s *StoreSuite) TestCreateParticipant_DuplicateID() {
	s.createEvent("mars", 10, true)

	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))
	err := s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "bob"))
	s.ErrorIs(err, services.ErrParticipantExists)
}

func (s *StoreSuite) TestCreateParticipant_ConcurrentSameUsername() {
	s.createEvent("mars", 100, true)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.CreateParticipant(s.ctx, s.participant(fmt.Sprintf("p%d", i), "mars", "alice"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, services.ErrUsernameTaken)
	}
	s.Equal(1, succeeded)

	e, err := s.store.GetEvent(s.ctx, "mars")
	s.Require().NoError(err)
	s.Equal(1, e.ParticipantCount)
}

func (s *StoreSuite) TestCreateParticipant_ConcurrentCapacity() {
	s.createEvent("mars", 3, true)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.CreateParticipant(s.ctx,
				s.participant(fmt.Sprintf("p%d", i), "mars", fmt.Sprintf("user%d", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, services.ErrEventFull)
	}
	s.Equal(3, succeeded)

	e, err := s.store.GetEvent(s.ctx, "mars")
	s.Require().NoError(err)
	s.Equal(3, e.ParticipantCount)
}

func (s *StoreSuite) TestGetParticipantByUsername() {
	s.createEvent("mars", 10, true)
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))

	p, err := s.store.GetParticipantByUsername(s.ctx, "mars", "alice")
	s.Require().NoError(err)
	s.Equal("p1", p.ParticipantID)

	_, err = s.store.GetParticipantByUsername(s.ctx, "mars", "bob")
	s.ErrorIs(err, services.ErrParticipantNotFound)

	_, err = s.store.GetParticipantByUsername(s.ctx, "venus", "alice")
	s.ErrorIs(err, services.ErrParticipantNotFound)
}

func (s *StoreSuite) TestMergeUpdate_NotFound() {
	x := 5
	_, err := s.store.MergeUpdate(s.ctx, "missing", models.ParticipantPatch{X: &x})
	s.ErrorIs(err, services.ErrParticipantNotFound)
}

func (s *StoreSuite) TestMergeUpdate_EmptyPatchLeavesRecord() {
	s.createEvent("mars", 10, true)
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))
	before, err := s.store.GetParticipant(s.ctx, "p1")
	s.Require().NoError(err)

	got, err := s.store.MergeUpdate(s.ctx, "p1", models.ParticipantPatch{})
	s.Require().NoError(err)
	s.Equal(before.X, got.X)
	s.True(before.UpdatedAt.Equal(got.UpdatedAt))
}

func (s *StoreSuite) TestMergeUpdate_MergesFields() {
	s.createEvent("mars", 10, true)
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))

	portrait, icon := "https://cdn/p.png", "https://cdn/i.png"
	got, err := s.store.MergeUpdate(s.ctx, "p1", models.ParticipantPatch{
		PortraitURL:  &portrait,
		IconURL:      &icon,
		EvidenceURLs: map[string]string{"soil": "https://cdn/soil.jpg"},
	})
	s.Require().NoError(err)
	s.Equal(models.StageAvatarUploaded, got.Stage)

	done := true
	_, err = s.store.MergeUpdate(s.ctx, "p1", models.ParticipantPatch{
		EvidenceURLs: map[string]string{"stars": "https://cdn/stars.png"},
		Levels:       [models.LevelCount]*bool{2: &done},
	})
	s.Require().NoError(err)

	p, err := s.store.GetParticipant(s.ctx, "p1")
	s.Require().NoError(err)
	soil, ok := p.EvidenceURL("soil")
	s.True(ok)
	s.Equal("https://cdn/soil.jpg", soil)
	stars, ok := p.EvidenceURL("stars")
	s.True(ok)
	s.Equal("https://cdn/stars.png", stars)
	s.Require().NotNil(p.PortraitURL)
	s.Equal(portrait, *p.PortraitURL)
	s.Require().NotNil(p.Level2Complete)
	s.True(*p.Level2Complete)
	s.Nil(p.Level0Complete)
	s.Nil(p.Level5Complete)
	s.Equal(20, p.X)
}

// Request routers may hand out strings that alias a buffer reused by the
// next request. Keys and lookups must survive the buffer being overwritten.
func (s *StoreSuite) TestMergeUpdate_CallerBufferReused() {
	s.createEvent("mars", 10, true)
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p2", "mars", "bob")))

	buf := []byte("p1")
	id := unsafe.String(&buf[0], len(buf))
	x := 41
	got, err := s.store.MergeUpdate(s.ctx, id, models.ParticipantPatch{X: &x})
	s.Require().NoError(err)
	s.Equal("p1", got.ParticipantID)

	copy(buf, "p2")

	p, err := s.store.GetParticipant(s.ctx, "p1")
	s.Require().NoError(err)
	s.Equal(41, p.X)
	s.Equal("alice", p.Username)

	byName, err := s.store.GetParticipantByUsername(s.ctx, "mars", "alice")
	s.Require().NoError(err)
	s.Equal("p1", byName.ParticipantID)

	other, err := s.store.GetParticipant(s.ctx, "p2")
	s.Require().NoError(err)
	s.Equal("bob", other.Username)
	s.Equal(20, other.X)
}

func (s *StoreSuite) TestMergeUpdate_RegisteredAtFirstWriteWins() {
	s.createEvent("mars", 10, true)
	s.Require().NoError(s.store.CreateParticipant(s.ctx, s.participant("p1", "mars", "alice")))

	first := s.now.Add(time.Minute)
	second := s.now.Add(time.Hour)
	_, err := s.store.MergeUpdate(s.ctx, "p1", models.ParticipantPatch{RegisteredAt: &first})
	s.Require().NoError(err)
	got, err := s.store.MergeUpdate(s.ctx, "p1", models.ParticipantPatch{RegisteredAt: &second})
	s.Require().NoError(err)

	s.Require().NotNil(got.RegisteredAt)
	s.True(first.Equal(*got.RegisteredAt))
	s.Equal(models.StageRegistered, got.Stage)
}

func (s *StoreSuite) TestCloseExpiredEvents() {
	past := s.now.Add(-time.Hour)
	future := s.now.Add(time.Hour)
	s.Require().NoError(s.store.CreateEvent(s.ctx, &models.Event{Code: "old", Name: "old", Active: true, MaxParticipants: 5, EndsAt: &past}))
	s.Require().NoError(s.store.CreateEvent(s.ctx, &models.Event{Code: "new", Name: "new", Active: true, MaxParticipants: 5, EndsAt: &future}))
	s.createEvent("open", 5, true)

	n, err := s.store.CloseExpiredEvents(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	old, err := s.store.GetEvent(s.ctx, "old")
	s.Require().NoError(err)
	s.False(old.Active)

	for _, code := range []string{"new", "open"} {
		e, err := s.store.GetEvent(s.ctx, code)
		s.Require().NoError(err)
		s.True(e.Active, code)
	}

	n, err = s.store.CloseExpiredEvents(s.ctx, s.now)
	s.Require().NoError(err)
	s.Zero(n)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.CreateEvent(ctx, &models.Event{Code: "mars", Active: true, MaxParticipants: 5}))
	require.NoError(t, m.CreateParticipant(ctx, &models.Participant{
		ParticipantID: "p1", EventCode: "mars", Username: "alice", Stage: models.StageCreated,
	}))

	p, err := m.GetParticipant(ctx, "p1")
	require.NoError(t, err)
	p.Username = "mallory"

	again, err := m.GetParticipant(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", again.Username)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	m := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.GetEvent(ctx, "mars")
	assert.ErrorIs(t, err, context.Canceled)
}
