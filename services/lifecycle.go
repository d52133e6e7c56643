package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"mission-control/biome"
	"mission-control/metrics"
	"mission-control/models"
)

// LifecycleConfig wires the lifecycle service. Every field but Logger and
// Biomes is required.
type LifecycleConfig struct {
	Events       EventStore
	Participants ParticipantStore
	Storage      AssetStorage
	IDs          IDGenerator
	Clock        Clock
	Positions    Positioner
	Bounds       MapBounds
	Biomes       biome.Mapper

	// CallTimeout bounds every store and storage call. Values <= 0 fall
	// back to DefaultCallTimeout.
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// LifecycleService drives participants from init through registration and
// the later evidence, location and progress updates.
type LifecycleService struct {
	registry     *EventRegistry
	events       EventStore
	participants ParticipantStore
	storage      AssetStorage
	ids          IDGenerator
	clock        Clock
	positions    Positioner
	bounds       MapBounds
	biomes       biome.Mapper
	timeout      time.Duration
	logger       *slog.Logger
}

func NewLifecycleService(cfg *LifecycleConfig) (*LifecycleService, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	switch {
	case cfg.Events == nil:
		return nil, errors.New("event store cannot be nil")
	case cfg.Participants == nil:
		return nil, errors.New("participant store cannot be nil")
	case cfg.Storage == nil:
		return nil, errors.New("asset storage cannot be nil")
	case cfg.IDs == nil:
		return nil, errors.New("id generator cannot be nil")
	case cfg.Clock == nil:
		return nil, errors.New("clock cannot be nil")
	case cfg.Positions == nil:
		return nil, errors.New("positioner cannot be nil")
	}
	if cfg.Bounds.Width <= 0 || cfg.Bounds.Height <= 0 || cfg.Bounds.Margin < 0 ||
		2*cfg.Bounds.Margin > cfg.Bounds.Width || 2*cfg.Bounds.Margin > cfg.Bounds.Height {
		return nil, errors.New("map bounds leave no interior for starting positions")
	}

	mapper := cfg.Biomes
	if mapper == (biome.Mapper{}) {
		mapper = biome.Default
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LifecycleService{
		registry:     NewEventRegistry(cfg.Events, cfg.Clock, cfg.CallTimeout),
		events:       cfg.Events,
		participants: cfg.Participants,
		storage:      cfg.Storage,
		ids:          cfg.IDs,
		clock:        cfg.Clock,
		positions:    cfg.Positions,
		bounds:       cfg.Bounds,
		biomes:       mapper,
		timeout:      callTimeout(cfg.CallTimeout),
		logger:       logger,
	}, nil
}

// observe records metrics for one finished operation.
func observe(operation string, start time.Time, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
		if k := KindOf(err); k != "" {
			outcome = string(k)
		}
	}
	metrics.RecordOperation(operation, outcome, time.Since(start))
}

func (s *LifecycleService) get(ctx context.Context, id string) (*models.Participant, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.participants.GetParticipant(ctx, id)
}

func (s *LifecycleService) merge(ctx context.Context, id string, patch models.ParticipantPatch) (*models.Participant, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.participants.MergeUpdate(ctx, id, patch)
}

func (s *LifecycleService) upload(ctx context.Context, role, key string, a Asset) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.storage.Upload(ctx, key, a.Data, a.ContentType)
	if err != nil {
		return "", err
	}
	metrics.RecordUpload(role, len(a.Data))
	return url, nil
}

// GetParticipant returns the stored participant record.
func (s *LifecycleService) GetParticipant(ctx context.Context, id string) (p *models.Participant, err error) {
	start := time.Now()
	defer func() { observe("get", start, err) }()

	p, err = s.get(ctx, id)
	if err != nil {
		return nil, oops.Code("PARTICIPANT_GET_FAILED").With("participant_id", id).Wrap(err)
	}
	return p, nil
}

// InitInput reserves a username inside an event.
type InitInput struct {
	EventCode string  `json:"event_code"`
	Username  string  `json:"username"`
	ProjectID *string `json:"project_id"`
}

// InitOutput is what a freshly admitted participant needs to continue.
type InitOutput struct {
	ParticipantID string `json:"participant_id"`
	Username      string `json:"username"`
	EventCode     string `json:"event_code"`
	StartingX     int    `json:"starting_x"`
	StartingY     int    `json:"starting_y"`
}

// Init admits a new participant. Gates, in order: username format, event
// admission (exists, active, capacity), then username uniqueness as part of
// the atomic create. No state changes when any gate fails.
func (s *LifecycleService) Init(ctx context.Context, in InitInput) (out *InitOutput, err error) {
	start := time.Now()
	defer func() { observe("init", start, err) }()

	errb := oops.Code("PARTICIPANT_INIT_FAILED").
		With("event_code", in.EventCode).
		With("username", in.Username)

	if !ValidUsername(in.Username) {
		return nil, errb.Wrap(ErrInvalidUsername)
	}
	if _, err := s.registry.ValidateAdmission(ctx, in.EventCode); err != nil {
		return nil, errb.Wrap(err)
	}

	x, y := s.positions.Position(s.bounds)
	p := &models.Participant{
		ParticipantID: s.ids.NewID(),
		Username:      in.Username,
		EventCode:     in.EventCode,
		ProjectID:     in.ProjectID,
		X:             x,
		Y:             y,
		Active:        true,
		Stage:         models.StageCreated,
		CreatedAt:     s.clock.Now(),
	}

	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.participants.CreateParticipant(cctx, p); err != nil {
		return nil, errb.With("participant_id", p.ParticipantID).Wrap(err)
	}

	s.logger.InfoContext(ctx, "participant initialized",
		"participant_id", p.ParticipantID,
		"event_code", p.EventCode,
		"username", p.Username,
		"x", p.X, "y", p.Y)

	return &InitOutput{
		ParticipantID: p.ParticipantID,
		Username:      p.Username,
		EventCode:     p.EventCode,
		StartingX:     p.X,
		StartingY:     p.Y,
	}, nil
}

// CheckUsername reports whether username is still free inside the event.
func (s *LifecycleService) CheckUsername(ctx context.Context, eventCode, username string) (available bool, err error) {
	start := time.Now()
	defer func() { observe("check_username", start, err) }()

	errb := oops.Code("USERNAME_CHECK_FAILED").With("event_code", eventCode).With("username", username)

	cctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.events.GetEvent(cctx, eventCode); err != nil {
		return false, errb.Wrap(err)
	}
	if !ValidUsername(username) {
		return false, nil
	}
	_, err = s.participants.GetParticipantByUsername(cctx, eventCode, username)
	switch {
	case errors.Is(err, ErrParticipantNotFound):
		return true, nil
	case err != nil:
		return false, errb.Wrap(err)
	}
	return false, nil
}

// AvatarOutput carries the stored avatar URLs.
type AvatarOutput struct {
	PortraitURL string `json:"portrait_url"`
	IconURL     string `json:"icon_url"`
}

// UploadAvatar stores portrait and icon and records both URLs. It may be
// called at any stage; the last successful call wins. If storage fails the
// record is left untouched.
func (s *LifecycleService) UploadAvatar(ctx context.Context, id string, portrait, icon Asset) (out *AvatarOutput, err error) {
	start := time.Now()
	defer func() { observe("upload_avatar", start, err) }()

	errb := oops.Code("AVATAR_UPLOAD_FAILED").With("participant_id", id)

	p, err := s.get(ctx, id)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	if portrait.Empty() {
		return nil, errb.Wrap(missingAvatar("portrait"))
	}
	if icon.Empty() {
		return nil, errb.Wrap(missingAvatar("icon"))
	}
	if !avatarContentTypes[portrait.ContentType] {
		return nil, errb.Wrap(invalidContentType("portrait"))
	}
	if !avatarContentTypes[icon.ContentType] {
		return nil, errb.Wrap(invalidContentType("icon"))
	}

	portraitURL, err := s.upload(ctx, "portrait", avatarKey(p.EventCode, id, "portrait"), portrait)
	if err != nil {
		return nil, errb.Wrap(upstreamFailure([]string{"portrait"}, err))
	}
	iconURL, err := s.upload(ctx, "icon", avatarKey(p.EventCode, id, "icon"), icon)
	if err != nil {
		return nil, errb.Wrap(upstreamFailure([]string{"icon"}, err))
	}

	if _, err := s.merge(ctx, id, models.ParticipantPatch{
		PortraitURL: &portraitURL,
		IconURL:     &iconURL,
	}); err != nil {
		// The objects are stored but unreferenced; a retry overwrites the same keys.
		s.logger.WarnContext(ctx, "avatar stored but record update failed",
			"participant_id", id, "error", err)
		return nil, errb.Wrap(err)
	}

	s.logger.InfoContext(ctx, "avatar uploaded", "participant_id", id, "event_code", p.EventCode)
	return &AvatarOutput{PortraitURL: portraitURL, IconURL: iconURL}, nil
}

// RegisterInput completes registration; optional fields are merged when set.
type RegisterInput struct {
	ParticipantID string  `json:"participant_id"`
	SuitColor     *string `json:"suit_color"`
	Appearance    *string `json:"appearance"`
}

// Register finalizes a participant whose avatar is on record. registered_at
// is stamped by the first successful call only; later calls still merge
// suit_color and appearance.
func (s *LifecycleService) Register(ctx context.Context, in RegisterInput) (p *models.Participant, err error) {
	start := time.Now()
	defer func() { observe("register", start, err) }()

	errb := oops.Code("PARTICIPANT_REGISTER_FAILED").With("participant_id", in.ParticipantID)

	p, err = s.get(ctx, in.ParticipantID)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	if !p.Stage.AtLeast(models.StageAvatarUploaded) || !p.HasAvatar() {
		return nil, errb.With("stage", string(p.Stage)).Wrap(ErrAvatarMissing)
	}

	now := s.clock.Now()
	active := true
	stage := models.StageRegistered
	patch := models.ParticipantPatch{
		RegisteredAt: &now,
		Active:       &active,
		Stage:        &stage,
	}
	if in.SuitColor != nil && *in.SuitColor != "" {
		patch.SuitColor = in.SuitColor
	}
	if in.Appearance != nil && *in.Appearance != "" {
		patch.Appearance = in.Appearance
	}

	p, err = s.merge(ctx, in.ParticipantID, patch)
	if err != nil {
		return nil, errb.Wrap(err)
	}

	s.logger.InfoContext(ctx, "participant registered",
		"participant_id", p.ParticipantID, "event_code", p.EventCode)
	return p, nil
}

// EvidenceOutput maps evidence keys (soil, stars, flora) to stored URLs.
type EvidenceOutput struct {
	EvidenceURLs map[string]string `json:"evidence_urls"`
}

// UploadEvidence stores the three evidence assets. Each asset succeeds or
// fails on its own: successful uploads are merged into evidence_urls even
// when another asset failed, in which case an upstream failure naming the
// failed assets is returned alongside the partial output.
func (s *LifecycleService) UploadEvidence(ctx context.Context, id string, files map[string]Asset) (out *EvidenceOutput, err error) {
	start := time.Now()
	defer func() { observe("upload_evidence", start, err) }()

	errb := oops.Code("EVIDENCE_UPLOAD_FAILED").With("participant_id", id)

	p, err := s.get(ctx, id)
	if err != nil {
		return nil, errb.Wrap(err)
	}

	var missing []string
	for _, spec := range EvidenceAssets {
		if _, ok := files[spec.Field]; !ok {
			missing = append(missing, spec.Field)
		}
	}
	if len(missing) > 0 {
		return nil, errb.Wrap(missingEvidence(missing))
	}

	type result struct {
		url string
		err error
	}
	results := make([]result, len(EvidenceAssets))

	var wg sync.WaitGroup
	for i, spec := range EvidenceAssets {
		wg.Add(1)
		go func(i int, spec EvidenceSpec) {
			defer wg.Done()
			a := files[spec.Field]
			key := evidenceKey(p.EventCode, id, spec.Field, EvidenceExtension(a.ContentType))
			url, err := s.upload(ctx, spec.Field, key, a)
			results[i] = result{url: url, err: err}
		}(i, spec)
	}
	wg.Wait()

	urls := make(map[string]string, len(EvidenceAssets))
	var failed []string
	var errs []error
	for i, spec := range EvidenceAssets {
		if results[i].err != nil {
			failed = append(failed, spec.Field)
			errs = append(errs, results[i].err)
			continue
		}
		urls[spec.Key] = results[i].url
	}

	if len(urls) > 0 {
		if _, err := s.merge(ctx, id, models.ParticipantPatch{EvidenceURLs: urls}); err != nil {
			s.logger.WarnContext(ctx, "evidence stored but record update failed",
				"participant_id", id, "error", err)
			return nil, errb.Wrap(err)
		}
	}

	out = &EvidenceOutput{EvidenceURLs: urls}
	if len(failed) > 0 {
		return out, errb.With("failed", failed).Wrap(upstreamFailure(failed, errors.Join(errs...)))
	}

	s.logger.InfoContext(ctx, "evidence uploaded", "participant_id", id, "event_code", p.EventCode)
	return out, nil
}

// LocationOutput echoes the confirmed position and its biome.
type LocationOutput struct {
	X                 int            `json:"x"`
	Y                 int            `json:"y"`
	LocationConfirmed bool           `json:"location_confirmed"`
	Biome             biome.Category `json:"biome"`
}

// ConfirmLocation overwrites the participant's position and marks it as
// confirmed. Coordinates must lie on the map.
func (s *LifecycleService) ConfirmLocation(ctx context.Context, id string, x, y int) (out *LocationOutput, err error) {
	start := time.Now()
	defer func() { observe("confirm_location", start, err) }()

	errb := oops.Code("LOCATION_CONFIRM_FAILED").With("participant_id", id).With("x", x).With("y", y)

	if _, err := s.get(ctx, id); err != nil {
		return nil, errb.Wrap(err)
	}
	if !s.bounds.Contains(x, y) {
		return nil, errb.Wrap(ErrOutOfBounds)
	}

	confirmed := true
	p, err := s.merge(ctx, id, models.ParticipantPatch{
		X:                 &x,
		Y:                 &y,
		LocationConfirmed: &confirmed,
	})
	if err != nil {
		return nil, errb.Wrap(err)
	}

	return &LocationOutput{
		X:                 p.X,
		Y:                 p.Y,
		LocationConfirmed: p.LocationConfirmed,
		Biome:             s.biomes.Classify(p.X, p.Y),
	}, nil
}

// OverrideInput sets level progress fields. Nil fields are left alone.
type OverrideInput struct {
	Levels               [models.LevelCount]*bool
	CompletionPercentage *int
}

// Override merges the supplied progress fields. An empty input returns the
// current record without writing.
func (s *LifecycleService) Override(ctx context.Context, id string, in OverrideInput) (p *models.Participant, err error) {
	start := time.Now()
	defer func() { observe("override", start, err) }()

	errb := oops.Code("PARTICIPANT_OVERRIDE_FAILED").With("participant_id", id)

	p, err = s.get(ctx, id)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	if pct := in.CompletionPercentage; pct != nil && (*pct < 0 || *pct > 100) {
		return nil, errb.With("completion_percentage", *pct).Wrap(ErrInvalidOverride)
	}

	patch := models.ParticipantPatch{
		Levels:               in.Levels,
		CompletionPercentage: in.CompletionPercentage,
	}
	if patch.IsEmpty() {
		return p, nil
	}

	p, err = s.merge(ctx, id, patch)
	if err != nil {
		return nil, errb.Wrap(err)
	}
	return p, nil
}

// Biome classifies a position with the service's mapper.
func (s *LifecycleService) Biome(x, y int) (biome.Quadrant, biome.Category) {
	return s.biomes.Quadrant(x, y), s.biomes.Classify(x, y)
}
