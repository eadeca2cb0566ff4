package audio

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookaudio-server-go/internal/domain/audiocache"
	"bookaudio-server-go/internal/domain/cost"
	"bookaudio-server-go/internal/domain/events"
	"bookaudio-server-go/internal/domain/segment"
	"bookaudio-server-go/internal/domain/tts"
	"bookaudio-server-go/internal/platform/blob"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/errors"
	"bookaudio-server-go/internal/platform/storage"
)

// OpGenerateChapter and friends name the costed endpoints in the hourly cap
// table and the ledgers.
const (
	OpGenerateChapter = "generate-chapter"
	OpGenerateBook    = "generate-book"
)

// Synthesizer is the slice of the orchestrator the service needs. Tests
// substitute a fake to count provider invocations.
type Synthesizer interface {
	Select(textLen int, preferred string) (tts.Provider, error)
	Synthesize(ctx context.Context, p tts.Provider, text string, opts tts.SynthesisOptions) (*tts.Descriptor, error)
}

// GenerateRequest describes one chapter synthesis. Op names the ledger
// bucket the spend is checked and charged against; empty means the
// single-chapter endpoint.
type GenerateRequest struct {
	ChapterID   string
	Voice       string
	Language    string
	Speed       float64
	Provider    string
	HighQuality bool
	Requester   string
	Op          string
}

// GenerateResult reports what a generation produced. Cached results cost
// nothing and never touched a provider.
type GenerateResult struct {
	Artifact *storage.AudioArtifact `json:"artifact"`
	Mapping  segment.Mapping        `json:"sync"`
	CostUSD  float64                `json:"cost_usd"`
	Cached   bool                   `json:"cached"`
}

// Service implements the audio pipeline: price, guard, synthesize, persist,
// cache. Streaming reads go through the two-tier cache; generation is
// idempotent per (chapter, voice).
type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	books     storage.BookRepository
	chapters  storage.ChapterRepository
	artifacts storage.ArtifactRepository
	blobs     *blob.Store
	synth     Synthesizer
	estimator *cost.Estimator
	guard     *cost.Guard
	meta      *audiocache.MetadataCache
	audio     *audiocache.AudioCache
	bus       *events.Bus
}

type ServiceDeps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Books     storage.BookRepository
	Chapters  storage.ChapterRepository
	Artifacts storage.ArtifactRepository
	Blobs     *blob.Store
	Synth     Synthesizer
	Estimator *cost.Estimator
	Guard     *cost.Guard
	Meta      *audiocache.MetadataCache
	Audio     *audiocache.AudioCache
	Bus       *events.Bus
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		cfg:       deps.Config,
		logger:    deps.Logger,
		books:     deps.Books,
		chapters:  deps.Chapters,
		artifacts: deps.Artifacts,
		blobs:     deps.Blobs,
		synth:     deps.Synth,
		estimator: deps.Estimator,
		guard:     deps.Guard,
		meta:      deps.Meta,
		audio:     deps.Audio,
		bus:       deps.Bus,
	}
}

// GenerateChapter synthesizes one chapter. An existing artifact for the same
// (chapter, voice) is returned as-is with zero cost; the caps are checked
// before any provider call, and spend is charged only after success.
func (s *Service) GenerateChapter(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	chapter, err := s.chapters.FindByID(ctx, req.ChapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, errors.New(errors.KindNotFound, "audio.generate",
			"chapter not found: "+req.ChapterID)
	}
	if chapter.Content == "" {
		return nil, errors.New(errors.KindValidation, "audio.generate",
			"chapter has no content: "+req.ChapterID)
	}

	voice := s.resolveVoice(req)

	existing, err := s.artifacts.FindByChapterVoice(ctx, req.ChapterID, voice)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		mapping, err := s.mappingFor(ctx, existing)
		if err != nil {
			return nil, err
		}
		s.logger.Info("generation skipped, artifact exists",
			"chapter_id", req.ChapterID, "voice", voice, "artifact_id", existing.ID)
		return &GenerateResult{Artifact: existing, Mapping: mapping, Cached: true}, nil
	}

	op := req.Op
	if op == "" {
		op = OpGenerateChapter
	}

	est := s.estimator.Estimate(chapter.Content, voice)
	if err := s.guard.CheckChapter(est); err != nil {
		return nil, err
	}
	if err := s.guard.CheckHourly(ctx, req.Requester, op, est); err != nil {
		return nil, err
	}

	provider, err := s.synth.Select(est.Chars, s.resolveProvider(req))
	if err != nil {
		return nil, err
	}

	segments := segment.Split(chapter.ID, chapter.Content)
	normalized := segment.Normalize(chapter.Content)

	desc, err := s.synth.Synthesize(ctx, provider, normalized, tts.SynthesisOptions{
		Voice:    voice,
		Language: req.Language,
		Speed:    req.Speed,
	})
	if err != nil {
		return nil, err
	}

	path, err := s.blobs.Save(desc.Provider, voice, desc.Audio, desc.Format)
	if err != nil {
		return nil, err
	}

	artifact := &storage.AudioArtifact{
		ID:             uuid.NewString(),
		BookID:         chapter.BookID,
		ChapterID:      chapter.ID,
		FilePath:       path,
		SizeBytes:      int64(len(desc.Audio)),
		Duration:       desc.Duration,
		ContentHash:    audiocache.Hash(desc.Audio),
		Provider:       desc.Provider,
		Voice:          voice,
		Language:       resolveLanguage(req.Language, voice),
		Cost:           est.Cost,
		SampleRate:     desc.SampleRate,
		BitRate:        desc.BitRate,
		Format:         desc.Format,
		CacheExpiresAt: time.Now().Add(s.cfg.Cache.ArtifactTTL.Std()),
	}
	if err := s.artifacts.Save(ctx, artifact); err != nil {
		// Audio was produced but not recorded; remove the orphan file.
		_ = s.blobs.Remove(path)
		return nil, err
	}

	if err := s.guard.Charge(ctx, req.Requester, op, est.Cost); err != nil {
		s.logger.Error("failed to charge ledger", "requester", req.Requester, "error", err)
	}

	mapping := segment.BuildMapping(artifact.ID, segments, desc.Duration)
	s.meta.Set(audiocache.SyncKey(artifact.ID), mapping)
	s.audio.Set(artifact.ID, desc.Audio, contentTypeOf(desc.Format))

	if err := s.RefreshBookSummary(ctx, chapter.BookID); err != nil {
		s.logger.Error("failed to update book summary", "book_id", chapter.BookID, "error", err)
	}

	s.bus.PublishChapter(events.ChapterEvent{
		BookID:     chapter.BookID,
		ChapterID:  chapter.ID,
		ArtifactID: artifact.ID,
		CostUSD:    est.Cost,
	})
	s.logger.Info("chapter synthesized",
		"chapter_id", chapter.ID,
		"artifact_id", artifact.ID,
		"provider", desc.Provider,
		"voice", voice,
		"cost_usd", est.Cost,
		"duration", desc.Duration)

	return &GenerateResult{Artifact: artifact, Mapping: mapping, CostUSD: est.Cost}, nil
}

// Metadata returns the artifact record for the given id.
func (s *Service) Metadata(ctx context.Context, artifactID string) (*storage.AudioArtifact, error) {
	if cached, ok := s.meta.Get(audiocache.ArtifactKey(artifactID)); ok {
		return cached.(*storage.AudioArtifact), nil
	}
	artifact, err := s.artifacts.FindByID(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, errors.New(errors.KindNotFound, "audio.metadata",
			"artifact not found: "+artifactID)
	}
	s.meta.Set(audiocache.ArtifactKey(artifactID), artifact)
	return artifact, nil
}

// SyncSegments returns the time-to-text mapping for an artifact, rebuilding
// it from the chapter text when the cached copy has expired.
func (s *Service) SyncSegments(ctx context.Context, artifactID string) (segment.Mapping, error) {
	if cached, ok := s.meta.Get(audiocache.SyncKey(artifactID)); ok {
		return cached.(segment.Mapping), nil
	}

	artifact, err := s.Metadata(ctx, artifactID)
	if err != nil {
		return segment.Mapping{}, err
	}
	mapping, err := s.rebuildMapping(ctx, artifact)
	if err != nil {
		return segment.Mapping{}, err
	}
	s.meta.Set(audiocache.SyncKey(artifactID), mapping)
	return mapping, nil
}

// Load returns the artifact's bytes through the audio cache, reading the
// blob store on a miss.
func (s *Service) Load(ctx context.Context, artifactID string) (*audiocache.Entry, *storage.AudioArtifact, error) {
	artifact, err := s.Metadata(ctx, artifactID)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.audio.GetOrLoad(artifactID, contentTypeOf(artifact.Format), func() ([]byte, error) {
		return s.blobs.Read(artifact.FilePath)
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, artifact, nil
}

// Preload warms the audio cache for an artifact without serving it.
func (s *Service) Preload(ctx context.Context, artifactID string) error {
	_, _, err := s.Load(ctx, artifactID)
	return err
}

// EstimateText prices raw text without requiring a stored chapter.
func (s *Service) EstimateText(text, voice string) cost.Estimate {
	return s.estimator.Estimate(text, voice)
}

// EstimateChapter prices a stored chapter.
func (s *Service) EstimateChapter(ctx context.Context, chapterID, voice string) (cost.Estimate, error) {
	chapter, err := s.chapters.FindByID(ctx, chapterID)
	if err != nil {
		return cost.Estimate{}, err
	}
	if chapter == nil {
		return cost.Estimate{}, errors.New(errors.KindNotFound, "audio.estimate",
			"chapter not found: "+chapterID)
	}
	return s.estimator.Estimate(chapter.Content, voice), nil
}

// EstimateBook prices every chapter of a book at the given voice and checks
// the total against the book cap.
func (s *Service) EstimateBook(ctx context.Context, bookID, voice string) (float64, []cost.Estimate, error) {
	chapters, err := s.chapters.ListByBookID(ctx, bookID)
	if err != nil {
		return 0, nil, err
	}
	if len(chapters) == 0 {
		return 0, nil, errors.New(errors.KindNotFound, "audio.estimate_book",
			"no chapters for book: "+bookID)
	}

	var total float64
	estimates := make([]cost.Estimate, 0, len(chapters))
	for _, chapter := range chapters {
		est := s.estimator.Estimate(chapter.Content, voice)
		estimates = append(estimates, est)
		total += est.Cost
	}
	return cost.Round(total), estimates, nil
}

// CacheStats reports both tiers for the stats endpoint.
func (s *Service) CacheStats() audiocache.Stats {
	return audiocache.Stats{
		Metadata: s.meta.Stats(),
		Audio:    s.audio.Stats(),
	}
}

// ClearCaches drops both tiers and any staged temp files. Persisted
// artifacts are unaffected.
func (s *Service) ClearCaches() {
	s.meta.Clear()
	s.audio.Clear()
	if removed, err := s.blobs.SweepTemp(0); err != nil {
		s.logger.Warn("temp sweep during cache clear failed", "error", err)
	} else if removed > 0 {
		s.logger.Info("temp files removed during cache clear", "removed", removed)
	}
	s.logger.Info("caches cleared")
}

// A reader starts at the beginning, so preloading the first few chapters
// covers the next listen with high probability.
const preloadChapterCount = 3

// PreloadBook warms the audio cache for the book's earliest chapters.
func (s *Service) PreloadBook(ctx context.Context, bookID string) (int, error) {
	chapters, err := s.chapters.ListByBookID(ctx, bookID)
	if err != nil {
		return 0, err
	}
	if len(chapters) == 0 {
		return 0, errors.New(errors.KindNotFound, "audio.preload",
			"no chapters for book: "+bookID)
	}

	earliest := make(map[string]bool, preloadChapterCount)
	for i, chapter := range chapters {
		if i >= preloadChapterCount {
			break
		}
		earliest[chapter.ID] = true
	}

	artifacts, err := s.artifacts.ListByBookID(ctx, bookID)
	if err != nil {
		return 0, err
	}
	warmed := 0
	for _, artifact := range artifacts {
		if !earliest[artifact.ChapterID] {
			continue
		}
		if err := s.Preload(ctx, artifact.ID); err != nil {
			s.logger.Warn("preload failed", "artifact_id", artifact.ID, "error", err)
			continue
		}
		warmed++
	}
	return warmed, nil
}

// WarmBook preloads every artifact of a book into the audio cache.
func (s *Service) WarmBook(ctx context.Context, bookID string) (int, error) {
	artifacts, err := s.artifacts.ListByBookID(ctx, bookID)
	if err != nil {
		return 0, err
	}
	warmed := 0
	for _, artifact := range artifacts {
		if err := s.Preload(ctx, artifact.ID); err != nil {
			s.logger.Warn("preload failed", "artifact_id", artifact.ID, "error", err)
			continue
		}
		warmed++
	}
	return warmed, nil
}

// Guard exposes the cost guard for callers that combine checks, like the
// batch scheduler.
func (s *Service) Guard() *cost.Guard {
	return s.guard
}

// RefreshBookSummary recomputes a book's audio totals from its artifacts.
func (s *Service) RefreshBookSummary(ctx context.Context, bookID string) error {
	artifacts, err := s.artifacts.ListByBookID(ctx, bookID)
	if err != nil {
		return err
	}
	var totalCost, totalDuration float64
	for _, artifact := range artifacts {
		totalCost += artifact.Cost
		totalDuration += artifact.Duration
	}
	return s.books.UpdateAudioSummary(ctx, bookID, len(artifacts) > 0, cost.Round(totalCost), totalDuration)
}

func (s *Service) rebuildMapping(ctx context.Context, artifact *storage.AudioArtifact) (segment.Mapping, error) {
	chapter, err := s.chapters.FindByID(ctx, artifact.ChapterID)
	if err != nil {
		return segment.Mapping{}, err
	}
	if chapter == nil {
		return segment.Mapping{}, errors.New(errors.KindNotFound, "audio.sync",
			"chapter not found for artifact: "+artifact.ID)
	}
	segments := segment.Split(chapter.ID, chapter.Content)
	return segment.BuildMapping(artifact.ID, segments, artifact.Duration), nil
}

func (s *Service) mappingFor(ctx context.Context, artifact *storage.AudioArtifact) (segment.Mapping, error) {
	if cached, ok := s.meta.Get(audiocache.SyncKey(artifact.ID)); ok {
		return cached.(segment.Mapping), nil
	}
	mapping, err := s.rebuildMapping(ctx, artifact)
	if err != nil {
		return segment.Mapping{}, err
	}
	s.meta.Set(audiocache.SyncKey(artifact.ID), mapping)
	return mapping, nil
}

func (s *Service) resolveVoice(req GenerateRequest) string {
	if req.Voice != "" {
		return req.Voice
	}
	name := req.Provider
	if name == "" {
		if req.HighQuality {
			name = tts.ProviderOpenAI
		} else {
			name = tts.ProviderEdge
		}
	}
	if cfg, ok := s.cfg.TTS[name]; ok && cfg.Voice != "" {
		return cfg.Voice
	}
	return "en-US-AriaNeural"
}

func (s *Service) resolveProvider(req GenerateRequest) string {
	if req.Provider != "" {
		return req.Provider
	}
	if req.HighQuality {
		return tts.ProviderOpenAI
	}
	return ""
}

func contentTypeOf(format string) string {
	switch format {
	case "wav":
		return "audio/wav"
	case "ogg", "opus":
		return "audio/ogg"
	default:
		return "audio/mpeg"
	}
}

// resolveLanguage prefers an explicit request language, then the locale
// prefix of the voice name.
func resolveLanguage(requested, voice string) string {
	if requested != "" {
		return requested
	}
	if len(voice) >= 5 && voice[2] == '-' {
		return voice[:5]
	}
	return "en-US"
}
