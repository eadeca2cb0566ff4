package audioapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bookaudio-server-go/internal/domain/audio"
	"bookaudio-server-go/internal/domain/audiocache"
	"bookaudio-server-go/internal/domain/batch"
	"bookaudio-server-go/internal/domain/quota"
	"bookaudio-server-go/internal/domain/tts"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/logging"
	"bookaudio-server-go/internal/platform/storage"
	httptransport "bookaudio-server-go/internal/transport/http"
)

// Service exposes the audio pipeline over HTTP.
type Service struct {
	cfg       *config.Config
	logger    *logging.Logger
	audio     *audio.Service
	scheduler *batch.Scheduler
	limiter   *quota.Limiter
	voices    VoiceCatalog
	books     storage.BookRepository
	started   time.Time
}

// VoiceCatalog is the orchestrator's voice listing.
type VoiceCatalog interface {
	Voices() []tts.Voice
	Providers() []string
}

func NewService(cfg *config.Config, logger *logging.Logger, audioService *audio.Service,
	scheduler *batch.Scheduler, limiter *quota.Limiter, voices VoiceCatalog,
	books storage.BookRepository) *Service {
	return &Service{
		cfg:       cfg,
		logger:    logger,
		audio:     audioService,
		scheduler: scheduler,
		limiter:   limiter,
		voices:    voices,
		books:     books,
		started:   time.Now(),
	}
}

// RegisterRoutes attaches all audio endpoints under /api.
func (s *Service) RegisterRoutes(router *httptransport.Router) {
	api := router.API
	api.GET("/health", s.handleHealth)

	group := api.Group("/audio")
	group.POST("/chapters/:chapterID/generate", s.handleGenerateChapter)
	group.POST("/books/:bookID/generate", s.handleGenerateBook)
	group.GET("/books/:bookID/status", s.handleBookStatus)
	group.POST("/books/:bookID/preload", s.handlePreloadBook)
	group.GET("/stream/:artifactID", s.handleStream)
	group.GET("/artifacts/:artifactID", s.handleMetadata)
	group.GET("/artifacts/:artifactID/segments", s.handleSyncSegments)
	group.POST("/estimate", s.handleEstimate)
	group.GET("/voices", s.handleVoices)
	group.GET("/jobs/:jobID", s.handleJobStatus)
	group.GET("/cache/stats", s.handleCacheStats)
	group.POST("/cache/clear", s.handleCacheClear)
	group.POST("/cache/warmup", s.handleCacheWarmup)
}

// requesterID identifies the caller for quotas and spend ledgers. Clients
// may pin an explicit id; otherwise the client IP is used.
func requesterID(c *gin.Context) string {
	if id := c.GetHeader("X-Requester-ID"); id != "" {
		return id
	}
	return c.ClientIP()
}

type generateChapterRequest struct {
	Voice       string  `json:"voice"`
	Language    string  `json:"language"`
	Speed       float64 `json:"speed"`
	Provider    string  `json:"provider"`
	HighQuality bool    `json:"high_quality"`
}

func (s *Service) handleGenerateChapter(c *gin.Context) {
	var req generateChapterRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	}

	requester := requesterID(c)
	if err := s.limiter.AllowGenerate(c.Request.Context(), requester, req.HighQuality); err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	result, err := s.audio.GenerateChapter(c.Request.Context(), audio.GenerateRequest{
		ChapterID:   c.Param("chapterID"),
		Voice:       req.Voice,
		Language:    req.Language,
		Speed:       req.Speed,
		Provider:    req.Provider,
		HighQuality: req.HighQuality,
		Requester:   requester,
	})
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	status := http.StatusCreated
	message := "audio generated"
	if result.Cached {
		status = http.StatusOK
		message = "audio already exists"
	}
	httptransport.RespondSuccess(c, status, result, message)
}

type generateBookRequest struct {
	Voice    string  `json:"voice"`
	Language string  `json:"language"`
	Speed    float64 `json:"speed"`
	Provider string  `json:"provider"`
}

func (s *Service) handleGenerateBook(c *gin.Context) {
	var req generateBookRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	}

	requester := requesterID(c)
	if err := s.limiter.AllowGenerate(c.Request.Context(), requester, false); err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	job, err := s.scheduler.StartBook(c.Request.Context(), batch.BookRequest{
		BookID:    c.Param("bookID"),
		Voice:     req.Voice,
		Language:  req.Language,
		Speed:     req.Speed,
		Provider:  req.Provider,
		Requester: requester,
	})
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusAccepted, job, "book generation started")
}

func (s *Service) handleBookStatus(c *gin.Context) {
	book, err := s.books.FindByID(c.Request.Context(), c.Param("bookID"))
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	if book == nil {
		httptransport.RespondError(c, http.StatusNotFound, "book not found", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"book_id":        book.ID,
		"has_audio":      book.HasAudio,
		"audio_status":   book.AudioStatus,
		"audio_cost":     book.AudioCost,
		"audio_duration": book.AudioDuration,
	}, "")
}

func (s *Service) handleJobStatus(c *gin.Context) {
	job := s.scheduler.Job(c.Param("jobID"))
	if job == nil {
		httptransport.RespondError(c, http.StatusNotFound, "job not found", nil)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, job, "")
}

// handleStream serves artifact bytes with Range support. Conditional
// requests that match the stored hash return 304 without counting against
// the stream quota.
func (s *Service) handleStream(c *gin.Context) {
	ctx := c.Request.Context()
	artifactID := c.Param("artifactID")

	artifact, err := s.audio.Metadata(ctx, artifactID)
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	if match := c.GetHeader("If-None-Match"); match != "" && etagMatches(match, artifact.ContentHash) {
		c.Header("ETag", quoteETag(artifact.ContentHash))
		c.Status(http.StatusNotModified)
		return
	}

	requester := requesterID(c)
	if err := s.limiter.AllowStream(ctx, requester); err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	if err := s.limiter.CheckBandwidth(ctx, requester); err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	entry, artifact, err := s.audio.Load(ctx, artifactID)
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}

	c.Header("Accept-Ranges", "bytes")
	c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.Cache.ArtifactTTL.Std().Seconds())))
	c.Header("X-Audio-Duration", strconv.FormatFloat(artifact.Duration, 'f', 3, 64))

	size := entry.Size
	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		c.Header("ETag", quoteETag(entry.Hash))
		c.Data(http.StatusOK, entry.ContentType, entry.Data)
		s.recordBandwidth(c, requester, size)
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		httptransport.RespondError(c, http.StatusRequestedRangeNotSatisfiable, err.Error(), nil)
		return
	}

	chunk := entry.Data[start : end+1]
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Header("ETag", quoteETag(audiocache.Hash(chunk)))
	c.Data(http.StatusPartialContent, entry.ContentType, chunk)
	s.recordBandwidth(c, requester, int64(len(chunk)))
}

func (s *Service) recordBandwidth(c *gin.Context, requester string, bytes int64) {
	if err := s.limiter.RecordBandwidth(c.Request.Context(), requester, bytes); err != nil {
		// The response already went out; the exhausted budget throttles the
		// next request.
		s.logger.Slog().Debug("bandwidth budget exhausted", "requester", requester)
	}
}

// parseRange interprets a single bytes range against the given size.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges not supported")
	}

	first, last, ok := strings.Cut(spec, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range")
	}
	first, last = strings.TrimSpace(first), strings.TrimSpace(last)

	if first == "" {
		// Suffix form: last N bytes.
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, fmt.Errorf("malformed suffix range")
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start")
	}
	if start >= size {
		return 0, 0, fmt.Errorf("range start beyond size")
	}

	if last == "" {
		return start, size - 1, nil
	}
	end, err = strconv.ParseInt(last, 10, 64)
	if err != nil || end < start {
		return 0, 0, fmt.Errorf("malformed range end")
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}

func etagMatches(header, hash string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == hash || candidate == "*" {
			return true
		}
	}
	return false
}

func quoteETag(hash string) string {
	return `"` + hash + `"`
}

func (s *Service) handleMetadata(c *gin.Context) {
	artifact, err := s.audio.Metadata(c.Request.Context(), c.Param("artifactID"))
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, artifact, "")
}

func (s *Service) handleSyncSegments(c *gin.Context) {
	mapping, err := s.audio.SyncSegments(c.Request.Context(), c.Param("artifactID"))
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, mapping, "")
}

func (s *Service) handlePreloadBook(c *gin.Context) {
	warmed, err := s.audio.PreloadBook(c.Request.Context(), c.Param("bookID"))
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"preloaded": warmed}, "")
}

type estimateRequest struct {
	Text      string `json:"text"`
	ChapterID string `json:"chapter_id"`
	Voice     string `json:"voice"`
}

func (s *Service) handleEstimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	switch {
	case req.Text != "":
		httptransport.RespondSuccess(c, http.StatusOK, s.audio.EstimateText(req.Text, req.Voice), "")
	case req.ChapterID != "":
		est, err := s.audio.EstimateChapter(c.Request.Context(), req.ChapterID, req.Voice)
		if err != nil {
			httptransport.RespondDomainError(c, err)
			return
		}
		httptransport.RespondSuccess(c, http.StatusOK, est, "")
	default:
		httptransport.RespondError(c, http.StatusBadRequest, "text or chapter_id required", nil)
	}
}

func (s *Service) handleVoices(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"voices":    s.voices.Voices(),
		"providers": s.voices.Providers(),
	}, "")
}

func (s *Service) handleCacheStats(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, s.audio.CacheStats(), "")
}

func (s *Service) handleCacheClear(c *gin.Context) {
	s.audio.ClearCaches()
	httptransport.RespondSuccess(c, http.StatusOK, nil, "caches cleared")
}

type warmupRequest struct {
	BookID string `json:"book_id"`
}

func (s *Service) handleCacheWarmup(c *gin.Context) {
	var req warmupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BookID == "" {
		httptransport.RespondError(c, http.StatusBadRequest, "book_id required", nil)
		return
	}
	warmed, err := s.audio.WarmBook(c.Request.Context(), req.BookID)
	if err != nil {
		httptransport.RespondDomainError(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{"warmed": warmed}, "")
}

func (s *Service) handleHealth(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(s.started).String(),
		"providers": s.voices.Providers(),
	}, "")
}
