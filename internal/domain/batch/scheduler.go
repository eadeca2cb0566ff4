package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bookaudio-server-go/internal/domain/audio"
	"bookaudio-server-go/internal/domain/cost"
	"bookaudio-server-go/internal/domain/events"
	"bookaudio-server-go/internal/platform/config"
	"bookaudio-server-go/internal/platform/errors"
	"bookaudio-server-go/internal/platform/storage"
)

// Job statuses mirror the book's audio status values.
const (
	StatusPending    = storage.AudioStatusPending
	StatusProcessing = storage.AudioStatusProcessing
	StatusCompleted  = storage.AudioStatusCompleted
	StatusFailed     = storage.AudioStatusFailed
)

// Failure records one chapter that did not synthesize.
type Failure struct {
	ChapterID string `json:"chapter_id"`
	Error     string `json:"error"`
}

// Job tracks one whole-book generation run.
type Job struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Status     string    `json:"status"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	CostUSD    float64   `json:"cost_usd"`
	Failures   []Failure `json:"failures,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Scheduler runs whole-book synthesis in small parallel batches with a pause
// between batches so providers are not hammered. A chapter failure is
// recorded and the job keeps going; only a fault that prevents the run
// itself marks the job failed.
type Scheduler struct {
	cfg      config.BatchConfig
	logger   *slog.Logger
	service  *audio.Service
	books    storage.BookRepository
	chapters storage.ChapterRepository
	bus      *events.Bus

	mutex sync.RWMutex
	jobs  map[string]*Job
	wg    sync.WaitGroup
}

func NewScheduler(cfg config.BatchConfig, logger *slog.Logger, service *audio.Service,
	books storage.BookRepository, chapters storage.ChapterRepository, bus *events.Bus) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		books:    books,
		chapters: chapters,
		bus:      bus,
		jobs:     make(map[string]*Job),
	}
}

// BookRequest describes one whole-book generation run.
type BookRequest struct {
	BookID    string
	Voice     string
	Language  string
	Speed     float64
	Provider  string
	Requester string
}

// StartBook validates the request, checks the whole-book cost cap, and kicks
// off the run in the background. The returned job is already registered and
// can be polled immediately.
func (s *Scheduler) StartBook(ctx context.Context, req BookRequest) (*Job, error) {
	book, err := s.books.FindByID(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, errors.New(errors.KindNotFound, "batch.start", "book not found: "+req.BookID)
	}

	chapters, err := s.chapters.ListByBookID(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, errors.New(errors.KindValidation, "batch.start", "book has no chapters: "+req.BookID)
	}

	total, _, err := s.service.EstimateBook(ctx, req.BookID, req.Voice)
	if err != nil {
		return nil, err
	}
	if err := s.service.Guard().CheckBook(total); err != nil {
		return nil, err
	}
	if err := s.service.Guard().CheckHourly(ctx, req.Requester, audio.OpGenerateBook,
		cost.Estimate{Cost: total}); err != nil {
		return nil, err
	}

	job := &Job{
		ID:        uuid.NewString(),
		BookID:    req.BookID,
		Status:    StatusProcessing,
		Total:     len(chapters),
		StartedAt: time.Now(),
	}
	s.mutex.Lock()
	s.jobs[job.ID] = job
	s.mutex.Unlock()

	if err := s.books.UpdateAudioStatus(ctx, req.BookID, storage.AudioStatusProcessing); err != nil {
		s.logger.Error("failed to mark book processing", "book_id", req.BookID, "error", err)
	}
	s.bus.PublishJob(events.TopicJobStarted, events.JobEvent{
		JobID: job.ID, BookID: req.BookID, Status: StatusProcessing,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// The run outlives the HTTP request that started it.
		s.run(context.WithoutCancel(ctx), job, chapters, req)
	}()
	return s.snapshot(job.ID), nil
}

func (s *Scheduler) run(ctx context.Context, job *Job, chapters []*storage.Chapter, req BookRequest) {
	size := s.cfg.Size
	if size <= 0 {
		size = 1
	}

	for start := 0; start < len(chapters); start += size {
		end := start + size
		if end > len(chapters) {
			end = len(chapters)
		}
		s.runBatch(ctx, job, chapters[start:end], req)

		if end < len(chapters) && s.cfg.Delay.Std() > 0 {
			time.Sleep(s.cfg.Delay.Std())
		}
	}

	s.finish(ctx, job)
}

func (s *Scheduler) runBatch(ctx context.Context, job *Job, chapters []*storage.Chapter, req BookRequest) {
	var wg sync.WaitGroup
	for _, chapter := range chapters {
		wg.Add(1)
		go func(chapter *storage.Chapter) {
			defer wg.Done()

			callCtx := ctx
			if timeout := s.cfg.CallTimeout.Std(); timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			result, err := s.service.GenerateChapter(callCtx, audio.GenerateRequest{
				ChapterID: chapter.ID,
				Voice:     req.Voice,
				Language:  req.Language,
				Speed:     req.Speed,
				Provider:  req.Provider,
				Requester: req.Requester,
				Op:        audio.OpGenerateBook,
			})

			s.mutex.Lock()
			defer s.mutex.Unlock()
			if err != nil {
				job.Failed++
				job.Failures = append(job.Failures, Failure{ChapterID: chapter.ID, Error: err.Error()})
				s.logger.Warn("batch chapter failed",
					"job_id", job.ID, "chapter_id", chapter.ID, "error", err)
				return
			}
			job.Succeeded++
			job.CostUSD += result.CostUSD
		}(chapter)
	}
	wg.Wait()
}

func (s *Scheduler) finish(ctx context.Context, job *Job) {
	s.mutex.Lock()
	job.Status = StatusCompleted
	job.FinishedAt = time.Now()
	succeeded, failed, cost := job.Succeeded, job.Failed, job.CostUSD
	s.mutex.Unlock()

	bookStatus := storage.AudioStatusCompleted
	if succeeded == 0 {
		bookStatus = storage.AudioStatusFailed
	}
	if err := s.books.UpdateAudioStatus(ctx, job.BookID, bookStatus); err != nil {
		s.logger.Error("failed to mark book finished", "book_id", job.BookID, "error", err)
	}
	if err := s.service.RefreshBookSummary(ctx, job.BookID); err != nil {
		s.logger.Error("failed to refresh book summary", "book_id", job.BookID, "error", err)
	}

	topic := events.TopicJobCompleted
	if succeeded == 0 {
		topic = events.TopicJobFailed
	}
	s.bus.PublishJob(topic, events.JobEvent{
		JobID:     job.ID,
		BookID:    job.BookID,
		Status:    StatusCompleted,
		Succeeded: succeeded,
		Failed:    failed,
		CostUSD:   cost,
	})
	s.logger.Info("book job finished",
		"job_id", job.ID,
		"book_id", job.BookID,
		"succeeded", succeeded,
		"failed", failed,
		"cost_usd", cost)
}

// Job returns a copy of the tracked job, or nil when unknown.
func (s *Scheduler) Job(id string) *Job {
	return s.snapshot(id)
}

// Jobs lists copies of all tracked jobs.
func (s *Scheduler) Jobs() []*Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for id := range s.jobs {
		out = append(out, s.copyLocked(id))
	}
	return out
}

// Wait blocks until all running jobs finish. Used by shutdown and tests.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) snapshot(id string) *Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.copyLocked(id)
}

// caller holds at least a read lock
func (s *Scheduler) copyLocked(id string) *Job {
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	copied := *job
	copied.Failures = append([]Failure(nil), job.Failures...)
	return &copied
}
