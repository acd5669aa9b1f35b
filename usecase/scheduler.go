package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"cv-shortlist/domain"
)

const (
	DefaultPollInterval = time.Minute

	// Scored candidates are saved on shutdown with a context of their own.
	shutdownSaveTimeout = 30 * time.Second
)

// Scheduler is the background loop that drives the analysis of submitted job openings.
type Scheduler struct {
	repo         AnalysisRepository
	batch        *BatchProcessor
	events       EventPublisher
	progress     ProgressTracker
	pollInterval time.Duration
	now          func() time.Time
	wake         chan struct{}
	log          logrus.FieldLogger
}

type SchedulerOption func(*Scheduler)

func WithEventPublisher(p EventPublisher) SchedulerOption {
	return func(s *Scheduler) {
		if p != nil {
			s.events = p
		}
	}
}

func WithProgressTracker(p ProgressTracker) SchedulerOption {
	return func(s *Scheduler) {
		if p != nil {
			s.progress = p
		}
	}
}

func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

func NewScheduler(repo AnalysisRepository, batch *BatchProcessor, pollInterval time.Duration, log logrus.FieldLogger, opts ...SchedulerOption) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	s := &Scheduler{
		repo:         repo,
		batch:        batch,
		events:       nopPublisher{},
		progress:     NopProgressTracker{},
		pollInterval: pollInterval,
		now:          time.Now,
		wake:         make(chan struct{}, 1),
		log:          log.WithField("component", "analysis_scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wake makes a sleeping scheduler start its next cycle right away.
func (s *Scheduler) Wake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. It only returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithField("poll_interval", s.pollInterval.String()).Info("analysis scheduler started")
	defer s.log.Info("analysis scheduler stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if err := s.guardedCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Error("analysis cycle failed")
		}

		timer := time.NewTimer(s.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-s.wake:
			timer.Stop()
			s.log.Debug("woken up before poll interval")
		case <-timer.C:
		}
	}
}

// guardedCycle runs one cycle and turns a panic into a critical log entry.
func (s *Scheduler) guardedCycle(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(logrus.Fields{
				"severity": "critical",
				"panic":    r,
			}).Error("unhandled fault in analysis scheduler loop")
		}
	}()
	return s.RunCycle(ctx)
}

// RunCycle processes every job opening currently in analysis, one after the other.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	jobOpenings, err := s.repo.QueryJobOpeningsByStatus(ctx, domain.StatusInAnalysis)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("query job openings in analysis: %w", err)
	}
	if len(jobOpenings) > 0 {
		s.log.WithField("count", len(jobOpenings)).Info("job openings due for analysis")
	}

	for i := range jobOpenings {
		if ctx.Err() != nil {
			return nil
		}
		s.processJobOpening(ctx, &jobOpenings[i])
	}
	return nil
}

func (s *Scheduler) processJobOpening(ctx context.Context, jobOpening *domain.JobOpening) {
	logger := s.log.WithField("job_opening_id", jobOpening.ID)

	working, err := s.batch.ProcessJobOpening(ctx, jobOpening)
	if err != nil {
		if ctx.Err() == nil {
			logger.WithError(err).Error("failed to process job opening")
		}
		return
	}

	if ctx.Err() != nil {
		s.saveOnShutdown(ctx, jobOpening, working, logger)
		return
	}

	completed := *jobOpening
	completed.CandidateCvs = nil
	completed.Status = domain.StatusAnalysisCompleted
	completed.DateLastModified = s.now().UTC()

	if err := s.repo.CommitJobOpeningAndCandidates(ctx, &completed, working); err != nil {
		logger.WithError(err).Error("failed to update processed job opening")
		return
	}

	if err := s.progress.Finish(ctx, jobOpening.ID); err != nil {
		logger.WithError(err).Warn("failed to finish progress tracking")
	}
	event := domain.JobOpeningEvent{
		Type:         domain.EventAnalysisCompleted,
		JobOpeningID: jobOpening.ID,
		OccurredAt:   completed.DateLastModified,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.WithError(err).Warn("failed to publish analysis completed event")
	}
	logger.WithField("candidates", len(working)).Info("job opening analysis completed")
}

// saveOnShutdown keeps the candidates scored during an interrupted batch. The job opening
// stays in analysis and the remaining candidates are processed after restart.
func (s *Scheduler) saveOnShutdown(ctx context.Context, jobOpening *domain.JobOpening, working []domain.CandidateCv, logger logrus.FieldLogger) {
	var scored []domain.CandidateCv
	for i, c := range working {
		if jobOpening.CandidateCvs[i].ToProcess() && !c.ToProcess() {
			scored = append(scored, c)
		}
	}
	if len(scored) == 0 {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownSaveTimeout)
	defer cancel()
	if err := s.repo.CommitCandidates(saveCtx, jobOpening.ID, scored); err != nil {
		logger.WithError(err).Error("failed to save scored candidates on shutdown")
		return
	}
	logger.WithField("saved", len(scored)).Info("saved scored candidates on shutdown")
}
