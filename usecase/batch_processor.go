package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"cv-shortlist/domain"
)

const DefaultMaxParallelism = 10

// BatchProcessor analyses the pending candidates of one job opening on a bounded worker pool.
type BatchProcessor struct {
	processor      *CandidateProcessor
	progress       ProgressTracker
	maxParallelism int
	log            logrus.FieldLogger
}

func NewBatchProcessor(processor *CandidateProcessor, progress ProgressTracker, maxParallelism int, log logrus.FieldLogger) *BatchProcessor {
	if maxParallelism < 1 {
		maxParallelism = DefaultMaxParallelism
	}
	if progress == nil {
		progress = NopProgressTracker{}
	}
	return &BatchProcessor{
		processor:      processor,
		progress:       progress,
		maxParallelism: maxParallelism,
		log:            log.WithField("component", "batch_processor"),
	}
}

// ProcessJobOpening returns a working copy of the job opening's candidates with every
// pending candidate either scored or marked failed. The job opening itself is not modified.
// An error means the batch as a whole failed and nothing should be persisted.
func (b *BatchProcessor) ProcessJobOpening(ctx context.Context, jobOpening *domain.JobOpening) (working []domain.CandidateCv, err error) {
	defer func() {
		if r := recover(); r != nil {
			working = nil
			err = fmt.Errorf("process job opening %s: panic: %v", jobOpening.ID, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working = make([]domain.CandidateCv, len(jobOpening.CandidateCvs))
	copy(working, jobOpening.CandidateCvs)

	var pending []int
	for i := range working {
		if working[i].ToProcess() {
			pending = append(pending, i)
		}
	}

	logger := b.log.WithFields(logrus.Fields{
		"job_opening_id": jobOpening.ID,
		"pending":        len(pending),
		"total":          len(working),
	})
	if len(pending) == 0 {
		logger.Debug("no candidate cvs to process")
		return working, nil
	}

	if err := b.progress.Start(ctx, jobOpening.ID, len(pending)); err != nil {
		logger.WithError(err).Warn("failed to start progress tracking")
	}
	logger.Info("processing candidate cvs")

	outcomes := make([]Outcome, len(pending))
	g := new(errgroup.Group)
	g.SetLimit(b.maxParallelism)

	for n, idx := range pending {
		if ctx.Err() != nil {
			outcomes[n] = Outcome{CandidateID: working[idx].ID, Skipped: true}
			continue
		}
		candidate := working[idx]
		g.Go(func() error {
			outcomes[n] = b.processor.Process(ctx, candidate, jobOpening)
			if !outcomes[n].Skipped {
				if err := b.progress.Advance(ctx, jobOpening.ID, outcomes[n].Err != nil); err != nil {
					logger.WithError(err).Warn("failed to advance progress")
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	var failed, skipped int
	for n, idx := range pending {
		o := outcomes[n]
		o.ApplyTo(&working[idx])
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		}
	}

	logger.WithFields(logrus.Fields{
		"failed":  failed,
		"skipped": skipped,
	}).Info("candidate cvs processed")

	return working, nil
}
