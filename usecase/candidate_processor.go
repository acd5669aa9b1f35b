package usecase

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"cv-shortlist/domain"
)

// Outcome is the result of processing one candidate.
type Outcome struct {
	CandidateID string
	Analysis    string
	Rating      uint8
	// Err is set when the candidate failed and must be stored as the sentinel result.
	Err error
	// Skipped is set when processing was abandoned because of cancellation.
	Skipped bool
}

func (o Outcome) OK() bool {
	return o.Err == nil && !o.Skipped
}

// ApplyTo writes the outcome into the candidate. Skipped outcomes leave it untouched so
// the candidate is picked up again by a later cycle.
func (o Outcome) ApplyTo(c *domain.CandidateCv) {
	switch {
	case o.Skipped:
	case o.Err != nil:
		c.MarkFailed()
	default:
		c.SetResult(o.Analysis, o.Rating)
	}
}

// CandidateProcessor runs blob fetch, text extraction and scoring for one candidate.
type CandidateProcessor struct {
	blobs     BlobStore
	extractor TextExtractor
	scorer    Scorer
	log       logrus.FieldLogger
}

func NewCandidateProcessor(blobs BlobStore, extractor TextExtractor, scorer Scorer, log logrus.FieldLogger) *CandidateProcessor {
	return &CandidateProcessor{
		blobs:     blobs,
		extractor: extractor,
		scorer:    scorer,
		log:       log.WithField("component", "candidate_processor"),
	}
}

// Process never returns an error and never panics. Failures are reported in the outcome.
func (p *CandidateProcessor) Process(ctx context.Context, candidate domain.CandidateCv, jobOpening *domain.JobOpening) (out Outcome) {
	logger := p.log.WithFields(logrus.Fields{
		"candidate_id":   candidate.ID,
		"job_opening_id": jobOpening.ID,
	})

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{CandidateID: candidate.ID, Err: fmt.Errorf("panic: %v", r)}
			logger.WithField("panic", r).Error("candidate processing panicked")
		}
	}()

	analysis, rating, err := p.run(ctx, candidate, jobOpening)
	if err != nil {
		if ctx.Err() != nil {
			logger.WithError(err).Debug("candidate processing abandoned")
			return Outcome{CandidateID: candidate.ID, Skipped: true}
		}
		logger.WithError(err).Error("failed to process candidate cv")
		return Outcome{CandidateID: candidate.ID, Err: err}
	}

	logger.WithField("rating", rating).Debug("candidate cv processed")
	return Outcome{CandidateID: candidate.ID, Analysis: analysis, Rating: rating}
}

func (p *CandidateProcessor) run(ctx context.Context, candidate domain.CandidateCv, jobOpening *domain.JobOpening) (string, uint8, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	pdf, err := p.blobs.GetBlob(ctx, jobOpening.ID, candidate.ID)
	if err != nil {
		return "", 0, fmt.Errorf("fetch blob: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	text, err := p.extractor.ExtractText(ctx, pdf)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	analysis, err := p.scorer.Score(ctx, jobOpening.Description, jobOpening.AnalysisLanguage, text)
	if err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	rating, err := domain.ParseRating(analysis)
	if err != nil {
		return "", 0, err
	}
	return analysis, rating, nil
}
