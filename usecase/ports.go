package usecase

import (
	"context"

	"cv-shortlist/domain"
)

// BlobStore keeps the uploaded PDF files. ownerKey is the job opening id, blobKey the candidate id.
type BlobStore interface {
	GetBlob(ctx context.Context, ownerKey, blobKey string) ([]byte, error)
	PutBlob(ctx context.Context, ownerKey, blobKey string, data []byte) error
	DeleteBlob(ctx context.Context, ownerKey, blobKey string) error
}

// TextExtractor turns PDF bytes into markdown-like text.
type TextExtractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// Scorer asks a language model to rate a CV against a job description.
// It returns the raw JSON verdict.
type Scorer interface {
	Score(ctx context.Context, jobDescription, targetLanguage, candidateText string) (string, error)
}

// AnalysisRepository is the persistence side of the analysis pipeline.
type AnalysisRepository interface {
	QueryJobOpeningsByStatus(ctx context.Context, status domain.JobOpeningStatus) ([]domain.JobOpening, error)
	// CommitJobOpeningAndCandidates writes the job opening and the analysis fields of every
	// candidate in a single transaction.
	CommitJobOpeningAndCandidates(ctx context.Context, jobOpening *domain.JobOpening, candidates []domain.CandidateCv) error
	// CommitCandidates writes candidate analysis fields only, leaving the job opening untouched.
	CommitCandidates(ctx context.Context, jobOpeningID string, candidates []domain.CandidateCv) error
}

// JobOpeningStore backs the recruiter facing operations.
type JobOpeningStore interface {
	CreateJobOpening(ctx context.Context, jobOpening *domain.JobOpening) error
	ListJobOpenings(ctx context.Context) ([]domain.JobOpening, error)
	// GetJobOpening loads a job opening. With page > 0 one page of candidates is loaded,
	// ordered by status: newest first while editing, best rated first once analysed.
	GetJobOpening(ctx context.Context, id string, page, pageSize int) (*domain.JobOpening, error)
	UpdateJobOpening(ctx context.Context, jobOpening *domain.JobOpening) error
	// TransitionStatus moves a job opening from one status to the next, failing with
	// domain.ErrStatusConflict when the stored status is not from.
	TransitionStatus(ctx context.Context, id string, from, to domain.JobOpeningStatus) error
	DeleteJobOpening(ctx context.Context, id string) error

	CandidateHashes(ctx context.Context, jobOpeningID string) (map[string]struct{}, error)
	CountCandidates(ctx context.Context, jobOpeningID string) (int, error)
	AddCandidateCv(ctx context.Context, candidate *domain.CandidateCv) error
	ListCandidateIDs(ctx context.Context, jobOpeningID string) ([]string, error)
	DeleteCandidateCvs(ctx context.Context, jobOpeningID string, ids []string) error
}

// EventPublisher announces job opening state changes.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.JobOpeningEvent) error
}

// ProgressTracker records per job opening analysis progress.
type ProgressTracker interface {
	Start(ctx context.Context, jobOpeningID string, total int) error
	Advance(ctx context.Context, jobOpeningID string, failed bool) error
	Finish(ctx context.Context, jobOpeningID string) error
	Get(ctx context.Context, jobOpeningID string) (domain.AnalysisProgress, error)
}

// PageCounter reports the number of pages of a PDF, failing when the bytes are not a PDF.
type PageCounter interface {
	CountPages(pdf []byte) (int, error)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.JobOpeningEvent) error { return nil }

// NopProgressTracker is used when no progress backend is configured.
type NopProgressTracker struct{}

func (NopProgressTracker) Start(context.Context, string, int) error    { return nil }
func (NopProgressTracker) Advance(context.Context, string, bool) error { return nil }
func (NopProgressTracker) Finish(context.Context, string) error        { return nil }
func (NopProgressTracker) Get(_ context.Context, id string) (domain.AnalysisProgress, error) {
	return domain.AnalysisProgress{JobOpeningID: id}, nil
}
