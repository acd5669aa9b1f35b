package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"cv-shortlist/domain"
)

func newTestLogger() (*logrus.Logger, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

func verdictJSON(rating int) string {
	return fmt.Sprintf(`{"Rating":%d,"CvSummary":"summary","Advantages":"advantages","Disadvantages":"disadvantages","ReasonsForRating":"reasons"}`, rating)
}

// memoryBlobStore keeps blobs keyed by candidate id.
type memoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	gets  atomic.Int32
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: map[string][]byte{}}
}

func (m *memoryBlobStore) GetBlob(_ context.Context, _, blobKey string) ([]byte, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[blobKey]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", blobKey, domain.ErrNotFound)
	}
	return data, nil
}

func (m *memoryBlobStore) PutBlob(_ context.Context, _, blobKey string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[blobKey] = data
	return nil
}

func (m *memoryBlobStore) DeleteBlob(_ context.Context, _, blobKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[blobKey]; !ok {
		return domain.ErrNotFound
	}
	delete(m.blobs, blobKey)
	return nil
}

func (m *memoryBlobStore) has(blobKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[blobKey]
	return ok
}

// countingExtractor returns "text:<pdf>" and records how many calls run at the same time.
type countingExtractor struct {
	delay       time.Duration
	fail        map[string]bool
	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (e *countingExtractor) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	e.calls.Add(1)
	n := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		max := e.maxInFlight.Load()
		if n <= max || e.maxInFlight.CompareAndSwap(max, n) {
			break
		}
	}

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return "", &domain.ExtractionError{Provider: "fake", Err: ctx.Err()}
		}
	}
	if e.fail[string(pdf)] {
		return "", &domain.ExtractionError{Provider: "fake", Err: errors.New("malformed pdf")}
	}
	return "text:" + string(pdf), nil
}

// funcScorer delegates to fn, defaulting to a rating of 75.
type funcScorer struct {
	fn    func(ctx context.Context, description, language, text string) (string, error)
	calls atomic.Int32
}

func (s *funcScorer) Score(ctx context.Context, description, language, text string) (string, error) {
	s.calls.Add(1)
	if s.fn != nil {
		return s.fn(ctx, description, language, text)
	}
	return verdictJSON(75), nil
}

// memoryRepository is an in-memory AnalysisRepository.
type memoryRepository struct {
	mu          sync.Mutex
	jobOpenings map[string]*domain.JobOpening
	order       []string

	queryErr     error
	queryPanics  int
	commitErr    error
	queries      int
	commits      int
	partialSaves [][]domain.CandidateCv
}

func newMemoryRepository(jobOpenings ...*domain.JobOpening) *memoryRepository {
	r := &memoryRepository{jobOpenings: map[string]*domain.JobOpening{}}
	for _, j := range jobOpenings {
		r.jobOpenings[j.ID] = cloneJobOpening(j)
		r.order = append(r.order, j.ID)
	}
	return r
}

func cloneJobOpening(j *domain.JobOpening) *domain.JobOpening {
	c := *j
	c.CandidateCvs = append([]domain.CandidateCv(nil), j.CandidateCvs...)
	return &c
}

func (r *memoryRepository) QueryJobOpeningsByStatus(_ context.Context, status domain.JobOpeningStatus) ([]domain.JobOpening, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	if r.queryPanics > 0 {
		r.queryPanics--
		panic("database driver exploded")
	}
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	var out []domain.JobOpening
	for _, id := range r.order {
		if j := r.jobOpenings[id]; j.Status == status {
			out = append(out, *cloneJobOpening(j))
		}
	}
	return out, nil
}

func (r *memoryRepository) CommitJobOpeningAndCandidates(_ context.Context, jobOpening *domain.JobOpening, candidates []domain.CandidateCv) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return &domain.PersistenceError{JobOpeningID: jobOpening.ID, Err: r.commitErr}
	}
	r.commits++
	stored := r.jobOpenings[jobOpening.ID]
	stored.Status = jobOpening.Status
	stored.DateLastModified = jobOpening.DateLastModified
	r.applyCandidates(stored, candidates)
	return nil
}

func (r *memoryRepository) CommitCandidates(_ context.Context, jobOpeningID string, candidates []domain.CandidateCv) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partialSaves = append(r.partialSaves, candidates)
	r.applyCandidates(r.jobOpenings[jobOpeningID], candidates)
	return nil
}

func (r *memoryRepository) applyCandidates(stored *domain.JobOpening, candidates []domain.CandidateCv) {
	for _, c := range candidates {
		for i := range stored.CandidateCvs {
			if stored.CandidateCvs[i].ID == c.ID {
				stored.CandidateCvs[i].Analysis = c.Analysis
				stored.CandidateCvs[i].Rating = c.Rating
			}
		}
	}
}

func (r *memoryRepository) get(id string) *domain.JobOpening {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneJobOpening(r.jobOpenings[id])
}

func (r *memoryRepository) queryCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queries
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.JobOpeningEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event domain.JobOpeningEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// memoryProgress is an in-memory ProgressTracker.
type memoryProgress struct {
	mu       sync.Mutex
	progress map[string]domain.AnalysisProgress
	finished []string
}

func newMemoryProgress() *memoryProgress {
	return &memoryProgress{progress: map[string]domain.AnalysisProgress{}}
}

func (m *memoryProgress) Start(_ context.Context, id string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[id] = domain.AnalysisProgress{JobOpeningID: id, Total: total}
	return nil
}

func (m *memoryProgress) Advance(_ context.Context, id string, failed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.progress[id]
	p.Processed++
	if failed {
		p.Failed++
	}
	m.progress[id] = p
	return nil
}

func (m *memoryProgress) Finish(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, id)
	return nil
}

func (m *memoryProgress) Get(_ context.Context, id string) (domain.AnalysisProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress[id], nil
}

// newJobOpeningInAnalysis builds a job opening with n pending candidates whose blobs are
// stored as "cv-<index>".
func newJobOpeningInAnalysis(blobs *memoryBlobStore, n int) *domain.JobOpening {
	j := domain.NewJobOpening("Backend", "Senior Go Engineer, 5+ years", "English", time.Now())
	j.Status = domain.StatusInAnalysis
	for i := 0; i < n; i++ {
		pdf := []byte(fmt.Sprintf("cv-%d", i))
		c := domain.NewCandidateCv(j.ID, fmt.Sprintf("cv-%d.pdf", i), pdf, time.Now())
		_ = blobs.PutBlob(context.Background(), j.ID, c.ID, pdf)
		j.CandidateCvs = append(j.CandidateCvs, *c)
	}
	return j
}

func sortedIDs(cs []domain.CandidateCv) []string {
	ids := make([]string, 0, len(cs))
	for _, c := range cs {
		ids = append(ids, c.ID)
	}
	sort.Strings(ids)
	return ids
}
