package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-shortlist/domain"
)

type schedulerFixture struct {
	blobs     *memoryBlobStore
	extractor *countingExtractor
	scorer    *funcScorer
	repo      *memoryRepository
	events    *recordingPublisher
	progress  *memoryProgress
	scheduler *Scheduler
	hook      *logtest.Hook
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newSchedulerFixture(t *testing.T, candidates ...int) *schedulerFixture {
	t.Helper()
	f := &schedulerFixture{
		blobs:     newMemoryBlobStore(),
		extractor: &countingExtractor{},
		scorer:    &funcScorer{},
		events:    &recordingPublisher{},
		progress:  newMemoryProgress(),
	}
	var jobOpenings []*domain.JobOpening
	for _, n := range candidates {
		jobOpenings = append(jobOpenings, newJobOpeningInAnalysis(f.blobs, n))
	}
	f.repo = newMemoryRepository(jobOpenings...)

	log, hook := newTestLogger()
	f.hook = hook
	batch := NewBatchProcessor(NewCandidateProcessor(f.blobs, f.extractor, f.scorer, log), f.progress, 4, log)
	f.scheduler = NewScheduler(f.repo, batch, 10*time.Millisecond, log,
		WithEventPublisher(f.events),
		WithProgressTracker(f.progress),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func (f *schedulerFixture) hasLog(level logrus.Level, message string) bool {
	for _, e := range f.hook.AllEntries() {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

func TestScheduler_RunCycleCompletesJobOpenings(t *testing.T) {
	f := newSchedulerFixture(t, 3, 2)
	f.extractor.fail = map[string]bool{"cv-1": true}

	require.NoError(t, f.scheduler.RunCycle(context.Background()))

	for _, id := range f.repo.order {
		stored := f.repo.get(id)
		assert.Equal(t, domain.StatusAnalysisCompleted, stored.Status)
		assert.Equal(t, fixedNow, stored.DateLastModified)
		for _, c := range stored.CandidateCvs {
			assert.False(t, c.ToProcess())
		}
	}

	first := f.repo.get(f.repo.order[0])
	assert.True(t, first.CandidateCvs[1].Failed())
	assert.Equal(t, uint8(75), *first.CandidateCvs[0].Rating)

	require.Len(t, f.events.events, 2)
	assert.Equal(t, domain.EventAnalysisCompleted, f.events.events[0].Type)
	assert.Equal(t, f.repo.order, f.progress.finished)
}

func TestScheduler_IgnoresOtherStatuses(t *testing.T) {
	f := newSchedulerFixture(t, 2)
	stored := f.repo.jobOpenings[f.repo.order[0]]
	stored.Status = domain.StatusOpenForEditing

	require.NoError(t, f.scheduler.RunCycle(context.Background()))

	assert.Zero(t, f.extractor.calls.Load())
	assert.Equal(t, domain.StatusOpenForEditing, f.repo.get(stored.ID).Status)
}

func TestScheduler_CommitFailureLeavesJobOpeningInAnalysis(t *testing.T) {
	f := newSchedulerFixture(t, 2, 1)
	f.repo.commitErr = errors.New("deadlock found when trying to get lock")

	require.NoError(t, f.scheduler.RunCycle(context.Background()))

	for _, id := range f.repo.order {
		stored := f.repo.get(id)
		assert.Equal(t, domain.StatusInAnalysis, stored.Status)
		for _, c := range stored.CandidateCvs {
			assert.True(t, c.ToProcess())
		}
	}
	assert.True(t, f.hasLog(logrus.ErrorLevel, "failed to update processed job opening"))
	assert.Empty(t, f.events.events)
	// Both job openings were attempted even though the first commit failed.
	assert.Equal(t, int32(3), f.extractor.calls.Load())

	f.repo.commitErr = nil
	require.NoError(t, f.scheduler.RunCycle(context.Background()))

	for _, id := range f.repo.order {
		assert.Equal(t, domain.StatusAnalysisCompleted, f.repo.get(id).Status)
	}

	// Nothing left to do afterwards.
	calls := f.extractor.calls.Load()
	require.NoError(t, f.scheduler.RunCycle(context.Background()))
	assert.Equal(t, calls, f.extractor.calls.Load())
}

func TestScheduler_RetriedJobOpeningSkipsScoredCandidates(t *testing.T) {
	f := newSchedulerFixture(t, 3)
	stored := f.repo.jobOpenings[f.repo.order[0]]
	stored.CandidateCvs[0].SetResult(verdictJSON(90), 90)
	stored.CandidateCvs[1].MarkFailed()

	require.NoError(t, f.scheduler.RunCycle(context.Background()))

	assert.Equal(t, int32(1), f.extractor.calls.Load())
	result := f.repo.get(stored.ID)
	assert.Equal(t, domain.StatusAnalysisCompleted, result.Status)
	assert.Equal(t, uint8(90), *result.CandidateCvs[0].Rating)
	assert.True(t, result.CandidateCvs[1].Failed())
	assert.Equal(t, uint8(75), *result.CandidateCvs[2].Rating)
}

func TestScheduler_QueryErrorIsReturned(t *testing.T) {
	f := newSchedulerFixture(t, 1)
	f.repo.queryErr = errors.New("connection refused")

	err := f.scheduler.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestScheduler_RunSurvivesPanicAndStopsOnCancel(t *testing.T) {
	f := newSchedulerFixture(t, 2)
	f.repo.queryPanics = 1

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.scheduler.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.repo.get(f.repo.order[0]).Status == domain.StatusAnalysisCompleted
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	var critical bool
	for _, e := range f.hook.AllEntries() {
		if e.Data["severity"] == "critical" {
			critical = true
		}
	}
	assert.True(t, critical)
	assert.GreaterOrEqual(t, f.repo.queryCount(), 2)
}

func TestScheduler_WakeStartsCycleEarly(t *testing.T) {
	f := newSchedulerFixture(t)
	log, _ := newTestLogger()
	batch := NewBatchProcessor(NewCandidateProcessor(f.blobs, f.extractor, f.scorer, log), nil, 1, log)
	s := NewScheduler(f.repo, batch, time.Hour, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	require.Eventually(t, func() bool { return f.repo.queryCount() == 1 }, time.Second, 5*time.Millisecond)
	s.Wake()
	require.Eventually(t, func() bool { return f.repo.queryCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_CancellationSavesScoredCandidates(t *testing.T) {
	f := newSchedulerFixture(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.scorer.fn = func(_ context.Context, _, _, text string) (string, error) {
		if text == "text:cv-1" {
			cancel()
		}
		return verdictJSON(64), nil
	}
	log, _ := newTestLogger()
	batch := NewBatchProcessor(NewCandidateProcessor(f.blobs, f.extractor, f.scorer, log), nil, 1, log)
	s := NewScheduler(f.repo, batch, time.Minute, log)

	require.NoError(t, s.RunCycle(ctx))

	stored := f.repo.get(f.repo.order[0])
	assert.Equal(t, domain.StatusInAnalysis, stored.Status)
	assert.Equal(t, uint8(64), *stored.CandidateCvs[0].Rating)
	for _, c := range stored.CandidateCvs[1:] {
		assert.True(t, c.ToProcess())
	}
	require.Len(t, f.repo.partialSaves, 1)
	assert.Equal(t, []string{stored.CandidateCvs[0].ID}, sortedIDs(f.repo.partialSaves[0]))
	assert.Zero(t, f.repo.commits)
}
