package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-shortlist/domain"
)

func newTestBatch(blobs *memoryBlobStore, extractor *countingExtractor, scorer *funcScorer, progress ProgressTracker, maxParallelism int) *BatchProcessor {
	log, _ := newTestLogger()
	return NewBatchProcessor(NewCandidateProcessor(blobs, extractor, scorer, log), progress, maxParallelism, log)
}

func TestBatchProcessor_PartialFailureIsIsolated(t *testing.T) {
	blobs := newMemoryBlobStore()
	jobOpening := newJobOpeningInAnalysis(blobs, 5)
	extractor := &countingExtractor{fail: map[string]bool{"cv-1": true, "cv-3": true}}
	progress := newMemoryProgress()
	batch := newTestBatch(blobs, extractor, &funcScorer{}, progress, 3)

	working, err := batch.ProcessJobOpening(context.Background(), jobOpening)
	require.NoError(t, err)
	require.Len(t, working, 5)

	for i, c := range working {
		require.False(t, c.ToProcess(), "candidate %d left unprocessed", i)
		if i == 1 || i == 3 {
			assert.True(t, c.Failed(), "candidate %d should carry the failure marker", i)
			assert.Equal(t, uint8(0), *c.Rating)
			continue
		}
		assert.False(t, c.Failed())
		assert.Equal(t, uint8(75), *c.Rating)
	}

	p, err := progress.Get(context.Background(), jobOpening.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisProgress{JobOpeningID: jobOpening.ID, Total: 5, Processed: 5, Failed: 2}, p)
}

func TestBatchProcessor_DoesNotModifyJobOpening(t *testing.T) {
	blobs := newMemoryBlobStore()
	jobOpening := newJobOpeningInAnalysis(blobs, 3)
	batch := newTestBatch(blobs, &countingExtractor{}, &funcScorer{}, nil, 2)

	_, err := batch.ProcessJobOpening(context.Background(), jobOpening)
	require.NoError(t, err)

	for _, c := range jobOpening.CandidateCvs {
		assert.True(t, c.ToProcess())
	}
}

func TestBatchProcessor_SkipsProcessedCandidates(t *testing.T) {
	blobs := newMemoryBlobStore()
	jobOpening := newJobOpeningInAnalysis(blobs, 4)
	jobOpening.CandidateCvs[0].SetResult(verdictJSON(60), 60)
	jobOpening.CandidateCvs[2].MarkFailed()
	extractor := &countingExtractor{}
	scorer := &funcScorer{}
	batch := newTestBatch(blobs, extractor, scorer, nil, 4)

	working, err := batch.ProcessJobOpening(context.Background(), jobOpening)
	require.NoError(t, err)

	assert.Equal(t, int32(2), extractor.calls.Load())
	assert.Equal(t, int32(2), scorer.calls.Load())
	assert.Equal(t, uint8(60), *working[0].Rating)
	assert.True(t, working[2].Failed())

	// A second pass over the result finds nothing to do.
	jobOpening.CandidateCvs = working
	again, err := batch.ProcessJobOpening(context.Background(), jobOpening)
	require.NoError(t, err)
	assert.Equal(t, int32(2), extractor.calls.Load())
	assert.Equal(t, int32(2), scorer.calls.Load())
	assert.Equal(t, working, again)
}

func TestBatchProcessor_RespectsParallelismBound(t *testing.T) {
	for _, limit := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			blobs := newMemoryBlobStore()
			jobOpening := newJobOpeningInAnalysis(blobs, 20)
			extractor := &countingExtractor{delay: 5 * time.Millisecond}
			batch := newTestBatch(blobs, extractor, &funcScorer{}, nil, limit)

			working, err := batch.ProcessJobOpening(context.Background(), jobOpening)
			require.NoError(t, err)

			assert.Equal(t, int32(20), extractor.calls.Load())
			assert.LessOrEqual(t, extractor.maxInFlight.Load(), int32(limit))
			assert.Positive(t, extractor.maxInFlight.Load())
			for _, c := range working {
				assert.False(t, c.ToProcess())
			}
		})
	}
}

func TestBatchProcessor_NoPendingCandidates(t *testing.T) {
	blobs := newMemoryBlobStore()
	jobOpening := newJobOpeningInAnalysis(blobs, 0)
	extractor := &countingExtractor{}
	batch := newTestBatch(blobs, extractor, &funcScorer{}, nil, 2)

	working, err := batch.ProcessJobOpening(context.Background(), jobOpening)
	require.NoError(t, err)
	assert.Empty(t, working)
	assert.Zero(t, extractor.calls.Load())
}

func TestBatchProcessor_CancelledContext(t *testing.T) {
	blobs := newMemoryBlobStore()
	jobOpening := newJobOpeningInAnalysis(blobs, 2)
	batch := newTestBatch(blobs, &countingExtractor{}, &funcScorer{}, nil, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	working, err := batch.ProcessJobOpening(ctx, jobOpening)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, working)
}

func TestBatchProcessor_CancelledMidBatchLeavesRemainderPending(t *testing.T) {
	blobs := newMemoryBlobStore()
	jobOpening := newJobOpeningInAnalysis(blobs, 6)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scorer := &funcScorer{fn: func(_ context.Context, _, _, text string) (string, error) {
		if text == "text:cv-1" {
			cancel()
		}
		return verdictJSON(50), nil
	}}
	batch := newTestBatch(blobs, &countingExtractor{}, scorer, nil, 1)

	working, err := batch.ProcessJobOpening(ctx, jobOpening)
	require.NoError(t, err)

	assert.False(t, working[0].ToProcess())
	assert.Equal(t, uint8(50), *working[0].Rating)
	for _, c := range working[1:] {
		assert.True(t, c.ToProcess(), "cancelled candidates must not be marked failed")
	}
}
