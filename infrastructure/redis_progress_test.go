package infrastructure

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cv-shortlist/domain"
)

func TestRedisProgressTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tracker := NewRedisProgressTracker(client)
	ctx := context.Background()

	p, err := tracker.Get(ctx, "jo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisProgress{JobOpeningID: "jo-1"}, p)

	require.NoError(t, tracker.Start(ctx, "jo-1", 3))
	require.NoError(t, tracker.Advance(ctx, "jo-1", false))
	require.NoError(t, tracker.Advance(ctx, "jo-1", true))

	p, err = tracker.Get(ctx, "jo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisProgress{JobOpeningID: "jo-1", Total: 3, Processed: 2, Failed: 1}, p)
	assert.False(t, p.Done())
	assert.Equal(t, runningProgressTTL, mr.TTL(progressKey("jo-1")))

	require.NoError(t, tracker.Advance(ctx, "jo-1", false))
	require.NoError(t, tracker.Finish(ctx, "jo-1"))
	p, err = tracker.Get(ctx, "jo-1")
	require.NoError(t, err)
	assert.True(t, p.Done())
	assert.Equal(t, finishedProgressTTL, mr.TTL(progressKey("jo-1")))

	// Restarting resets the counters.
	require.NoError(t, tracker.Start(ctx, "jo-1", 1))
	p, err = tracker.Get(ctx, "jo-1")
	require.NoError(t, err)
	assert.Equal(t, domain.AnalysisProgress{JobOpeningID: "jo-1", Total: 1}, p)
}
