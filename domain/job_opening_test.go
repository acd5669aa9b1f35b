package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobOpeningStatusTransitions(t *testing.T) {
	assert.True(t, StatusOpenForEditing.CanTransitionTo(StatusInAnalysis))
	assert.True(t, StatusInAnalysis.CanTransitionTo(StatusAnalysisCompleted))

	assert.False(t, StatusOpenForEditing.CanTransitionTo(StatusAnalysisCompleted))
	assert.False(t, StatusInAnalysis.CanTransitionTo(StatusOpenForEditing))
	assert.False(t, StatusAnalysisCompleted.CanTransitionTo(StatusInAnalysis))
	assert.False(t, StatusAnalysisCompleted.CanTransitionTo(StatusOpenForEditing))
}

func TestJobOpeningStatusDescription(t *testing.T) {
	assert.Equal(t, "Open for editing", StatusOpenForEditing.Description())
	assert.Equal(t, "In analysis", StatusInAnalysis.Description())
	assert.Equal(t, "Analysis completed", StatusAnalysisCompleted.Description())
	assert.False(t, JobOpeningStatus("archived").Valid())
}

func TestNewJobOpeningDefaults(t *testing.T) {
	now := time.Date(2026, 1, 9, 17, 20, 45, 0, time.UTC)
	j := NewJobOpening("Backend", "Senior Go Engineer, 5+ years", "", now)

	assert.NotEmpty(t, j.ID)
	assert.Equal(t, DefaultAnalysisLanguage, j.AnalysisLanguage)
	assert.Equal(t, StatusOpenForEditing, j.Status)
	assert.Equal(t, now, j.DateCreated)
	assert.Equal(t, now, j.DateLastModified)
}

func TestCandidatesToProcess(t *testing.T) {
	j := NewJobOpening("Backend", "desc", "English", time.Now())
	done := NewCandidateCv(j.ID, "a.pdf", []byte("a"), time.Now())
	done.SetResult(`{"Rating":50}`, 50)
	failed := NewCandidateCv(j.ID, "b.pdf", []byte("b"), time.Now())
	failed.MarkFailed()
	pending := NewCandidateCv(j.ID, "c.pdf", []byte("c"), time.Now())
	j.CandidateCvs = []CandidateCv{*done, *failed, *pending}

	assert.Equal(t, []int{2}, j.CandidatesToProcess())
	assert.True(t, j.CandidateCvs[1].Failed())
	require.NotNil(t, j.CandidateCvs[1].Rating)
	assert.Equal(t, uint8(0), *j.CandidateCvs[1].Rating)
}

func TestEstimatedAnalysisMinutes(t *testing.T) {
	j := &JobOpening{TotalCandidateCvsCount: 25}
	assert.Equal(t, 1+25*2/10, j.EstimatedAnalysisMinutes(time.Minute, 10))
	assert.Equal(t, 5+50, j.EstimatedAnalysisMinutes(5*time.Minute, 0))
}

func TestSha256Hex(t *testing.T) {
	h := Sha256Hex([]byte("abc"))
	assert.Len(t, h, Sha256FileHashLength)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", h)
}

func TestValidateAnalysisLanguage(t *testing.T) {
	lang, err := ValidateAnalysisLanguage("german")
	require.NoError(t, err)
	assert.Equal(t, "German", lang)

	lang, err = ValidateAnalysisLanguage("  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultAnalysisLanguage, lang)

	_, err = ValidateAnalysisLanguage("Klingon")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = ValidateAnalysisLanguage("A language name that is far too long")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	langs := SupportedLanguages()
	assert.Len(t, langs, 24)
	assert.IsIncreasing(t, langs)
}
