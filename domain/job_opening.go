package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultAnalysisLanguage   = "English"
	AnalysisLanguageMaxLength = 25
)

type JobOpeningStatus string

const (
	StatusOpenForEditing    JobOpeningStatus = "open_for_editing"
	StatusInAnalysis        JobOpeningStatus = "in_analysis"
	StatusAnalysisCompleted JobOpeningStatus = "analysis_completed"
)

// Description returns the human readable form shown to recruiters.
func (s JobOpeningStatus) Description() string {
	switch s {
	case StatusOpenForEditing:
		return "Open for editing"
	case StatusInAnalysis:
		return "In analysis"
	case StatusAnalysisCompleted:
		return "Analysis completed"
	default:
		return ""
	}
}

func (s JobOpeningStatus) Valid() bool {
	return s.Description() != ""
}

// CanTransitionTo reports whether next directly follows s. Status only moves forward.
func (s JobOpeningStatus) CanTransitionTo(next JobOpeningStatus) bool {
	switch s {
	case StatusOpenForEditing:
		return next == StatusInAnalysis
	case StatusInAnalysis:
		return next == StatusAnalysisCompleted
	default:
		return false
	}
}

type JobOpening struct {
	ID               string           `gorm:"primaryKey;size:36" json:"id"`
	Name             string           `gorm:"size:255;not null" json:"name"`
	Description      string           `gorm:"type:text;not null" json:"description"`
	AnalysisLanguage string           `gorm:"size:25;not null" json:"analysis_language"`
	Status           JobOpeningStatus `gorm:"size:32;not null;index" json:"status"`
	DateCreated      time.Time        `gorm:"not null" json:"date_created"`
	DateLastModified time.Time        `gorm:"not null;index" json:"date_last_modified"`

	CandidateCvs []CandidateCv `gorm:"foreignKey:JobOpeningID;constraint:OnDelete:CASCADE" json:"candidate_cvs,omitempty"`

	// Populated on detail reads only.
	TotalCandidateCvsCount int `gorm:"-" json:"total_candidate_cvs_count"`
}

// NewJobOpening builds a job opening that is open for editing.
func NewJobOpening(name, description, analysisLanguage string, now time.Time) *JobOpening {
	if analysisLanguage == "" {
		analysisLanguage = DefaultAnalysisLanguage
	}
	now = now.UTC()
	return &JobOpening{
		ID:               uuid.NewString(),
		Name:             name,
		Description:      description,
		AnalysisLanguage: analysisLanguage,
		Status:           StatusOpenForEditing,
		DateCreated:      now,
		DateLastModified: now,
	}
}

// CandidatesToProcess returns the indexes of candidates that have no analysis yet.
func (j *JobOpening) CandidatesToProcess() []int {
	var idx []int
	for i := range j.CandidateCvs {
		if j.CandidateCvs[i].ToProcess() {
			idx = append(idx, i)
		}
	}
	return idx
}

// EstimatedAnalysisMinutes approximates how long the analysis of the job opening takes:
// one polling interval plus two minutes per candidate spread over the worker pool.
func (j *JobOpening) EstimatedAnalysisMinutes(pollInterval time.Duration, maxParallelism int) int {
	if maxParallelism < 1 {
		maxParallelism = 1
	}
	return int(pollInterval/time.Minute) + j.TotalCandidateCvsCount*2/maxParallelism
}
