package domain

import "time"

type EventType string

const (
	EventAnalysisRequested EventType = "analysis_requested"
	EventAnalysisCompleted EventType = "analysis_completed"
)

// JobOpeningEvent is published on the event bus whenever a job opening changes analysis state.
type JobOpeningEvent struct {
	Type         EventType `json:"type"`
	JobOpeningID string    `json:"job_opening_id"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// RoutingKey is the topic the event is published under.
func (e JobOpeningEvent) RoutingKey() string {
	return "job_opening." + string(e.Type)
}

// AnalysisProgress reports how far the pipeline got with one job opening.
type AnalysisProgress struct {
	JobOpeningID string `json:"job_opening_id"`
	Total        int    `json:"total"`
	Processed    int    `json:"processed"`
	Failed       int    `json:"failed"`
}

func (p AnalysisProgress) Done() bool {
	return p.Total > 0 && p.Processed >= p.Total
}

type UploadResult string

const (
	UploadSuccessful             UploadResult = "successful"
	UploadAlreadyUploaded        UploadResult = "already_uploaded"
	UploadInvalidPdfFormat       UploadResult = "invalid_pdf_format"
	UploadPdfFileHasTooManyPages UploadResult = "pdf_file_has_too_many_pages"
	UploadFailed                 UploadResult = "failed"
)
