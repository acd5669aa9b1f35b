package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

const (
	// FailedAnalysis is stored when a candidate could not be processed.
	FailedAnalysis = "-"

	Sha256FileHashLength = 64
)

type CandidateCv struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	JobOpeningID   string    `gorm:"size:36;not null;index" json:"job_opening_id"`
	FileName       string    `gorm:"size:255;not null" json:"file_name"`
	Sha256FileHash string    `gorm:"column:sha256_file_hash;size:64;not null;index" json:"sha256_file_hash"`
	DateCreated    time.Time `gorm:"not null" json:"date_created"`
	Analysis       *string   `gorm:"type:text" json:"analysis"`
	Rating         *uint8    `json:"rating"`
}

// CandidateCvBlob holds the PDF bytes when blobs are kept in the database.
type CandidateCvBlob struct {
	CandidateCvID string `gorm:"primaryKey;size:36"`
	JobOpeningID  string `gorm:"size:36;not null;index"`
	Data          []byte `gorm:"not null"`
}

func NewCandidateCv(jobOpeningID, fileName string, pdf []byte, now time.Time) *CandidateCv {
	return &CandidateCv{
		ID:             uuid.NewString(),
		JobOpeningID:   jobOpeningID,
		FileName:       fileName,
		Sha256FileHash: Sha256Hex(pdf),
		DateCreated:    now.UTC(),
	}
}

// ToProcess reports whether the analysis pipeline still has to look at the candidate.
func (c *CandidateCv) ToProcess() bool {
	return c.Analysis == nil
}

// SetResult stores a verdict together with its rating.
func (c *CandidateCv) SetResult(analysis string, rating uint8) {
	c.Analysis = &analysis
	c.Rating = &rating
}

// MarkFailed stores the sentinel result. It is indistinguishable from a disqualifying verdict.
func (c *CandidateCv) MarkFailed() {
	c.SetResult(FailedAnalysis, 0)
}

func (c *CandidateCv) Failed() bool {
	return c.Analysis != nil && *c.Analysis == FailedAnalysis
}

func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
