package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	MinRating = 0
	MaxRating = 100
)

// AnalysisVerdict is the structured answer of the scoring model.
type AnalysisVerdict struct {
	Rating           int    `json:"Rating"`
	CvSummary        string `json:"CvSummary"`
	Advantages       string `json:"Advantages"`
	Disadvantages    string `json:"Disadvantages"`
	ReasonsForRating string `json:"ReasonsForRating"`
}

// VerdictSchemaName is the name the response schema is registered under with the model provider.
const VerdictSchemaName = "cv_analysis"

// VerdictSchema is the response schema sent to the scoring model.
const VerdictSchema = `{
	"type": "object",
	"properties": {
		"Rating": { "type": "number" },
		"CvSummary": { "type": "string" },
		"Advantages": { "type": "string" },
		"Disadvantages": { "type": "string" },
		"ReasonsForRating": { "type": "string" }
	},
	"required": ["Rating", "CvSummary", "Advantages", "Disadvantages", "ReasonsForRating"],
	"additionalProperties": false
}`

// VerdictFields lists the schema properties in prompt order.
var VerdictFields = []string{"Rating", "CvSummary", "Advantages", "Disadvantages", "ReasonsForRating"}

// ratingSchema is checked on our side. Only the rating drives stored data, so the narrative
// fields are left to the model.
const ratingSchema = `{
	"type": "object",
	"properties": {
		"Rating": { "type": "integer", "minimum": 0, "maximum": 100 }
	},
	"required": ["Rating"]
}`

var compiledRatingSchema = mustCompileSchema(ratingSchema)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("compile schema: %v", err))
	}
	return s
}

// ParseRating validates a raw verdict and returns its rating.
// Out of range, fractional or non numeric ratings are rejected, never clamped.
func ParseRating(raw string) (uint8, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, &ScoringError{Reason: "empty verdict"}
	}

	result, err := compiledRatingSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return 0, &ScoringError{Reason: "verdict is not valid JSON", Err: err}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return 0, &ScoringError{Reason: "verdict rejected: " + strings.Join(msgs, "; ")}
	}

	var v struct {
		Rating json.Number `json:"Rating"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, &ScoringError{Reason: "decode verdict", Err: err}
	}
	f, err := v.Rating.Float64()
	if err != nil {
		return 0, &ScoringError{Reason: "decode rating", Err: err}
	}
	return uint8(f), nil
}

// ParseVerdict decodes a stored analysis for display. The failure sentinel maps to a
// zero rated verdict with "-" in every narrative field.
func ParseVerdict(analysis string) (*AnalysisVerdict, error) {
	if analysis == FailedAnalysis {
		return &AnalysisVerdict{
			Rating:           0,
			CvSummary:        FailedAnalysis,
			Advantages:       FailedAnalysis,
			Disadvantages:    FailedAnalysis,
			ReasonsForRating: FailedAnalysis,
		}, nil
	}

	// Models may answer 88.0 for a number field.
	var decoded struct {
		AnalysisVerdict
		Rating float64 `json:"Rating"`
	}
	if err := json.Unmarshal([]byte(analysis), &decoded); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	v := decoded.AnalysisVerdict
	v.Rating = int(decoded.Rating)
	return &v, nil
}
