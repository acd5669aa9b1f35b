package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"

	"cv-shortlist/domain"
)

const providerVertex = "vertex"

// VertexScorer scores CVs with a Gemini model hosted on Vertex AI.
// Credentials come from the environment (application default credentials).
type VertexScorer struct {
	client    *genai.Client
	modelName string
}

func NewVertexScorer(ctx context.Context, project, location, model string, opts ...option.ClientOption) (*VertexScorer, error) {
	if project == "" {
		return nil, errors.New("vertex project is required")
	}
	client, err := genai.NewClient(ctx, project, location, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vertex ai client: %w", err)
	}
	return &VertexScorer{client: client, modelName: model}, nil
}

func (s *VertexScorer) Score(ctx context.Context, jobDescription, targetLanguage, candidateText string) (string, error) {
	model := s.client.GenerativeModel(s.modelName)
	model.SetTemperature(0.1)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{
		genai.Text(scoringInstructions(targetLanguage)),
		genai.Text(jobDescriptionText(jobDescription)),
	}}
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = vertexVerdictSchema()

	resp, err := model.GenerateContent(ctx, genai.Text(candidateText))
	if err != nil {
		return "", &domain.ScoringError{Reason: "vertex ai request failed", Err: err}
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
	}
	return verdictFromReply(providerVertex, sb.String())
}

func (s *VertexScorer) Close() error {
	return s.client.Close()
}

func vertexVerdictSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(domain.VerdictFields))
	for _, f := range domain.VerdictFields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	props["Rating"] = &genai.Schema{Type: genai.TypeInteger}
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   domain.VerdictFields,
	}
}
