package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"cv-shortlist/domain"
)

const providerGemini = "gemini"

// GeminiClient talks to the Gemini API. One client serves either as document text
// extractor or as CV scorer, depending on the model it was created for.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model = strings.TrimSpace(model); model == "" {
		return nil, errors.New("gemini model is required")
	}

	return newGeminiClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, model)
}

func newGeminiClient(ctx context.Context, cfg *genai.ClientConfig, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiClient{client: client, modelName: model}, nil
}

// ExtractText sends the PDF inline and asks for its layout as markdown.
func (g *GeminiClient) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: documentInstructions},
			{InlineData: &genai.Blob{MIMEType: "application/pdf", Data: pdf}},
		},
	}}
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)}

	text, err := g.generate(ctx, contents, cfg)
	if err != nil {
		return "", &domain.ExtractionError{Provider: providerGemini, Err: err}
	}
	return text, nil
}

// Score rates a CV with a structured JSON reply.
func (g *GeminiClient) Score(ctx context.Context, jobDescription, targetLanguage, candidateText string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{
			{Text: scoringInstructions(targetLanguage)},
			{Text: jobDescriptionText(jobDescription)},
		}},
		Temperature:      genai.Ptr[float32](0.1),
		ResponseMIMEType: "application/json",
		ResponseSchema:   geminiVerdictSchema(),
	}

	reply, err := g.generate(ctx, genai.Text(candidateText), cfg)
	if err != nil {
		return "", &domain.ScoringError{Reason: "gemini request failed", Err: err}
	}
	return verdictFromReply(providerGemini, reply)
}

func (g *GeminiClient) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			sb.WriteString(part.Text)
		}
	}

	output := strings.TrimSpace(sb.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func geminiVerdictSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(domain.VerdictFields))
	for _, f := range domain.VerdictFields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	props["Rating"] = &genai.Schema{Type: genai.TypeInteger}
	return &genai.Schema{
		Type:             genai.TypeObject,
		Properties:       props,
		Required:         domain.VerdictFields,
		PropertyOrdering: domain.VerdictFields,
	}
}
