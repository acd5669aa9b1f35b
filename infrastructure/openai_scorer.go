package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"cv-shortlist/domain"
)

const providerOpenAI = "openai"

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	// Azure switches to Azure OpenAI. BaseURL is then the resource endpoint and the model
	// name is used as deployment name.
	Azure      bool
	APIVersion string
	Model      string
}

// OpenAIScorer scores CVs with chat completions constrained to the verdict JSON schema.
type OpenAIScorer struct {
	client *openai.Client
	model  string
}

func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai model is required")
	}

	var clientCfg openai.ClientConfig
	if cfg.Azure {
		if cfg.BaseURL == "" {
			return nil, errors.New("azure openai endpoint is required")
		}
		clientCfg = openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			clientCfg.APIVersion = cfg.APIVersion
		}
		clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	} else {
		clientCfg = openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientCfg.BaseURL = cfg.BaseURL
		}
	}

	return &OpenAIScorer{client: openai.NewClientWithConfig(clientCfg), model: cfg.Model}, nil
}

func (s *OpenAIScorer) Score(ctx context.Context, jobDescription, targetLanguage, candidateText string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: scoringInstructions(targetLanguage)},
					{Type: openai.ChatMessagePartTypeText, Text: jobDescriptionText(jobDescription)},
				},
			},
			{Role: openai.ChatMessageRoleUser, Content: candidateText},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   domain.VerdictSchemaName,
				Schema: json.RawMessage(domain.VerdictSchema),
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", &domain.ScoringError{Reason: "openai request failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &domain.ScoringError{Reason: "openai returned no choices"}
	}
	return verdictFromReply(providerOpenAI, resp.Choices[0].Message.Content)
}
