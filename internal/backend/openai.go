package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

const predictPrompt = `You score customer-support data for the capability %q.
Reply with a JSON object only, with the fields:
  "label": a short category string,
  "value": a number (minutes for resolution_time, 1-5 for csat, 0-1 for escalation),
  "confidence": a number between 0 and 1.`

// OpenAIBackend predicts through the chat completions API.
type OpenAIBackend struct {
	cfg    domain.ModelConfig
	client *openai.Client
	model  string
}

func NewOpenAIBackend(cfg domain.ModelConfig) *OpenAIBackend {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientCfg.BaseURL = cfg.Endpoint
	}
	model := cfg.ModelName
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIBackend{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}
}

func (b *OpenAIBackend) Load(ctx context.Context) error {
	return nil
}

func (b *OpenAIBackend) TestConnection(ctx context.Context) error {
	if _, err := b.client.ListModels(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return nil
}

func (b *OpenAIBackend) Predict(ctx context.Context, input domain.PredictionInput) (*domain.Prediction, error) {
	capability := capabilityFor(input, b.cfg)

	payload, err := json.Marshal(wireRequest{Text: input.Text, Features: input.Features})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction input: %w", err)
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: b.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf(predictPrompt, capability),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: string(payload),
			},
		},
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	w, err := decodeWirePrediction([]byte(strings.TrimSpace(content)))
	if err != nil {
		return nil, err
	}
	return w.toPrediction("", capability, domain.BackendExternal), nil
}

func (b *OpenAIBackend) Train(ctx context.Context, examples []domain.TrainingExample, mode domain.TrainMode) (domain.ModelBackend, *domain.TrainReport, error) {
	return nil, nil, ErrTrainingUnsupported
}
