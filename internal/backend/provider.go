// Package backend holds the concrete model integrations behind
// domain.ModelBackend.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"go.uber.org/zap"
)

// Provider constants
const (
	ProviderAggregate = "aggregate"
	ProviderOpenAI    = "openai"
	ProviderHTTP      = "http"
	ProviderMCP       = "mcp"
	ProviderMock      = "mock"
)

var (
	ErrUnreachable         = errors.New("backend unreachable")
	ErrInvalidResponse     = errors.New("invalid backend response")
	ErrTrainingUnsupported = errors.New("backend does not support training")
	ErrNoTrainingData      = errors.New("model has no training data")
	ErrNoCapableServer     = errors.New("no connected MCP server advertises capability")
)

// DefaultProvider returns the provider used when a registration names none.
func DefaultProvider(kind domain.BackendKind) string {
	switch kind {
	case domain.BackendInHouse:
		return ProviderAggregate
	case domain.BackendExternal:
		return ProviderHTTP
	case domain.BackendMCP:
		return ProviderMCP
	default:
		return ""
	}
}

// New creates a backend for a registration. The MCP pool is only needed for
// MCP-kind models and may be nil otherwise.
func New(modelID string, kind domain.BackendKind, cfg domain.ModelConfig, pool *MCPPool, logger *zap.Logger) (domain.ModelBackend, error) {
	provider := cfg.Provider
	if provider == "" {
		provider = DefaultProvider(kind)
	}

	switch kind {
	case domain.BackendInHouse:
		switch provider {
		case ProviderAggregate:
			return NewAggregateModel(cfg), nil
		case ProviderMock:
			return NewMockBackend(), nil
		}

	case domain.BackendExternal:
		switch provider {
		case ProviderOpenAI:
			if cfg.APIKey == "" {
				return nil, fmt.Errorf("api key is required for OpenAI provider")
			}
			return NewOpenAIBackend(cfg), nil
		case ProviderHTTP:
			if cfg.Endpoint == "" {
				return nil, fmt.Errorf("endpoint is required for HTTP provider")
			}
			return NewHTTPBackend(cfg), nil
		case ProviderMock:
			return NewMockBackend(), nil
		}

	case domain.BackendMCP:
		if provider == ProviderMCP {
			if pool == nil {
				return nil, fmt.Errorf("MCP pool is not configured")
			}
			return NewMCPBackend(modelID, cfg, pool, logger), nil
		}

	default:
		return nil, fmt.Errorf("unknown backend kind: %q (valid options: in_house, external, mcp)", kind)
	}

	return nil, fmt.Errorf("unknown provider %q for %s backend", provider, kind)
}

// wirePrediction is the JSON result shape shared by the HTTP, OpenAI and MCP
// backends.
type wirePrediction struct {
	Label      string             `json:"label"`
	Value      float64            `json:"value"`
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores,omitempty"`
}

func (w wirePrediction) toPrediction(modelID, capability string, source domain.BackendKind) *domain.Prediction {
	return &domain.Prediction{
		ModelID:    modelID,
		Capability: capability,
		Label:      w.Label,
		Value:      w.Value,
		Confidence: domain.Clamp01(w.Confidence),
		Scores:     w.Scores,
		Source:     source,
	}
}

func decodeWirePrediction(raw []byte) (wirePrediction, error) {
	var w wirePrediction
	if err := json.Unmarshal(raw, &w); err != nil {
		return w, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return w, nil
}

// wireRequest is the request body sent to HTTP and MCP backends.
type wireRequest struct {
	Model      string         `json:"model,omitempty"`
	ModelID    string         `json:"model_id,omitempty"`
	Capability string         `json:"capability,omitempty"`
	Text       string         `json:"text,omitempty"`
	Features   map[string]any `json:"features,omitempty"`
}

func capabilityFor(input domain.PredictionInput, cfg domain.ModelConfig) string {
	if input.Capability != "" {
		return input.Capability
	}
	if len(cfg.Capabilities) > 0 {
		return cfg.Capabilities[0]
	}
	return ""
}
