package domain

import (
	"context"
	"time"
)

type BackendKind string

const (
	BackendInHouse  BackendKind = "in_house"
	BackendExternal BackendKind = "external"
	BackendMCP      BackendKind = "mcp"
)

func (k BackendKind) IsValid() bool {
	switch k {
	case BackendInHouse, BackendExternal, BackendMCP:
		return true
	}
	return false
}

type ModelStatus string

const (
	ModelRegistered ModelStatus = "registered"
	ModelReady      ModelStatus = "ready"
	ModelTraining   ModelStatus = "training"
	ModelError      ModelStatus = "error"
)

// ThrottlePolicy decides what happens when an external model's rate limit
// is exhausted.
type ThrottlePolicy string

const (
	ThrottleQueue  ThrottlePolicy = "queue"
	ThrottleReject ThrottlePolicy = "reject"
)

// Well-known capabilities used by the learning engine.
const (
	CapabilityResolutionTime = "resolution_time"
	CapabilityCSAT           = "csat"
	CapabilityEscalation     = "escalation"
	CapabilityClassification = "classification"
)

type Performance struct {
	Accuracy  float64       `json:"accuracy" yaml:"accuracy"`
	F1        float64       `json:"f1" yaml:"f1"`
	Latency   time.Duration `json:"latency" yaml:"latency"`
	ErrorRate float64       `json:"error_rate" yaml:"error_rate"`
}

type ModelConfig struct {
	// Provider selects the backend implementation (aggregate, openai, http, mcp, mock).
	Provider     string   `json:"provider" yaml:"provider"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`

	Endpoint  string `json:"endpoint,omitempty" yaml:"endpoint"`
	APIKey    string `json:"-" yaml:"api_key"`
	ModelName string `json:"model_name,omitempty" yaml:"model_name"`

	RequestsPerMinute int            `json:"requests_per_minute,omitempty" yaml:"requests_per_minute"`
	TokensPerMinute   int            `json:"tokens_per_minute,omitempty" yaml:"tokens_per_minute"`
	OnThrottle        ThrottlePolicy `json:"on_throttle,omitempty" yaml:"on_throttle"`

	Timeout       time.Duration  `json:"timeout,omitempty" yaml:"timeout"`
	CacheCapacity int            `json:"cache_capacity,omitempty" yaml:"cache_capacity"`
	Baseline      Performance    `json:"baseline" yaml:"baseline"`
	Parameters    map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// HasCapability reports whether the model advertises capability.
func (c ModelConfig) HasCapability(capability string) bool {
	for _, name := range c.Capabilities {
		if name == capability {
			return true
		}
	}
	return false
}

// ModelRegistration is a snapshot of a registered model. The manager hands
// out copies; mutating one has no effect on the registry.
type ModelRegistration struct {
	ModelID      string      `json:"model_id"`
	Kind         BackendKind `json:"backend_kind"`
	Config       ModelConfig `json:"config"`
	Status       ModelStatus `json:"status"`
	StatusReason string      `json:"status_reason,omitempty"`
	Performance  Performance `json:"performance"`
	Version      int         `json:"version"`
	UsageCount   int64       `json:"usage_count"`
	LastUsed     time.Time   `json:"last_used"`
	RegisteredAt time.Time   `json:"registered_at"`
}

type RegistrationResult struct {
	ModelID string      `json:"model_id"`
	Success bool        `json:"success"`
	Status  ModelStatus `json:"status"`
	Error   string      `json:"error,omitempty"`
}

type PredictionInput struct {
	Text       string         `json:"text,omitempty"`
	Features   map[string]any `json:"features,omitempty"`
	Capability string         `json:"capability,omitempty"`
}

type PredictOptions struct {
	BypassCache bool          `json:"bypass_cache"`
	Timeout     time.Duration `json:"timeout"`
	Capability  string        `json:"capability"`
}

type Prediction struct {
	ModelID      string             `json:"model_id"`
	Capability   string             `json:"capability,omitempty"`
	Label        string             `json:"label,omitempty"`
	Value        float64            `json:"value"`
	Confidence   float64            `json:"confidence"`
	Scores       map[string]float64 `json:"scores,omitempty"`
	ModelVersion int                `json:"model_version"`
	Source       BackendKind        `json:"source,omitempty"`
	Cached       bool               `json:"cached"`
	// Degraded marks a declared default returned in place of a real prediction.
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

type TrainingExample struct {
	Text     string         `json:"text,omitempty"`
	Features map[string]any `json:"features"`
	Label    string         `json:"label,omitempty"`
	Value    float64        `json:"value"`
}

type TrainMode string

const (
	TrainIncremental TrainMode = "incremental"
	TrainFull        TrainMode = "full"
)

type TrainReport struct {
	Examples int     `json:"examples"`
	Accuracy float64 `json:"accuracy"`
	F1       float64 `json:"f1"`
}

type TrainResult struct {
	ModelID          string    `json:"model_id"`
	Mode             TrainMode `json:"mode"`
	Examples         int       `json:"examples"`
	PreviousAccuracy float64   `json:"previous_accuracy"`
	Accuracy         float64   `json:"accuracy"`
	AccuracyDelta    float64   `json:"accuracy_delta"`
	Version          int       `json:"version"`
}

// ModelBackend is the seam between the model router and a concrete model
// integration.
type ModelBackend interface {
	Load(ctx context.Context) error
	TestConnection(ctx context.Context) error
	Predict(ctx context.Context, input PredictionInput) (*Prediction, error)
	// Train returns a new backend holding the retrained artifact. The
	// receiver keeps serving its own artifact unchanged.
	Train(ctx context.Context, examples []TrainingExample, mode TrainMode) (ModelBackend, *TrainReport, error)
}
