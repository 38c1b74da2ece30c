package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/sentinel/internal/buildconfig"
	"github.com/Harshitk-cp/sentinel/internal/domain"
)

// HTTPBackend calls a generic JSON prediction API. The endpoint receives a
// POST of the wire request and answers with a wire prediction. A GET on the
// endpoint serves as the connection test.
type HTTPBackend struct {
	cfg        domain.ModelConfig
	httpClient *http.Client
}

func NewHTTPBackend(cfg domain.ModelConfig) *HTTPBackend {
	return &HTTPBackend{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

func (b *HTTPBackend) Load(ctx context.Context) error {
	if !strings.HasPrefix(b.cfg.Endpoint, "http://") && !strings.HasPrefix(b.cfg.Endpoint, "https://") {
		return fmt.Errorf("endpoint must be an http(s) URL: %q", b.cfg.Endpoint)
	}
	return nil
}

func (b *HTTPBackend) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	b.authorize(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: health check returned status %d", ErrUnreachable, resp.StatusCode)
	}
	return nil
}

func (b *HTTPBackend) Predict(ctx context.Context, input domain.PredictionInput) (*domain.Prediction, error) {
	capability := capabilityFor(input, b.cfg)
	body, err := json.Marshal(wireRequest{
		Model:      b.cfg.ModelName,
		Capability: capability,
		Text:       input.Text,
		Features:   input.Features,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.authorize(req)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read prediction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	w, err := decodeWirePrediction(respBody)
	if err != nil {
		return nil, err
	}
	return w.toPrediction("", capability, domain.BackendExternal), nil
}

func (b *HTTPBackend) Train(ctx context.Context, examples []domain.TrainingExample, mode domain.TrainMode) (domain.ModelBackend, *domain.TrainReport, error) {
	return nil, nil, ErrTrainingUnsupported
}

func (b *HTTPBackend) authorize(req *http.Request) {
	req.Header.Set("User-Agent", buildconfig.UserAgent())
	if b.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}
}
