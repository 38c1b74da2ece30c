package service

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/cespare/xxhash/v2"
)

// predictionCache holds one model version's predictions. Entries never
// expire; a positive capacity evicts oldest-first.
type predictionCache struct {
	mu       sync.Mutex
	version  int
	capacity int
	entries  map[uint64]domain.Prediction
	order    []uint64
}

func newPredictionCache(version, capacity int) *predictionCache {
	return &predictionCache{
		version:  version,
		capacity: capacity,
		entries:  make(map[uint64]domain.Prediction),
	}
}

func (c *predictionCache) get(version int, key uint64) (domain.Prediction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		return domain.Prediction{}, false
	}
	p, ok := c.entries[key]
	return p, ok
}

// put stores p unless it was computed by a superseded version.
func (c *predictionCache) put(version int, key uint64, p domain.Prediction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if version != c.version {
		return false
	}
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = p

	for c.capacity > 0 && len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	return true
}

// reset flushes every entry and moves the cache to version.
func (c *predictionCache) reset(version int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version = version
	c.entries = make(map[uint64]domain.Prediction)
	c.order = nil
}

func (c *predictionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// preprocess normalizes an input so equivalent requests share a cache key.
func preprocess(input domain.PredictionInput) domain.PredictionInput {
	out := domain.PredictionInput{
		Text:       strings.TrimSpace(input.Text),
		Capability: strings.TrimSpace(input.Capability),
	}
	if len(input.Features) > 0 {
		out.Features = make(map[string]any, len(input.Features))
		for k, v := range input.Features {
			if s, ok := v.(string); ok {
				v = strings.ToLower(strings.TrimSpace(s))
			}
			out.Features[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return out
}

// cacheKey hashes the canonical JSON of a preprocessed input. Map keys are
// marshalled sorted, so the key is deterministic.
func cacheKey(input domain.PredictionInput) (uint64, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(raw), nil
}

// preprocessExamples applies the prediction-time normalization to training
// features so trained buckets line up with incoming inputs.
func preprocessExamples(examples []domain.TrainingExample) []domain.TrainingExample {
	out := make([]domain.TrainingExample, len(examples))
	for i, ex := range examples {
		norm := preprocess(domain.PredictionInput{Text: ex.Text, Features: ex.Features})
		ex.Text = norm.Text
		ex.Features = norm.Features
		out[i] = ex
	}
	return out
}
