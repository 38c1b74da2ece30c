package backend

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Harshitk-cp/sentinel/internal/domain"
)

var defaultAggregateKeys = []string{"department", "category", "priority"}

// confidencePrior is the pseudo-count that discounts small buckets.
const confidencePrior = 5.0

type bucket struct {
	count  int
	sum    float64
	labels map[string]int
}

func (b *bucket) add(ex domain.TrainingExample) {
	b.count++
	b.sum += ex.Value
	if ex.Label != "" {
		if b.labels == nil {
			b.labels = make(map[string]int)
		}
		b.labels[ex.Label]++
	}
}

func (b *bucket) clone() *bucket {
	c := &bucket{count: b.count, sum: b.sum}
	if b.labels != nil {
		c.labels = make(map[string]int, len(b.labels))
		for k, v := range b.labels {
			c.labels[k] = v
		}
	}
	return c
}

func (b *bucket) mean() float64 {
	if b.count == 0 {
		return 0
	}
	return b.sum / float64(b.count)
}

// topLabel returns the most frequent label, lexically smallest on ties.
func (b *bucket) topLabel() string {
	best, bestCount := "", 0
	for label, n := range b.labels {
		if n > bestCount || (n == bestCount && label < best) {
			best, bestCount = label, n
		}
	}
	return best
}

// AggregateModel is the in-house model: a hierarchy of feature-keyed
// outcome buckets. Predictions come from the most specific bucket holding
// data, falling back to coarser keys and finally to the global bucket.
//
// An AggregateModel is immutable once built; Train returns a new one.
type AggregateModel struct {
	keys    []string
	buckets map[string]*bucket
	global  *bucket
}

func NewAggregateModel(cfg domain.ModelConfig) *AggregateModel {
	return &AggregateModel{
		keys:    aggregateKeys(cfg),
		buckets: make(map[string]*bucket),
		global:  &bucket{},
	}
}

func aggregateKeys(cfg domain.ModelConfig) []string {
	raw, ok := cfg.Parameters["features"]
	if !ok {
		return defaultAggregateKeys
	}
	var keys []string
	switch v := raw.(type) {
	case []string:
		keys = v
	case []any:
		for _, k := range v {
			if s, ok := k.(string); ok {
				keys = append(keys, s)
			}
		}
	}
	if len(keys) == 0 {
		return defaultAggregateKeys
	}
	return keys
}

func (m *AggregateModel) Load(ctx context.Context) error {
	if len(m.keys) == 0 {
		return fmt.Errorf("aggregate model has no feature keys")
	}
	return nil
}

func (m *AggregateModel) TestConnection(ctx context.Context) error {
	return nil
}

// Examples returns the number of examples the model has seen.
func (m *AggregateModel) Examples() int {
	return m.global.count
}

func (m *AggregateModel) Predict(ctx context.Context, input domain.PredictionInput) (*domain.Prediction, error) {
	b := m.lookup(input.Features)
	if b == nil {
		return nil, ErrNoTrainingData
	}

	pred := &domain.Prediction{
		Capability: input.Capability,
		Value:      b.mean(),
		Label:      b.topLabel(),
		Confidence: float64(b.count) / (float64(b.count) + confidencePrior),
		Source:     domain.BackendInHouse,
	}
	if len(b.labels) > 0 {
		pred.Scores = make(map[string]float64, len(b.labels))
		for label, n := range b.labels {
			pred.Scores[label] = float64(n) / float64(b.count)
		}
	}
	return pred, nil
}

// lookup walks from the full key to the global bucket.
func (m *AggregateModel) lookup(features map[string]any) *bucket {
	for _, key := range m.tiers(features) {
		if b, ok := m.buckets[key]; ok && b.count > 0 {
			return b
		}
	}
	if m.global.count > 0 {
		return m.global
	}
	return nil
}

// tiers returns the bucket keys for features, most specific first.
func (m *AggregateModel) tiers(features map[string]any) []string {
	parts := make([]string, 0, len(m.keys))
	for _, k := range m.keys {
		parts = append(parts, k+"="+featureString(features[k]))
	}
	out := make([]string, 0, len(parts))
	for i := len(parts); i > 0; i-- {
		out = append(out, strings.Join(parts[:i], "|"))
	}
	return out
}

func featureString(v any) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(fmt.Sprint(v)))
}

// Train builds a new model. Incremental training extends a copy of the
// current buckets; full training starts empty. Accuracy is measured on the
// batch against the new model.
func (m *AggregateModel) Train(ctx context.Context, examples []domain.TrainingExample, mode domain.TrainMode) (domain.ModelBackend, *domain.TrainReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	next := &AggregateModel{
		keys:    m.keys,
		buckets: make(map[string]*bucket, len(m.buckets)),
		global:  &bucket{},
	}
	if mode != domain.TrainFull {
		for k, b := range m.buckets {
			next.buckets[k] = b.clone()
		}
		next.global = m.global.clone()
	}

	for _, ex := range examples {
		next.global.add(ex)
		for _, key := range next.tiers(ex.Features) {
			b, ok := next.buckets[key]
			if !ok {
				b = &bucket{}
				next.buckets[key] = b
			}
			b.add(ex)
		}
	}

	accuracy, f1 := next.evaluate(ctx, examples)
	return next, &domain.TrainReport{
		Examples: len(examples),
		Accuracy: accuracy,
		F1:       f1,
	}, nil
}

// evaluate scores the model on examples. Labelled examples are scored by
// exact-match accuracy and macro F1; unlabelled ones by relative error.
func (m *AggregateModel) evaluate(ctx context.Context, examples []domain.TrainingExample) (accuracy, f1 float64) {
	if len(examples) == 0 {
		return 0, 0
	}

	type counts struct{ tp, fp, fn int }
	perLabel := make(map[string]*counts)
	get := func(label string) *counts {
		c, ok := perLabel[label]
		if !ok {
			c = &counts{}
			perLabel[label] = c
		}
		return c
	}

	var score float64
	labelled := 0
	for _, ex := range examples {
		pred, err := m.Predict(ctx, domain.PredictionInput{Features: ex.Features})
		if err != nil {
			continue
		}
		if ex.Label != "" {
			labelled++
			if pred.Label == ex.Label {
				score++
				get(ex.Label).tp++
			} else {
				get(ex.Label).fn++
				get(pred.Label).fp++
			}
			continue
		}
		denom := math.Max(math.Abs(ex.Value), 1)
		score += 1 - math.Min(math.Abs(pred.Value-ex.Value)/denom, 1)
	}

	accuracy = score / float64(len(examples))
	if labelled == 0 {
		return accuracy, accuracy
	}

	labels := make([]string, 0, len(perLabel))
	for l := range perLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	var sum float64
	n := 0
	for _, l := range labels {
		c := perLabel[l]
		if c.tp+c.fn == 0 {
			continue
		}
		n++
		if c.tp == 0 {
			continue
		}
		p := float64(c.tp) / float64(c.tp+c.fp)
		r := float64(c.tp) / float64(c.tp+c.fn)
		sum += 2 * p * r / (p + r)
	}
	if n > 0 {
		f1 = sum / float64(n)
	}
	return accuracy, f1
}
