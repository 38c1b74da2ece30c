package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/backend"
	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/ratelimit"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	ErrModelNotFound       = errors.New("model not found")
	ErrAlreadyRegistered   = errors.New("model already registered")
	ErrInvalidConfig       = errors.New("invalid model configuration")
	ErrModelBusy           = errors.New("model is already training")
	ErrModelNotReady       = errors.New("model is not ready")
	ErrTrainingUnsupported = errors.New("training is only supported for in-house models")
	ErrNoCapableModel      = errors.New("no serving model advertises capability")
	ErrEmptyBatch          = errors.New("training batch is empty")
)

const (
	DefaultModelTimeout       = 10 * time.Second
	DefaultRefreshParallelism = 4

	latencySmoothing = 0.2
)

// DefaultPredictions are the declared neutral predictions returned when no
// model can answer for a capability.
func DefaultPredictions() map[string]domain.Prediction {
	return map[string]domain.Prediction{
		domain.CapabilityResolutionTime: {Label: "standard", Value: 120, Confidence: 0.1},
		domain.CapabilityCSAT:           {Label: "neutral", Value: 3.5, Confidence: 0.1},
		domain.CapabilityEscalation:     {Label: "medium", Value: 0.5, Confidence: 0.1},
		domain.CapabilityClassification: {Label: "general", Confidence: 0.1},
	}
}

// modelState is swapped atomically as a whole; it is never mutated.
type modelState struct {
	backend domain.ModelBackend
	version int
	status  domain.ModelStatus
	reason  string
}

func (s *modelState) serving() bool {
	return s.status == domain.ModelReady || s.status == domain.ModelTraining
}

type modelEntry struct {
	id           string
	kind         domain.BackendKind
	cfg          domain.ModelConfig
	registeredAt time.Time
	limiter      *ratelimit.ModelLimiter
	cache        *predictionCache

	// mu serializes writers: registration, status transitions and training.
	// Predictions only load state and never take it.
	mu    sync.Mutex
	state atomic.Pointer[modelState]

	inflight atomic.Int64

	statsMu  sync.Mutex
	perf     domain.Performance
	calls    int64
	failures int64
	usage    int64
	lastUsed time.Time
}

// BackendFactory builds the backend for a registration.
type BackendFactory func(modelID string, kind domain.BackendKind, cfg domain.ModelConfig) (domain.ModelBackend, error)

// ModelManager is the model registry and router. Each model has its own
// writer lock; the registry map lock is held only for lookup and insert, so
// training one model never blocks predictions on another.
type ModelManager struct {
	mu     sync.RWMutex
	models map[string]*modelEntry

	pool    *backend.MCPPool
	factory BackendFactory
	flight  singleflight.Group
	logger  *zap.Logger

	DefaultTimeout time.Duration
	Breaker        backend.BreakerSettings
	Defaults       map[string]domain.Prediction
}

func NewModelManager(pool *backend.MCPPool, logger *zap.Logger) *ModelManager {
	if pool == nil {
		pool = backend.NewMCPPool(logger)
	}
	m := &ModelManager{
		models:         make(map[string]*modelEntry),
		pool:           pool,
		logger:         logger,
		DefaultTimeout: DefaultModelTimeout,
		Breaker:        backend.DefaultBreakerSettings(),
		Defaults:       DefaultPredictions(),
	}
	m.factory = func(modelID string, kind domain.BackendKind, cfg domain.ModelConfig) (domain.ModelBackend, error) {
		return backend.New(modelID, kind, cfg, m.pool, m.logger)
	}
	return m
}

// SetBackendFactory replaces the factory used by Register.
func (m *ModelManager) SetBackendFactory(f BackendFactory) {
	m.factory = f
}

func (m *ModelManager) RegisterInHouse(ctx context.Context, modelID string, cfg domain.ModelConfig) domain.RegistrationResult {
	return m.Register(ctx, modelID, domain.BackendInHouse, cfg)
}

func (m *ModelManager) RegisterExternal(ctx context.Context, modelID string, cfg domain.ModelConfig) domain.RegistrationResult {
	return m.Register(ctx, modelID, domain.BackendExternal, cfg)
}

func (m *ModelManager) RegisterMCP(ctx context.Context, modelID string, cfg domain.ModelConfig) domain.RegistrationResult {
	return m.Register(ctx, modelID, domain.BackendMCP, cfg)
}

// Register validates cfg, builds the backend and brings the model up. It
// never fails loudly: configuration errors leave the registry unchanged and
// load or connection failures leave the model registered in error status.
func (m *ModelManager) Register(ctx context.Context, modelID string, kind domain.BackendKind, cfg domain.ModelConfig) domain.RegistrationResult {
	if err := validateRegistration(modelID, kind, cfg); err != nil {
		return m.rejectRegistration(modelID, err)
	}
	b, err := m.factory(modelID, kind, cfg)
	if err != nil {
		return m.rejectRegistration(modelID, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	return m.register(ctx, modelID, kind, cfg, b)
}

// RegisterBackend registers a model around a caller-supplied backend.
func (m *ModelManager) RegisterBackend(ctx context.Context, modelID string, kind domain.BackendKind, cfg domain.ModelConfig, b domain.ModelBackend) domain.RegistrationResult {
	if err := validateRegistration(modelID, kind, cfg); err != nil {
		return m.rejectRegistration(modelID, err)
	}
	if b == nil {
		return m.rejectRegistration(modelID, fmt.Errorf("%w: backend is nil", ErrInvalidConfig))
	}
	return m.register(ctx, modelID, kind, cfg, b)
}

func (m *ModelManager) rejectRegistration(modelID string, err error) domain.RegistrationResult {
	m.logger.Warn("model registration rejected", zap.String("model_id", modelID), zap.Error(err))
	return domain.RegistrationResult{ModelID: modelID, Success: false, Error: err.Error()}
}

func (m *ModelManager) register(ctx context.Context, modelID string, kind domain.BackendKind, cfg domain.ModelConfig, b domain.ModelBackend) (result domain.RegistrationResult) {
	if kind != domain.BackendInHouse {
		b = backend.NewBreaker(modelID, b, m.Breaker, m.logger)
	}

	e := &modelEntry{
		id:           modelID,
		kind:         kind,
		cfg:          cfg,
		registeredAt: time.Now(),
		cache:        newPredictionCache(1, cfg.CacheCapacity),
		perf:         cfg.Baseline,
	}
	if kind == domain.BackendExternal {
		e.limiter = ratelimit.NewModelLimiter(cfg)
	}
	e.state.Store(&modelState{backend: b, version: 1, status: domain.ModelRegistered})

	e.mu.Lock()
	defer e.mu.Unlock()

	m.mu.Lock()
	if _, exists := m.models[modelID]; exists {
		m.mu.Unlock()
		return m.rejectRegistration(modelID, fmt.Errorf("%w: %s", ErrAlreadyRegistered, modelID))
	}
	m.models[modelID] = e
	m.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("backend panicked during load: %v", r)
			e.state.Store(&modelState{backend: b, version: 1, status: domain.ModelError, reason: err.Error()})
			m.logger.Error("model registration panicked", zap.String("model_id", modelID), zap.Any("panic", r))
			result = domain.RegistrationResult{ModelID: modelID, Status: domain.ModelError, Error: err.Error()}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.timeoutFor(e, 0))
	defer cancel()

	err := b.Load(ctx)
	if err == nil {
		err = b.TestConnection(ctx)
	}
	if err != nil {
		e.state.Store(&modelState{backend: b, version: 1, status: domain.ModelError, reason: err.Error()})
		m.logger.Warn("model failed to come up",
			zap.String("model_id", modelID),
			zap.String("backend", string(kind)),
			zap.Error(err),
		)
		return domain.RegistrationResult{ModelID: modelID, Success: false, Status: domain.ModelError, Error: err.Error()}
	}

	e.state.Store(&modelState{backend: b, version: 1, status: domain.ModelReady})
	m.logger.Info("model registered",
		zap.String("model_id", modelID),
		zap.String("backend", string(kind)),
		zap.Strings("capabilities", cfg.Capabilities),
	)
	return domain.RegistrationResult{ModelID: modelID, Success: true, Status: domain.ModelReady}
}

func validateRegistration(modelID string, kind domain.BackendKind, cfg domain.ModelConfig) error {
	if strings.TrimSpace(modelID) == "" {
		return fmt.Errorf("%w: model id is required", ErrInvalidConfig)
	}
	if !kind.IsValid() {
		return fmt.Errorf("%w: unknown backend kind %q", ErrInvalidConfig, kind)
	}
	if kind != domain.BackendInHouse && len(cfg.Capabilities) == 0 {
		return fmt.Errorf("%w: %s models need at least one capability", ErrInvalidConfig, kind)
	}
	for _, c := range cfg.Capabilities {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("%w: empty capability name", ErrInvalidConfig)
		}
	}
	if cfg.RequestsPerMinute < 0 || cfg.TokensPerMinute < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	if cfg.Timeout < 0 || cfg.CacheCapacity < 0 {
		return fmt.Errorf("%w: timeout and cache capacity must not be negative", ErrInvalidConfig)
	}
	switch cfg.OnThrottle {
	case "", domain.ThrottleQueue, domain.ThrottleReject:
	default:
		return fmt.Errorf("%w: unknown throttle policy %q", ErrInvalidConfig, cfg.OnThrottle)
	}
	return nil
}

// Deregister removes a model. An in-flight training run finishes against the
// detached entry and is discarded.
func (m *ModelManager) Deregister(modelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.models[modelID]; !ok {
		return fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	delete(m.models, modelID)
	m.logger.Info("model deregistered", zap.String("model_id", modelID))
	return nil
}

func (m *ModelManager) lookup(modelID string) (*modelEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.models[modelID]
	return e, ok
}

func (m *ModelManager) entries() []*modelEntry {
	m.mu.RLock()
	out := make([]*modelEntry, 0, len(m.models))
	for _, e := range m.models {
		out = append(out, e)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Get returns a snapshot of one registration.
func (m *ModelManager) Get(modelID string) (domain.ModelRegistration, error) {
	e, ok := m.lookup(modelID)
	if !ok {
		return domain.ModelRegistration{}, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	return e.snapshot(), nil
}

// List returns snapshots of every registration ordered by model ID.
func (m *ModelManager) List() []domain.ModelRegistration {
	entries := m.entries()
	out := make([]domain.ModelRegistration, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

func (e *modelEntry) snapshot() domain.ModelRegistration {
	st := e.state.Load()
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	cfg := e.cfg
	cfg.Capabilities = append([]string(nil), e.cfg.Capabilities...)
	return domain.ModelRegistration{
		ModelID:      e.id,
		Kind:         e.kind,
		Config:       cfg,
		Status:       st.status,
		StatusReason: st.reason,
		Performance:  e.perf,
		Version:      st.version,
		UsageCount:   e.usage,
		LastUsed:     e.lastUsed,
		RegisteredAt: e.registeredAt,
	}
}

// Predict routes one prediction. It never returns an error: backend and
// state failures are logged and answered with the declared default for the
// capability, marked Degraded. An unknown model ID falls back to a serving
// external model advertising the capability.
func (m *ModelManager) Predict(ctx context.Context, modelID string, input domain.PredictionInput, opts domain.PredictOptions) (pred domain.Prediction) {
	capability := firstNonEmpty(opts.Capability, input.Capability)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("prediction panicked", zap.String("model_id", modelID), zap.Any("panic", r))
			pred = m.defaultPrediction(modelID, capability, "internal error")
		}
	}()

	e, ok := m.lookup(modelID)
	if !ok {
		m.logger.Info("unknown model, falling back by capability",
			zap.String("model_id", modelID),
			zap.String("capability", capability),
		)
		return m.predictBy(ctx, modelID, capability, input, opts, domain.BackendExternal)
	}

	p, err := m.predict(ctx, e, input, opts)
	if err != nil {
		m.logBackendError(e, capability, err)
		return m.defaultPrediction(modelID, firstNonEmpty(capability, e.defaultCapability()), err.Error())
	}
	return *p
}

// PredictByCapability routes to the least-loaded serving model advertising
// capability, preferring in-house over external over MCP models.
func (m *ModelManager) PredictByCapability(ctx context.Context, capability string, input domain.PredictionInput, opts domain.PredictOptions) (pred domain.Prediction) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("prediction panicked", zap.String("capability", capability), zap.Any("panic", r))
			pred = m.defaultPrediction("", capability, "internal error")
		}
	}()
	return m.predictBy(ctx, "", capability, input, opts, domain.BackendInHouse, domain.BackendExternal, domain.BackendMCP)
}

func (m *ModelManager) predictBy(ctx context.Context, requested, capability string, input domain.PredictionInput, opts domain.PredictOptions, kinds ...domain.BackendKind) domain.Prediction {
	candidates := m.candidates(capability, kinds...)
	if len(candidates) == 0 {
		return m.defaultPrediction(requested, capability, fmt.Sprintf("%v: %s", ErrNoCapableModel, capability))
	}

	e := candidates[0]
	input.Capability = capability
	opts.Capability = capability
	p, err := m.predict(ctx, e, input, opts)
	if err != nil {
		m.logBackendError(e, capability, err)
		return m.defaultPrediction(requested, capability, err.Error())
	}
	return *p
}

// candidates returns the serving models advertising capability, ordered by
// kind preference, then in-flight load, then ID.
func (m *ModelManager) candidates(capability string, kinds ...domain.BackendKind) []*modelEntry {
	rank := make(map[domain.BackendKind]int, len(kinds))
	for i, k := range kinds {
		rank[k] = i
	}

	type candidate struct {
		e    *modelEntry
		load int64
	}
	var found []candidate
	for _, e := range m.entries() {
		if _, ok := rank[e.kind]; !ok {
			continue
		}
		if !e.cfg.HasCapability(capability) || !e.state.Load().serving() {
			continue
		}
		found = append(found, candidate{e: e, load: e.inflight.Load()})
	}

	sort.SliceStable(found, func(i, j int) bool {
		ri, rj := rank[found[i].e.kind], rank[found[j].e.kind]
		if ri != rj {
			return ri < rj
		}
		return found[i].load < found[j].load
	})

	out := make([]*modelEntry, len(found))
	for i, c := range found {
		out[i] = c.e
	}
	return out
}

func (m *ModelManager) predict(ctx context.Context, e *modelEntry, input domain.PredictionInput, opts domain.PredictOptions) (*domain.Prediction, error) {
	st := e.state.Load()
	if !st.serving() {
		return nil, fmt.Errorf("%w: %s is %s", ErrModelNotReady, e.id, st.status)
	}

	in := preprocess(input)
	if in.Capability == "" {
		in.Capability = firstNonEmpty(opts.Capability, e.defaultCapability())
	}

	e.inflight.Add(1)
	defer e.inflight.Add(-1)
	defer m.touch(e)

	if e.kind != domain.BackendInHouse || opts.BypassCache {
		return m.run(ctx, e, st, in, opts)
	}

	key, err := cacheKey(in)
	if err != nil {
		return m.run(ctx, e, st, in, opts)
	}
	if p, ok := e.cache.get(st.version, key); ok {
		p.Cached = true
		return &p, nil
	}

	ch := m.flight.DoChan(fmt.Sprintf("%s@%d#%x", e.id, st.version, key), func() (interface{}, error) {
		p, err := m.run(context.WithoutCancel(ctx), e, st, in, opts)
		if err != nil {
			return nil, err
		}
		e.cache.put(st.version, key, *p)
		return *p, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		p := res.Val.(domain.Prediction)
		return &p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// run dispatches to the backend under the model's timeout and rate limit and
// postprocesses the result.
func (m *ModelManager) run(ctx context.Context, e *modelEntry, st *modelState, in domain.PredictionInput, opts domain.PredictOptions) (pred *domain.Prediction, err error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeoutFor(e, opts.Timeout))
	defer cancel()

	if e.limiter != nil {
		if err := e.limiter.Acquire(ctx, ratelimit.EstimateTokens(in.Text)); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			pred, err = nil, fmt.Errorf("backend panicked: %v", r)
		}
		e.recordOutcome(time.Since(start), err)
	}()

	raw, err := st.backend.Predict(ctx, in)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: backend returned no prediction", backend.ErrInvalidResponse)
	}
	return postprocess(*raw, e, st, in), nil
}

func postprocess(p domain.Prediction, e *modelEntry, st *modelState, in domain.PredictionInput) *domain.Prediction {
	p.ModelID = e.id
	p.ModelVersion = st.version
	p.Source = e.kind
	if p.Capability == "" {
		p.Capability = in.Capability
	}
	if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		p.Value = 0
	}
	p.Confidence = domain.Clamp01(p.Confidence)
	if len(p.Scores) > 0 {
		scores := make(map[string]float64, len(p.Scores))
		for k, v := range p.Scores {
			scores[k] = domain.Clamp01(v)
		}
		p.Scores = scores
	}
	p.Cached = false
	p.Degraded = false
	p.Reason = ""
	return &p
}

func (m *ModelManager) defaultPrediction(modelID, capability, reason string) domain.Prediction {
	p, ok := m.Defaults[capability]
	if !ok {
		p = domain.Prediction{}
	}
	p.ModelID = modelID
	p.Capability = capability
	p.Degraded = true
	p.Reason = reason
	return p
}

func (m *ModelManager) logBackendError(e *modelEntry, capability string, err error) {
	m.logger.Warn("model prediction failed, using default",
		zap.String("model_id", e.id),
		zap.String("backend", string(e.kind)),
		zap.String("capability", capability),
		zap.Error(err),
	)
}

func (m *ModelManager) timeoutFor(e *modelEntry, override time.Duration) time.Duration {
	switch {
	case override > 0:
		return override
	case e.cfg.Timeout > 0:
		return e.cfg.Timeout
	case m.DefaultTimeout > 0:
		return m.DefaultTimeout
	default:
		return DefaultModelTimeout
	}
}

func (m *ModelManager) touch(e *modelEntry) {
	e.statsMu.Lock()
	e.usage++
	e.lastUsed = time.Now()
	e.statsMu.Unlock()
}

func (e *modelEntry) recordOutcome(latency time.Duration, err error) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.calls++
	if err != nil {
		e.failures++
	}
	e.perf.ErrorRate = float64(e.failures) / float64(e.calls)
	if e.calls == 1 {
		e.perf.Latency = latency
	} else {
		e.perf.Latency = time.Duration(float64(e.perf.Latency)*(1-latencySmoothing) + float64(latency)*latencySmoothing)
	}
}

func (e *modelEntry) defaultCapability() string {
	if len(e.cfg.Capabilities) > 0 {
		return e.cfg.Capabilities[0]
	}
	return ""
}

// IncrementalTrain extends an in-house model with a small batch.
func (m *ModelManager) IncrementalTrain(ctx context.Context, modelID string, batch []domain.TrainingExample) (*domain.TrainResult, error) {
	return m.train(ctx, modelID, batch, domain.TrainIncremental)
}

// Retrain rebuilds an in-house model from the full dataset.
func (m *ModelManager) Retrain(ctx context.Context, modelID string, dataset []domain.TrainingExample) (*domain.TrainResult, error) {
	return m.train(ctx, modelID, dataset, domain.TrainFull)
}

// train moves a ready model to training, builds the new artifact outside the
// writer lock and swaps it in with a version bump. The pre-training artifact
// keeps serving until the swap. A failed run leaves the model in error
// status; an abandoned run (ctx done) restores it to ready.
func (m *ModelManager) train(ctx context.Context, modelID string, examples []domain.TrainingExample, mode domain.TrainMode) (*domain.TrainResult, error) {
	e, ok := m.lookup(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	if e.kind != domain.BackendInHouse {
		return nil, fmt.Errorf("%w: %s is %s", ErrTrainingUnsupported, modelID, e.kind)
	}
	if len(examples) == 0 {
		return nil, ErrEmptyBatch
	}

	e.mu.Lock()
	prev := e.state.Load()
	switch prev.status {
	case domain.ModelReady:
	case domain.ModelTraining:
		e.mu.Unlock()
		m.logger.Info("training rejected, model busy", zap.String("model_id", modelID))
		return nil, fmt.Errorf("%w: %s", ErrModelBusy, modelID)
	default:
		e.mu.Unlock()
		m.logger.Info("training rejected, model not ready", zap.String("model_id", modelID), zap.String("status", string(prev.status)))
		return nil, fmt.Errorf("%w: %s is %s", ErrModelNotReady, modelID, prev.status)
	}
	e.state.Store(&modelState{backend: prev.backend, version: prev.version, status: domain.ModelTraining})
	e.mu.Unlock()

	start := time.Now()
	next, report, err := safeTrain(ctx, prev.backend, preprocessExamples(examples), mode)

	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil && (next == nil || report == nil) {
		err = fmt.Errorf("backend returned no artifact")
	}
	if err != nil {
		if ctx.Err() != nil {
			e.state.Store(prev)
		} else {
			e.state.Store(&modelState{backend: prev.backend, version: prev.version, status: domain.ModelError, reason: err.Error()})
		}
		m.logger.Warn("model training failed",
			zap.String("model_id", modelID),
			zap.String("mode", string(mode)),
			zap.Error(err),
		)
		return nil, fmt.Errorf("train %s: %w", modelID, err)
	}

	version := prev.version + 1
	e.cache.reset(version)
	e.state.Store(&modelState{backend: next, version: version, status: domain.ModelReady})

	e.statsMu.Lock()
	previousAccuracy := e.perf.Accuracy
	e.perf.Accuracy = report.Accuracy
	e.perf.F1 = report.F1
	e.statsMu.Unlock()

	m.logger.Info("model trained",
		zap.String("model_id", modelID),
		zap.String("mode", string(mode)),
		zap.Int("examples", report.Examples),
		zap.Int("version", version),
		zap.Float64("accuracy", report.Accuracy),
		zap.Duration("took", time.Since(start)),
	)

	return &domain.TrainResult{
		ModelID:          modelID,
		Mode:             mode,
		Examples:         report.Examples,
		PreviousAccuracy: previousAccuracy,
		Accuracy:         report.Accuracy,
		AccuracyDelta:    report.Accuracy - previousAccuracy,
		Version:          version,
	}, nil
}

func safeTrain(ctx context.Context, b domain.ModelBackend, examples []domain.TrainingExample, mode domain.TrainMode) (next domain.ModelBackend, report *domain.TrainReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, report, err = nil, nil, fmt.Errorf("backend panicked during training: %v", r)
		}
	}()
	return b.Train(ctx, examples, mode)
}

// RefreshExternalModels re-tests every external and MCP model. Failures
// demote a model to error without removing it; a model in error that passes
// again is promoted back to ready.
func (m *ModelManager) RefreshExternalModels(ctx context.Context) []domain.RegistrationResult {
	var remote []*modelEntry
	for _, e := range m.entries() {
		if e.kind != domain.BackendInHouse {
			remote = append(remote, e)
		}
	}

	results := make([]domain.RegistrationResult, len(remote))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DefaultRefreshParallelism)
	for i, e := range remote {
		g.Go(func() error {
			results[i] = m.refresh(gctx, e)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *ModelManager) refresh(ctx context.Context, e *modelEntry) (result domain.RegistrationResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state.Load()
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("backend panicked during refresh: %v", r)
			e.state.Store(&modelState{backend: st.backend, version: st.version, status: domain.ModelError, reason: reason})
			result = domain.RegistrationResult{ModelID: e.id, Status: domain.ModelError, Error: reason}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, m.timeoutFor(e, 0))
	defer cancel()

	var err error
	if st.status != domain.ModelReady {
		err = st.backend.Load(ctx)
	}
	if err == nil {
		err = st.backend.TestConnection(ctx)
	}

	if err != nil {
		e.state.Store(&modelState{backend: st.backend, version: st.version, status: domain.ModelError, reason: err.Error()})
		m.logger.Warn("external model failed refresh",
			zap.String("model_id", e.id),
			zap.String("backend", string(e.kind)),
			zap.Error(err),
		)
		return domain.RegistrationResult{ModelID: e.id, Status: domain.ModelError, Error: err.Error()}
	}

	if st.status != domain.ModelReady {
		e.state.Store(&modelState{backend: st.backend, version: st.version, status: domain.ModelReady})
		m.logger.Info("external model recovered", zap.String("model_id", e.id))
	}
	return domain.RegistrationResult{ModelID: e.id, Success: true, Status: domain.ModelReady}
}

// MCPServer describes a connected MCP server.
type MCPServer struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

// ConnectMCPServer connects a streamable-HTTP MCP server into the pool.
func (m *ModelManager) ConnectMCPServer(ctx context.Context, name, endpoint, apiKey string) error {
	return m.pool.ConnectStreamable(ctx, name, endpoint, apiKey)
}

// AttachMCPServer connects an MCP server over an arbitrary transport.
func (m *ModelManager) AttachMCPServer(ctx context.Context, name string, transport mcp.Transport) error {
	return m.pool.Attach(ctx, name, transport)
}

func (m *ModelManager) MCPServers() []MCPServer {
	names := m.pool.Servers()
	out := make([]MCPServer, 0, len(names))
	for _, name := range names {
		out = append(out, MCPServer{Name: name, Capabilities: m.pool.Capabilities(name)})
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
