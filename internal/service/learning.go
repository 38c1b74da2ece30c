package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultSuccessCSAT             = 4.0
	DefaultSimilarLimit            = 5
	DefaultTargetResolutionMinutes = 240.0
	DefaultBehaviorPatternCap      = 50
	DefaultMinBehaviorSamples      = 3
	DefaultStrengthSuccessRate     = 0.8
	DefaultWeakSuccessRate         = 0.5
	DefaultLowCSAT                 = 3.0
	DefaultSpecializationMin       = 3
	DefaultHighEscalationRate      = 0.2
	DefaultHighReopenRate          = 0.1
	DefaultMaxPendingExamples      = 10000

	maxCSAT = 5.0
)

// Model IDs the learning engine trains by default.
const (
	ResolutionTimeModelID = "resolution-time"
	CSATModelID           = "csat"
	EscalationModelID     = "escalation-classifier"
)

const (
	labelEscalated = "escalated"
	labelResolved  = "resolved"
)

var errInvalidRecord = errors.New("invalid record")

// LearningConfig holds the learning engine's thresholds.
type LearningConfig struct {
	// SuccessCSAT is the lowest CSAT that counts a resolution as successful.
	SuccessCSAT             float64
	SimilarLimit            int
	TargetResolutionMinutes float64
	BehaviorPatternCap      int
	MinBehaviorSamples      int
	StrengthSuccessRate     float64
	WeakSuccessRate         float64
	LowCSAT                 float64
	SpecializationMin       int
	HighEscalationRate      float64
	HighReopenRate          float64
	// MaxPendingExamples bounds each model's training queue; the oldest
	// examples are dropped beyond it. Zero means unbounded.
	MaxPendingExamples int

	ResolutionTimeModelID string
	CSATModelID           string
	EscalationModelID     string
}

func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		SuccessCSAT:             DefaultSuccessCSAT,
		SimilarLimit:            DefaultSimilarLimit,
		TargetResolutionMinutes: DefaultTargetResolutionMinutes,
		BehaviorPatternCap:      DefaultBehaviorPatternCap,
		MinBehaviorSamples:      DefaultMinBehaviorSamples,
		StrengthSuccessRate:     DefaultStrengthSuccessRate,
		WeakSuccessRate:         DefaultWeakSuccessRate,
		LowCSAT:                 DefaultLowCSAT,
		SpecializationMin:       DefaultSpecializationMin,
		HighEscalationRate:      DefaultHighEscalationRate,
		HighReopenRate:          DefaultHighReopenRate,
		MaxPendingExamples:      DefaultMaxPendingExamples,
		ResolutionTimeModelID:   ResolutionTimeModelID,
		CSATModelID:             CSATModelID,
		EscalationModelID:       EscalationModelID,
	}
}

type actionStats struct {
	occurrences int
	successes   int
}

// agentAggregate is the rolling state behind an AgentProfile.
type agentAggregate struct {
	id          string
	departments map[string]bool

	resolutions   int
	resolutionSum float64
	csatSum       float64
	csatCount     int
	successByCat  map[string]int

	actions   map[string]*actionStats
	updatedAt time.Time
}

func newAgentAggregate(id string) *agentAggregate {
	return &agentAggregate{
		id:           id,
		departments:  make(map[string]bool),
		successByCat: make(map[string]int),
		actions:      make(map[string]*actionStats),
	}
}

// LearningService records ticket outcomes, agent behavior and escalation
// patterns in memory, keeps the derived aggregates current and feeds the
// in-house models. Records are append-only.
type LearningService struct {
	models    *ModelManager
	sentiment *SentimentService
	sinks     []domain.RecordSink
	logger    *zap.Logger
	now       func() time.Time

	Config LearningConfig

	mu          sync.RWMutex
	records     []domain.TrainingRecord
	byPattern   map[string][]int
	behaviors   []domain.AgentBehavior
	agents      map[string]*agentAggregate
	escalations []domain.EscalationPattern
	// triggers counts escalation triggers per department+category.
	triggers map[string]map[string]int

	queueMu sync.Mutex
	queues  map[string]*trainingQueue
}

func NewLearningService(models *ModelManager, logger *zap.Logger) *LearningService {
	return &LearningService{
		models:    models,
		logger:    logger,
		now:       time.Now,
		Config:    DefaultLearningConfig(),
		byPattern: make(map[string][]int),
		agents:    make(map[string]*agentAggregate),
		triggers:  make(map[string]map[string]int),
		queues:    make(map[string]*trainingQueue),
	}
}

func (s *LearningService) SetSentimentService(sentiment *SentimentService) {
	s.sentiment = sentiment
}

// AddRecordSink registers a write-through sink for appended records.
func (s *LearningService) AddRecordSink(sink domain.RecordSink) {
	s.sinks = append(s.sinks, sink)
}

// ProcessTicketResolution appends a training record, updates the pattern and
// agent aggregates and dispatches incremental training.
func (s *LearningService) ProcessTicketResolution(ctx context.Context, res domain.TicketResolution) (result domain.LearningResult) {
	defer s.recoverResult("ticket resolution", &result)

	if err := validateResolution(res); err != nil {
		return failedResult(err)
	}

	rec := domain.TrainingRecord{
		ID:                    uuid.New(),
		TicketID:              res.TicketID,
		Department:            res.Department,
		Category:              res.Category,
		Priority:              res.Priority,
		AgentID:               res.AgentID,
		ResolutionTimeMinutes: res.ResolutionTimeMinutes,
		CSAT:                  res.CSAT,
		Escalated:             res.Escalated,
		Reopened:              res.Reopened,
		SolutionSummary:       res.SolutionSummary,
		Timestamp:             res.ResolvedAt,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	key := rec.PatternKey()
	s.byPattern[key] = append(s.byPattern[key], len(s.records)-1)
	patternSize := len(s.byPattern[key])
	if rec.AgentID != "" {
		agent := s.agentLocked(rec.AgentID)
		agent.departments[rec.Department] = true
		agent.resolutions++
		agent.resolutionSum += rec.ResolutionTimeMinutes
		agent.csatSum += rec.CSAT
		agent.csatCount++
		if s.successful(rec) {
			agent.successByCat[rec.Category]++
		}
		agent.updatedAt = rec.Timestamp
	}
	s.mu.Unlock()

	insights := s.resolutionInsights(rec, patternSize)

	features := outcomeFeatures(rec.Department, rec.Category, rec.Priority)
	escalationLabel, escalationValue := labelResolved, 0.0
	if rec.Escalated {
		escalationLabel, escalationValue = labelEscalated, 1
	}
	s.dispatchTraining(ctx, s.Config.ResolutionTimeModelID, domain.TrainingExample{Features: features, Value: rec.ResolutionTimeMinutes})
	s.dispatchTraining(ctx, s.Config.CSATModelID, domain.TrainingExample{Features: features, Value: rec.CSAT})
	s.dispatchTraining(ctx, s.Config.EscalationModelID, domain.TrainingExample{
		Text:     res.CustomerMessage,
		Features: features,
		Label:    escalationLabel,
		Value:    escalationValue,
	})

	for _, sink := range s.sinks {
		if err := sink.AppendTrainingRecord(ctx, &rec); err != nil {
			s.logger.Warn("record sink failed", zap.String("record", "training"), zap.String("record_id", rec.ID.String()), zap.Error(err))
		}
	}

	s.logger.Debug("ticket resolution recorded",
		zap.String("record_id", rec.ID.String()),
		zap.String("pattern", key),
		zap.String("agent_id", rec.AgentID),
	)

	return domain.LearningResult{Success: true, RecordID: rec.ID, Insights: insights}
}

func validateResolution(res domain.TicketResolution) error {
	switch {
	case strings.TrimSpace(res.Department) == "":
		return fmt.Errorf("%w: department is required", errInvalidRecord)
	case strings.TrimSpace(res.Category) == "":
		return fmt.Errorf("%w: category is required", errInvalidRecord)
	case res.ResolutionTimeMinutes < 0:
		return fmt.Errorf("%w: resolution time must not be negative", errInvalidRecord)
	case res.CSAT < 0 || res.CSAT > maxCSAT:
		return fmt.Errorf("%w: csat must be between 0 and 5", errInvalidRecord)
	}
	return nil
}

func (s *LearningService) resolutionInsights(rec domain.TrainingRecord, patternSize int) []string {
	insights := []string{}
	target := s.Config.TargetResolutionMinutes
	switch {
	case target <= 0:
	case rec.ResolutionTimeMinutes <= target:
		insights = append(insights, fmt.Sprintf("Resolved within the %.0f minute target", target))
	default:
		insights = append(insights, fmt.Sprintf("Resolution took %.0f minutes, %.0f over target", rec.ResolutionTimeMinutes, rec.ResolutionTimeMinutes-target))
	}
	if s.successful(rec) {
		insights = append(insights, fmt.Sprintf("Successful resolution added to %s patterns (%d records)", rec.PatternKey(), patternSize))
	} else if rec.CSAT < s.Config.SuccessCSAT {
		insights = append(insights, fmt.Sprintf("CSAT %.1f is below the %.1f success threshold", rec.CSAT, s.Config.SuccessCSAT))
	}
	if rec.Escalated {
		insights = append(insights, "Escalated ticket recorded for "+rec.PatternKey())
	}
	if rec.Reopened {
		insights = append(insights, "Ticket was reopened; verify the fix before closing similar tickets")
	}
	return insights
}

// ProcessAgentBehavior appends a behavior record and updates the agent's
// profile, creating it on first report.
func (s *LearningService) ProcessAgentBehavior(ctx context.Context, b domain.AgentBehavior) (result domain.LearningResult) {
	defer s.recoverResult("agent behavior", &result)

	if strings.TrimSpace(b.AgentID) == "" {
		return failedResult(fmt.Errorf("%w: agent id is required", errInvalidRecord))
	}
	if strings.TrimSpace(b.Action) == "" {
		return failedResult(fmt.Errorf("%w: action is required", errInvalidRecord))
	}
	if b.CSAT < 0 || b.CSAT > maxCSAT {
		return failedResult(fmt.Errorf("%w: csat must be between 0 and 5", errInvalidRecord))
	}

	b.ID = uuid.New()
	if b.Timestamp.IsZero() {
		b.Timestamp = s.now()
	}

	s.mu.Lock()
	s.behaviors = append(s.behaviors, b)
	agent := s.agentLocked(b.AgentID)
	if b.Department != "" {
		agent.departments[b.Department] = true
	}
	stats, ok := agent.actions[b.Action]
	if !ok {
		stats = &actionStats{}
		agent.actions[b.Action] = stats
	}
	stats.occurrences++
	if b.Successful {
		stats.successes++
	}
	occurrences, successes := stats.occurrences, stats.successes
	s.capPatternsLocked(agent, b.Action)
	agent.updatedAt = b.Timestamp
	s.mu.Unlock()

	insights := []string{
		fmt.Sprintf("%s succeeds %.0f%% of the time for %s (%d attempts)", b.Action, 100*float64(successes)/float64(occurrences), b.AgentID, occurrences),
	}

	if b.CSAT > 0 && b.Department != "" {
		s.dispatchTraining(ctx, s.Config.CSATModelID, domain.TrainingExample{
			Features: outcomeFeatures(b.Department, b.Category, ""),
			Value:    b.CSAT,
		})
	}

	for _, sink := range s.sinks {
		if err := sink.AppendAgentBehavior(ctx, &b); err != nil {
			s.logger.Warn("record sink failed", zap.String("record", "behavior"), zap.String("record_id", b.ID.String()), zap.Error(err))
		}
	}

	return domain.LearningResult{Success: true, RecordID: b.ID, Insights: insights}
}

// capPatternsLocked drops the least frequent actions other than keep once an
// agent tracks more than BehaviorPatternCap of them.
func (s *LearningService) capPatternsLocked(agent *agentAggregate, keep string) {
	limit := s.Config.BehaviorPatternCap
	if limit <= 0 {
		return
	}
	patterns := agentPatterns(agent)
	for i := len(patterns) - 1; i >= 0 && len(agent.actions) > limit; i-- {
		if patterns[i].Action != keep {
			delete(agent.actions, patterns[i].Action)
		}
	}
}

// ProcessEscalationPattern appends an escalation record and bumps the
// trigger bucket for its department and category.
func (s *LearningService) ProcessEscalationPattern(ctx context.Context, p domain.EscalationPattern) (result domain.LearningResult) {
	defer s.recoverResult("escalation pattern", &result)

	if strings.TrimSpace(p.Department) == "" {
		return failedResult(fmt.Errorf("%w: department is required", errInvalidRecord))
	}
	trigger := strings.ToLower(strings.TrimSpace(p.Trigger))
	if trigger == "" {
		return failedResult(fmt.Errorf("%w: trigger is required", errInvalidRecord))
	}

	p.ID = uuid.New()
	p.Trigger = trigger
	if p.Timestamp.IsZero() {
		p.Timestamp = s.now()
	}

	key := domain.PatternKey(p.Department, p.Category)
	s.mu.Lock()
	s.escalations = append(s.escalations, p)
	bucket, ok := s.triggers[key]
	if !ok {
		bucket = make(map[string]int)
		s.triggers[key] = bucket
	}
	bucket[trigger]++
	seen := bucket[trigger]
	s.mu.Unlock()

	insights := []string{fmt.Sprintf("Trigger %q has preceded %d escalations in %s", trigger, seen, key)}
	if p.CustomerTier == domain.CustomerTierEnterprise {
		insights = append(insights, "Enterprise customer escalation; review account health")
	}

	s.dispatchTraining(ctx, s.Config.EscalationModelID, domain.TrainingExample{
		Text:     trigger,
		Features: outcomeFeatures(p.Department, p.Category, ""),
		Label:    labelEscalated,
		Value:    1,
	})

	for _, sink := range s.sinks {
		if err := sink.AppendEscalationPattern(ctx, &p); err != nil {
			s.logger.Warn("record sink failed", zap.String("record", "escalation"), zap.String("record_id", p.ID.String()), zap.Error(err))
		}
	}

	return domain.LearningResult{Success: true, RecordID: p.ID, Insights: insights}
}

// trainingQueue holds examples waiting for a model. At most one caller
// drains it at a time; the others only enqueue.
type trainingQueue struct {
	pending  []domain.TrainingExample
	draining bool
}

// dispatchTraining queues one example for an in-house model and, unless a
// drain is already running, trains on everything queued until the queue is
// empty. Examples rejected because the model is busy or not ready stay
// queued for the next drain. Recording never fails because of training.
func (s *LearningService) dispatchTraining(ctx context.Context, modelID string, ex domain.TrainingExample) {
	if s.models == nil || modelID == "" {
		return
	}

	s.queueMu.Lock()
	q, ok := s.queues[modelID]
	if !ok {
		q = &trainingQueue{}
		s.queues[modelID] = q
	}
	q.pending = append(q.pending, ex)
	if over := len(q.pending) - s.Config.MaxPendingExamples; s.Config.MaxPendingExamples > 0 && over > 0 {
		q.pending = q.pending[over:]
		s.logger.Warn("training queue full, dropped oldest examples", zap.String("model_id", modelID), zap.Int("dropped", over))
	}
	if q.draining {
		s.queueMu.Unlock()
		return
	}
	q.draining = true
	s.queueMu.Unlock()

	// The drain trains other callers' examples too, so it outlives ctx.
	s.drainTraining(context.WithoutCancel(ctx), modelID, q)
}

func (s *LearningService) drainTraining(ctx context.Context, modelID string, q *trainingQueue) {
	for {
		s.queueMu.Lock()
		batch := q.pending
		q.pending = nil
		if len(batch) == 0 {
			q.draining = false
			s.queueMu.Unlock()
			return
		}
		s.queueMu.Unlock()

		_, err := s.models.IncrementalTrain(ctx, modelID, batch)
		switch {
		case err == nil:
			continue
		case errors.Is(err, ErrModelBusy), errors.Is(err, ErrModelNotReady):
			// Another caller is training the model; keep the batch for the
			// next drain.
			s.queueMu.Lock()
			q.pending = append(batch, q.pending...)
			q.draining = false
			s.queueMu.Unlock()
			s.logger.Debug("training deferred", zap.String("model_id", modelID), zap.Int("pending", len(batch)), zap.Error(err))
			return
		case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrTrainingUnsupported):
			s.logger.Debug("training skipped", zap.String("model_id", modelID), zap.Int("examples", len(batch)), zap.Error(err))
		default:
			s.logger.Warn("incremental training failed", zap.String("model_id", modelID), zap.Int("examples", len(batch)), zap.Error(err))
		}
	}
}

// PendingTraining returns the number of examples queued for modelID.
func (s *LearningService) PendingTraining(modelID string) int {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if q, ok := s.queues[modelID]; ok {
		return len(q.pending)
	}
	return 0
}

func (s *LearningService) agentLocked(agentID string) *agentAggregate {
	agent, ok := s.agents[agentID]
	if !ok {
		agent = newAgentAggregate(agentID)
		s.agents[agentID] = agent
	}
	return agent
}

func (s *LearningService) successful(rec domain.TrainingRecord) bool {
	return rec.CSAT >= s.Config.SuccessCSAT && !rec.Escalated
}

// AgentProfile returns the derived profile of an agent.
func (s *LearningService) AgentProfile(agentID string) (domain.AgentProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	agent, ok := s.agents[agentID]
	if !ok {
		return domain.AgentProfile{}, false
	}
	return s.profileLocked(agent), true
}

func (s *LearningService) profileLocked(agent *agentAggregate) domain.AgentProfile {
	p := domain.AgentProfile{
		AgentID:          agent.id,
		Strengths:        []string{},
		ImprovementAreas: []string{},
		Specializations:  []string{},
		BehaviorPatterns: agentPatterns(agent),
		TicketsHandled:   agent.resolutions,
		UpdatedAt:        agent.updatedAt,
	}
	if agent.resolutions > 0 {
		p.AvgResolutionTime = agent.resolutionSum / float64(agent.resolutions)
	}
	if agent.csatCount > 0 {
		p.AvgCSAT = agent.csatSum / float64(agent.csatCount)
	}

	for _, bp := range p.BehaviorPatterns {
		if bp.Occurrences < s.Config.MinBehaviorSamples {
			continue
		}
		switch {
		case bp.SuccessRate >= s.Config.StrengthSuccessRate:
			p.Strengths = append(p.Strengths, bp.Action)
		case bp.SuccessRate < s.Config.WeakSuccessRate:
			p.ImprovementAreas = append(p.ImprovementAreas, bp.Action)
		}
	}

	if agent.resolutions >= s.Config.MinBehaviorSamples {
		if p.AvgResolutionTime <= s.Config.TargetResolutionMinutes {
			p.Strengths = append(p.Strengths, "fast resolution")
		} else {
			p.ImprovementAreas = append(p.ImprovementAreas, "resolution time")
		}
	}
	if agent.csatCount >= s.Config.MinBehaviorSamples {
		switch {
		case p.AvgCSAT >= s.Config.SuccessCSAT:
			p.Strengths = append(p.Strengths, "customer satisfaction")
		case p.AvgCSAT < s.Config.LowCSAT:
			p.ImprovementAreas = append(p.ImprovementAreas, "customer satisfaction")
		}
	}

	type catCount struct {
		category string
		n        int
	}
	var cats []catCount
	for c, n := range agent.successByCat {
		if n >= s.Config.SpecializationMin {
			cats = append(cats, catCount{c, n})
		}
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].n != cats[j].n {
			return cats[i].n > cats[j].n
		}
		return cats[i].category < cats[j].category
	})
	for _, c := range cats {
		p.Specializations = append(p.Specializations, c.category)
	}
	return p
}

// agentPatterns returns the agent's actions, most frequent first.
func agentPatterns(agent *agentAggregate) []domain.BehaviorPattern {
	out := make([]domain.BehaviorPattern, 0, len(agent.actions))
	for action, st := range agent.actions {
		out = append(out, domain.BehaviorPattern{
			Action:      action,
			Occurrences: st.occurrences,
			SuccessRate: float64(st.successes) / float64(st.occurrences),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Occurrences != out[j].Occurrences {
			return out[i].Occurrences > out[j].Occurrences
		}
		return out[i].Action < out[j].Action
	})
	return out
}

func (s *LearningService) recoverResult(op string, result *domain.LearningResult) {
	if r := recover(); r != nil {
		s.logger.Error("learning operation panicked", zap.String("operation", op), zap.Any("panic", r))
		*result = failedResult(fmt.Errorf("internal error"))
	}
}

func failedResult(err error) domain.LearningResult {
	return domain.LearningResult{Success: false, Insights: []string{}, Error: err.Error()}
}

func outcomeFeatures(department, category, priority string) map[string]any {
	f := map[string]any{"department": department}
	if category != "" {
		f["category"] = category
	}
	if priority != "" {
		f["priority"] = priority
	}
	return f
}
