package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"go.uber.org/zap"
)

const (
	// trendWindow is the lookback used by proactive suggestions.
	trendWindow = 7 * 24 * time.Hour

	minTrendRecords       = 4
	resolutionTrendChange = 0.1
	csatTrendChange       = 0.2
	escalationTrendChange = 0.1

	highLoadPerAgent     = 10.0
	moderateLoadPerAgent = 5.0
	lowLoadPerAgent      = 2.0

	topCategoryLimit = 5
	topTriggerLimit  = 3
)

// GetAgentRecommendations combines the agent's profile, similar successful
// resolutions and model predictions into a recommendation bundle.
func (s *LearningService) GetAgentRecommendations(ctx context.Context, agentID, department string, tc domain.TicketContext) (bundle domain.RecommendationBundle) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("agent recommendations panicked", zap.String("agent_id", agentID), zap.Any("panic", r))
			bundle = s.fallbackBundle(agentID, department)
		}
	}()

	similar := s.SimilarResolutions(department, tc.Category, s.Config.SimilarLimit)
	profile, hasProfile := s.AgentProfile(agentID)

	input := domain.PredictionInput{
		Text:     tc.CustomerMessage,
		Features: outcomeFeatures(department, tc.Category, tc.Priority),
	}
	resolution := s.predict(ctx, domain.CapabilityResolutionTime, input)
	csat := s.predict(ctx, domain.CapabilityCSAT, input)
	escalation := s.predict(ctx, domain.CapabilityEscalation, input)

	estimate := resolution.Value
	if resolution.Degraded && len(similar) > 0 {
		var sum float64
		for _, r := range similar {
			sum += r.ResolutionTimeMinutes
		}
		estimate = sum / float64(len(similar))
	}

	risk := domain.Clamp01(escalation.Value)
	if tc.CustomerMessage != "" && s.sentiment != nil {
		judged := s.sentiment.AnalyzeSentiment(tc.CustomerMessage, tc.Context)
		risk = math.Max(risk, judged.EscalationRisk.RiskScore)
	}

	coverage := 0.0
	if s.Config.SimilarLimit > 0 {
		coverage = math.Min(float64(len(similar))/float64(s.Config.SimilarLimit), 1)
	}
	modelConfidence := (resolution.Confidence + csat.Confidence + escalation.Confidence) / 3

	bundle = domain.RecommendationBundle{
		AgentID:                    agentID,
		Department:                 department,
		SimilarResolutions:         similar,
		EstimatedResolutionMinutes: math.Max(estimate, 0),
		Confidence:                 domain.Clamp01(0.7*modelConfidence + 0.3*coverage),
		EscalationRisk:             risk,
		PredictedCSAT:              math.Min(math.Max(csat.Value, 0), maxCSAT),
		Degraded:                   resolution.Degraded || csat.Degraded || escalation.Degraded,
	}

	var actions []string
	for i, r := range similar {
		if i == 2 {
			break
		}
		if r.SolutionSummary != "" {
			actions = append(actions, "Try what worked before: "+r.SolutionSummary)
		}
	}
	switch level := domain.ComputeRiskLevel(risk); level {
	case domain.RiskCritical, domain.RiskHigh:
		actions = append(actions, "Loop in a senior agent early; escalation risk is "+string(level))
	case domain.RiskMedium:
		actions = append(actions, "Set clear expectations and follow up proactively")
	}
	if target := s.Config.TargetResolutionMinutes; target > 0 && bundle.EstimatedResolutionMinutes > target {
		actions = append(actions, fmt.Sprintf("Expected to exceed the %.0f minute target; agree on a timeline with the customer", target))
	}
	if p := strings.ToLower(tc.Priority); p == "urgent" || p == "high" || p == "critical" {
		actions = append(actions, "Send a first response immediately")
	}
	if hasProfile {
		for _, area := range profile.ImprovementAreas {
			actions = append(actions, "Watch your "+area+"; it is a current improvement area")
		}
		if tc.Category != "" && !containsFold(profile.Specializations, tc.Category) {
			if specialist := s.specialistFor(tc.Category, agentID); specialist != "" {
				actions = append(actions, fmt.Sprintf("Consult %s, who specializes in %s", specialist, tc.Category))
			}
		}
	}
	if len(actions) == 0 {
		actions = append(actions, fmt.Sprintf("Follow the standard %s process for %s tickets", department, firstNonEmpty(tc.Category, "general")))
	}
	bundle.SuggestedActions = dedupe(actions)
	return bundle
}

func (s *LearningService) predict(ctx context.Context, capability string, input domain.PredictionInput) domain.Prediction {
	if s.models == nil {
		return domain.Prediction{Capability: capability, Degraded: true}
	}
	return s.models.PredictByCapability(ctx, capability, input, domain.PredictOptions{})
}

func (s *LearningService) fallbackBundle(agentID, department string) domain.RecommendationBundle {
	defaults := DefaultPredictions()
	return domain.RecommendationBundle{
		AgentID:                    agentID,
		Department:                 department,
		SuggestedActions:           []string{"Follow the standard support process"},
		SimilarResolutions:         []domain.ResolutionSummary{},
		EstimatedResolutionMinutes: defaults[domain.CapabilityResolutionTime].Value,
		EscalationRisk:             defaults[domain.CapabilityEscalation].Value,
		PredictedCSAT:              defaults[domain.CapabilityCSAT].Value,
		Degraded:                   true,
	}
}

// SimilarResolutions returns the most recent successful resolutions for a
// department and category: CSAT at or above the success threshold and not
// escalated.
func (s *LearningService) SimilarResolutions(department, category string, limit int) []domain.ResolutionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.ResolutionSummary{}
	idx := s.byPattern[domain.PatternKey(department, category)]
	for i := len(idx) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		rec := s.records[idx[i]]
		if !s.successful(rec) {
			continue
		}
		out = append(out, domain.ResolutionSummary{
			AgentID:               rec.AgentID,
			SolutionSummary:       rec.SolutionSummary,
			ResolutionTimeMinutes: rec.ResolutionTimeMinutes,
			CSAT:                  rec.CSAT,
		})
	}
	return out
}

// specialistFor returns the agent with the most successful resolutions in
// category, excluding exclude.
func (s *LearningService) specialistFor(category, exclude string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best, bestCount := "", 0
	for id, agent := range s.agents {
		if id == exclude {
			continue
		}
		n := agent.successByCat[category]
		if n < s.Config.SpecializationMin {
			continue
		}
		if n > bestCount || (n == bestCount && id < best) {
			best, bestCount = id, n
		}
	}
	return best
}

// GetDepartmentAnalytics aggregates the department's records inside tr. A
// window with no records returns the empty shape with HasData false. An
// empty department covers every department.
func (s *LearningService) GetDepartmentAnalytics(department string, tr domain.TimeRange) (analytics domain.DepartmentAnalytics) {
	analytics = emptyAnalytics(department, tr)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("department analytics panicked", zap.String("department", department), zap.Any("panic", r))
			analytics = emptyAnalytics(department, tr)
		}
	}()

	records := s.recordsFor(department, tr)
	if len(records) == 0 {
		return analytics
	}

	analytics.HasData = true
	analytics.Performance = performance(records)
	analytics.Trends = s.trends(records)
	analytics.TrainingRecommendations = s.trainingRecommendations(department, records, analytics.Performance)
	return analytics
}

func emptyAnalytics(department string, tr domain.TimeRange) domain.DepartmentAnalytics {
	return domain.DepartmentAnalytics{
		Department: department,
		TimeRange:  tr,
		Trends: domain.TrendAnalysis{
			ResolutionTime: domain.TrendStable,
			CSAT:           domain.TrendStable,
			Escalations:    domain.TrendStable,
			TopCategories:  []domain.CategoryCount{},
		},
		TrainingRecommendations: []string{},
	}
}

// recordsFor returns matching records ordered by timestamp.
func (s *LearningService) recordsFor(department string, tr domain.TimeRange) []domain.TrainingRecord {
	s.mu.RLock()
	var out []domain.TrainingRecord
	for _, rec := range s.records {
		if department != "" && !strings.EqualFold(rec.Department, department) {
			continue
		}
		if tr.Contains(rec.Timestamp) {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func performance(records []domain.TrainingRecord) domain.PerformanceMetrics {
	var m domain.PerformanceMetrics
	var escalated, reopened, firstContact int
	for _, r := range records {
		m.AvgResolutionMinutes += r.ResolutionTimeMinutes
		m.AvgCSAT += r.CSAT
		if r.Escalated {
			escalated++
		}
		if r.Reopened {
			reopened++
		}
		if !r.Escalated && !r.Reopened {
			firstContact++
		}
	}
	n := float64(len(records))
	m.TotalTickets = len(records)
	m.AvgResolutionMinutes /= n
	m.AvgCSAT /= n
	m.EscalationRate = float64(escalated) / n
	m.ReopenRate = float64(reopened) / n
	m.FirstContactResolved = float64(firstContact) / n
	return m
}

// trends compares the older half of the window with the newer half.
func (s *LearningService) trends(records []domain.TrainingRecord) domain.TrendAnalysis {
	t := domain.TrendAnalysis{
		ResolutionTime: domain.TrendStable,
		CSAT:           domain.TrendStable,
		Escalations:    domain.TrendStable,
		TopCategories:  topCategories(records, topCategoryLimit),
	}
	if len(records) < minTrendRecords {
		return t
	}

	half := len(records) / 2
	older, newer := performance(records[:half]), performance(records[half:])

	if older.AvgResolutionMinutes > 0 {
		change := (newer.AvgResolutionMinutes - older.AvgResolutionMinutes) / older.AvgResolutionMinutes
		t.ResolutionTime = trendOf(-change, resolutionTrendChange)
	}
	t.CSAT = trendOf(newer.AvgCSAT-older.AvgCSAT, csatTrendChange)
	t.Escalations = trendOf(older.EscalationRate-newer.EscalationRate, escalationTrendChange)
	return t
}

// trendOf maps a signed improvement to a trend; positive is better.
func trendOf(improvement, threshold float64) domain.SentimentTrend {
	switch {
	case improvement > threshold:
		return domain.TrendImproving
	case improvement < -threshold:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func topCategories(records []domain.TrainingRecord, limit int) []domain.CategoryCount {
	counts := make(map[string]int)
	for _, r := range records {
		counts[r.Category]++
	}
	out := make([]domain.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, domain.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *LearningService) trainingRecommendations(department string, records []domain.TrainingRecord, perf domain.PerformanceMetrics) []string {
	recs := []string{}
	if target := s.Config.TargetResolutionMinutes; target > 0 && perf.AvgResolutionMinutes > target {
		slow := worstCategory(records, func(r domain.TrainingRecord) float64 { return r.ResolutionTimeMinutes }, true)
		recs = append(recs, fmt.Sprintf("Resolution time averages %.0f minutes against a %.0f minute target; review %s workflows", perf.AvgResolutionMinutes, target, slow))
	}
	if perf.AvgCSAT < s.Config.SuccessCSAT {
		low := worstCategory(records, func(r domain.TrainingRecord) float64 { return r.CSAT }, false)
		recs = append(recs, fmt.Sprintf("CSAT averages %.1f; coach on %s tickets", perf.AvgCSAT, low))
	}
	if perf.EscalationRate > s.Config.HighEscalationRate {
		recs = append(recs, fmt.Sprintf("Escalation rate is %.0f%%; schedule de-escalation training", 100*perf.EscalationRate))
	}
	if perf.ReopenRate > s.Config.HighReopenRate {
		recs = append(recs, fmt.Sprintf("Reopen rate is %.0f%%; verify fixes before closing", 100*perf.ReopenRate))
	}
	for _, t := range s.topTriggers(department, 1) {
		recs = append(recs, fmt.Sprintf("Most common escalation trigger is %q; practice responses to it", t.trigger))
	}
	return recs
}

// worstCategory returns the category with the highest (or lowest) mean of
// metric.
func worstCategory(records []domain.TrainingRecord, metric func(domain.TrainingRecord) float64, highest bool) string {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		sums[r.Category] += metric(r)
		counts[r.Category]++
	}
	cats := make([]string, 0, len(sums))
	for c := range sums {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	worst, worstMean := "", 0.0
	for i, c := range cats {
		m := sums[c] / float64(counts[c])
		if i == 0 || (highest && m > worstMean) || (!highest && m < worstMean) {
			worst, worstMean = c, m
		}
	}
	return worst
}

type triggerCount struct {
	trigger  string
	category string
	count    int
}

// topTriggers returns the department's most frequent escalation triggers.
func (s *LearningService) topTriggers(department string, limit int) []triggerCount {
	s.mu.RLock()
	var out []triggerCount
	for key, bucket := range s.triggers {
		dept, category, _ := strings.Cut(key, "/")
		if department != "" && dept != strings.ToLower(strings.TrimSpace(department)) {
			continue
		}
		for trigger, n := range bucket {
			out = append(out, triggerCount{trigger: trigger, category: category, count: n})
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		if out[i].trigger != out[j].trigger {
			return out[i].trigger < out[j].trigger
		}
		return out[i].category < out[j].category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GenerateProactiveSuggestions analyzes the last week of the department's
// trends and the current load. It always returns the full shape.
func (s *LearningService) GenerateProactiveSuggestions(pc domain.ProactiveContext) (suggestions domain.ProactiveSuggestions) {
	suggestions = domain.EmptyProactiveSuggestions()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("proactive suggestions panicked", zap.String("department", pc.Department), zap.Any("panic", r))
			suggestions = domain.EmptyProactiveSuggestions()
		}
	}()

	now := pc.Now
	if now.IsZero() {
		now = s.now()
	}
	analytics := s.GetDepartmentAnalytics(pc.Department, domain.TimeRange{Start: now.Add(-trendWindow), End: now})

	if analytics.Trends.Escalations == domain.TrendDeclining {
		suggestions.PreventiveActions = append(suggestions.PreventiveActions, "Escalations are rising; review recent escalated tickets for shared causes")
	}
	if analytics.Trends.CSAT == domain.TrendDeclining {
		suggestions.PreventiveActions = append(suggestions.PreventiveActions, "CSAT is declining; audit this week's low-scoring tickets")
	}
	for _, t := range s.topTriggers(pc.Department, topTriggerLimit) {
		where := t.category
		if where == "" {
			where = "all categories"
		}
		suggestions.PreventiveActions = append(suggestions.PreventiveActions,
			fmt.Sprintf("Watch for %q in %s; it preceded %d escalations", t.trigger, where, t.count))
	}

	switch {
	case pc.OpenTickets > 0 && pc.AvailableAgents <= 0:
		suggestions.ResourceOptimization = append(suggestions.ResourceOptimization,
			fmt.Sprintf("No agents available for %d open tickets; reassign coverage", pc.OpenTickets))
	case pc.AvailableAgents > 0:
		load := float64(pc.OpenTickets) / float64(pc.AvailableAgents)
		switch {
		case load > highLoadPerAgent:
			suggestions.ResourceOptimization = append(suggestions.ResourceOptimization,
				fmt.Sprintf("High load at %.1f tickets per agent; add staffing or defer low-priority work", load))
		case load > moderateLoadPerAgent:
			if top := analytics.Trends.TopCategories; len(top) > 0 {
				suggestions.ResourceOptimization = append(suggestions.ResourceOptimization,
					fmt.Sprintf("Route %s tickets to specialists to keep the queue moving", top[0].Category))
			} else {
				suggestions.ResourceOptimization = append(suggestions.ResourceOptimization, "Route tickets to specialists to keep the queue moving")
			}
		case load < lowLoadPerAgent:
			suggestions.ResourceOptimization = append(suggestions.ResourceOptimization, "Capacity is available; schedule training during low load")
		}
	}
	if analytics.Trends.ResolutionTime == domain.TrendDeclining {
		suggestions.ResourceOptimization = append(suggestions.ResourceOptimization, "Resolution times are rising; check for blocked tickets")
	}

	suggestions.TrainingNeeds = append(suggestions.TrainingNeeds, analytics.TrainingRecommendations...)
	suggestions.TrainingNeeds = append(suggestions.TrainingNeeds, s.agentTrainingNeeds(pc.Department)...)
	return suggestions
}

func (s *LearningService) agentTrainingNeeds(department string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.agents))
	for id, agent := range s.agents {
		if department == "" || agentInDepartment(agent, department) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var needs []string
	for _, id := range ids {
		profile := s.profileLocked(s.agents[id])
		if len(profile.ImprovementAreas) > 0 {
			needs = append(needs, fmt.Sprintf("%s: improve %s", id, strings.Join(profile.ImprovementAreas, ", ")))
		}
	}
	return needs
}

func agentInDepartment(agent *agentAggregate, department string) bool {
	for d := range agent.departments {
		if strings.EqualFold(d, department) {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
