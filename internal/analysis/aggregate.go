package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"fraudwatch/internal/adapter/litellm"
	"fraudwatch/internal/model"
)

// HighRiskThreshold is the overall score at or above which a review needs a
// human analyst before any account action.
const HighRiskThreshold = 0.6

// findingsLimit caps specialist findings recorded in step_details.
const findingsLimit = 300

// Specialist weights. Location carries the most signal for fraud.
var kindWeights = map[model.SpecialistKind]float64{
	model.KindUsage:    0.3,
	model.KindLocation: 0.4,
	model.KindBilling:  0.3,
}

// step_details keys for each pipeline stage.
const (
	StepUsage      = "usage_pattern_executor"
	StepLocation   = "location_analysis_executor"
	StepBilling    = "billing_charge_executor"
	StepAggregator = "fraud_risk_aggregator"
)

var stepKeys = map[model.SpecialistKind]string{
	model.KindUsage:    StepUsage,
	model.KindLocation: StepLocation,
	model.KindBilling:  StepBilling,
}

// ValidationError marks an invalid input or an incomplete fan-in set.
// It fails the review run and is never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Aggregator is the fan-in barrier: it combines exactly three specialist
// results into one RiskAssessment.
type Aggregator struct {
	llm    ChatClient
	model  string
	logger *slog.Logger
}

// NewAggregator creates an aggregator. The LLM is advisory only: it writes
// the human-readable reasoning, never the action decision.
func NewAggregator(llm ChatClient, llmModel string, logger *slog.Logger) *Aggregator {
	return &Aggregator{llm: llm, model: llmModel, logger: logger}
}

// Aggregate validates that exactly one result of each kind arrived, computes
// the weighted overall score, classifies it, and builds the step_details map.
func (a *Aggregator) Aggregate(ctx context.Context, alert model.Alert, results []model.SpecialistResult) (*model.RiskAssessment, error) {
	byKind, err := indexByKind(results)
	if err != nil {
		return nil, err
	}

	usage := byKind[model.KindUsage]
	location := byKind[model.KindLocation]
	billing := byKind[model.KindBilling]

	overall := clampScore(
		kindWeights[model.KindUsage]*usage.RiskScore +
			kindWeights[model.KindLocation]*location.RiskScore +
			kindWeights[model.KindBilling]*billing.RiskScore,
	)

	assessment := &model.RiskAssessment{
		AlertID:           alert.AlertID,
		CustomerID:        alert.CustomerID,
		OverallRiskScore:  overall,
		RiskLevel:         classifyRisk(overall),
		RecommendedAction: recommendAction(overall),
		UsageFindings:     usage.Findings,
		LocationFindings:  location.Findings,
		BillingFindings:   billing.Findings,
		StepDetails:       buildStepDetails(byKind),
	}
	assessment.Reasoning = a.reasoning(ctx, alert, assessment)

	score := overall
	assessment.StepDetails[StepAggregator] = model.StepDetail{
		Status:    "completed",
		RiskScore: &score,
		ToolCalls: []model.ToolCall{},
		Output:    truncate(assessment.Reasoning, findingsLimit),
	}

	a.logger.Info("risk aggregated",
		"alert_id", alert.AlertID,
		"overall_risk_score", overall,
		"risk_level", assessment.RiskLevel,
		"recommended_action", assessment.RecommendedAction,
	)
	return assessment, nil
}

// indexByKind enforces the fan-in contract: exactly one result per kind.
func indexByKind(results []model.SpecialistResult) (map[model.SpecialistKind]model.SpecialistResult, error) {
	byKind := make(map[model.SpecialistKind]model.SpecialistResult, len(results))
	var duplicates []string
	for _, r := range results {
		if _, seen := byKind[r.Kind]; seen {
			duplicates = append(duplicates, string(r.Kind))
			continue
		}
		byKind[r.Kind] = r
	}

	var missing []string
	for kind := range kindWeights {
		if _, ok := byKind[kind]; !ok {
			missing = append(missing, string(kind))
		}
	}
	sort.Strings(missing)
	sort.Strings(duplicates)

	if len(missing) > 0 || len(duplicates) > 0 {
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "missing: "+strings.Join(missing, ", "))
		}
		if len(duplicates) > 0 {
			parts = append(parts, "duplicate: "+strings.Join(duplicates, ", "))
		}
		return nil, &ValidationError{Msg: "incomplete specialist results (" + strings.Join(parts, "; ") + ")"}
	}
	return byKind, nil
}

func classifyRisk(score float64) model.RiskLevel {
	switch {
	case score >= 0.8:
		return model.RiskCritical
	case score >= 0.6:
		return model.RiskHigh
	case score >= 0.4:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// recommendAction applies the automatic rule. Refunds are never recommended
// automatically; they only originate from an analyst decision.
func recommendAction(score float64) string {
	if score >= HighRiskThreshold {
		return model.ActionLockAccount
	}
	return model.ActionClear
}

func buildStepDetails(byKind map[model.SpecialistKind]model.SpecialistResult) map[string]model.StepDetail {
	details := make(map[string]model.StepDetail, len(byKind)+1)
	for kind, r := range byKind {
		score := r.RiskScore
		toolCalls := r.ToolCalls
		if toolCalls == nil {
			toolCalls = []model.ToolCall{}
		}
		details[stepKeys[kind]] = model.StepDetail{
			Status:    "completed",
			RiskScore: &score,
			ToolCalls: toolCalls,
			Output:    truncate(r.Findings, findingsLimit),
		}
	}
	return details
}

// reasoning asks the LLM for a synthesis of the three findings. The text is
// advisory; on any failure it degrades to a deterministic summary so the
// assessment never fails on the narrative.
func (a *Aggregator) reasoning(ctx context.Context, alert model.Alert, assessment *model.RiskAssessment) string {
	prompt := fmt.Sprintf(
		"Summarize this fraud review for a human analyst in a short paragraph.\n"+
			"Alert: %s (%s, severity %s) for customer %d.\n"+
			"Usage findings: %s\nLocation findings: %s\nBilling findings: %s\n"+
			"Overall risk score: %.2f (%s). Recommended action: %s.",
		alert.AlertID, alert.AlertType, alert.Severity, alert.CustomerID,
		assessment.UsageFindings, assessment.LocationFindings, assessment.BillingFindings,
		assessment.OverallRiskScore, assessment.RiskLevel, assessment.RecommendedAction,
	)

	resp, err := a.llm.ChatCompletion(ctx, litellm.ChatRequest{
		Model: a.model,
		Messages: []litellm.Message{
			{Role: "system", Content: "You are a senior fraud analyst writing case summaries."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		a.logger.Warn("reasoning synthesis failed, using deterministic summary", "error", err)
		return fmt.Sprintf("Overall risk score %.2f (%s); recommended action: %s.",
			assessment.OverallRiskScore, assessment.RiskLevel, assessment.RecommendedAction)
	}
	return resp.Choices[0].Message.Content
}
