// Package activities implements the durable units of work invoked by the
// fraud review workflow.
package activities

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"fraudwatch/internal/adapter/otel"
	"fraudwatch/internal/analysis"
	"fraudwatch/internal/model"
)

// ValidationErrorType tags non-retryable input failures on the activity
// boundary so the workflow's retry policy skips them.
const ValidationErrorType = "ValidationError"

// Activities bundles the dependencies the worker registers with Temporal.
type Activities struct {
	pipeline   *analysis.Pipeline
	aggregator *analysis.Aggregator
	metrics    *otel.Metrics
	logger     *slog.Logger
}

// New creates the activity set.
func New(pipeline *analysis.Pipeline, aggregator *analysis.Aggregator, metrics *otel.Metrics, logger *slog.Logger) *Activities {
	return &Activities{
		pipeline:   pipeline,
		aggregator: aggregator,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunFraudAnalysis fans the alert out to the three specialists and aggregates
// their results. The fan-out and fan-in execute as one durable unit: the
// workflow receives either a complete RiskAssessment or a failure, never a
// partially-averaged score.
func (a *Activities) RunFraudAnalysis(ctx context.Context, alert model.Alert) (*model.RiskAssessment, error) {
	if a.metrics != nil {
		a.metrics.ReviewsStarted.Add(ctx, 1)
	}

	if err := alert.Validate(); err != nil {
		a.recordFailure(ctx)
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), ValidationErrorType, err)
	}

	results, err := a.pipeline.Run(ctx, alert)
	if err != nil {
		a.recordFailure(ctx)
		return nil, fmt.Errorf("specialist pipeline: %w", err)
	}

	assessment, err := a.aggregator.Aggregate(ctx, alert, results)
	if err != nil {
		a.recordFailure(ctx)
		var verr *analysis.ValidationError
		if errors.As(err, &verr) {
			return nil, temporal.NewNonRetryableApplicationError(verr.Error(), ValidationErrorType, err)
		}
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RiskScore.Record(ctx, assessment.OverallRiskScore)
	}
	return assessment, nil
}

func (a *Activities) recordFailure(ctx context.Context) {
	if a.metrics != nil {
		a.metrics.ReviewsFailed.Add(ctx, 1)
	}
}

// NotifyAnalyst emits the analyst notification for a high-risk assessment and
// returns the message shown while the review awaits a decision.
func (a *Activities) NotifyAnalyst(ctx context.Context, assessment model.RiskAssessment) (string, error) {
	msg := fmt.Sprintf("Awaiting analyst decision for alert %s (risk %.2f, %s): recommended %s",
		assessment.AlertID, assessment.OverallRiskScore, assessment.RiskLevel, assessment.RecommendedAction)

	a.logger.Info("analyst notified",
		"alert_id", assessment.AlertID,
		"risk_score", assessment.OverallRiskScore,
		"recommended_action", assessment.RecommendedAction,
	)
	return msg, nil
}

// ExecuteFraudAction carries out the analyst-approved action.
func (a *Activities) ExecuteFraudAction(ctx context.Context, alert model.Alert, decision model.AnalystDecision) (*model.ActionResult, error) {
	if !model.KnownAction(decision.ApprovedAction) {
		return nil, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown approved action %q", decision.ApprovedAction), ValidationErrorType, nil)
	}

	_, span := otel.StartActionSpan(ctx, alert.AlertID, decision.ApprovedAction)
	defer span.End()

	var details string
	switch decision.ApprovedAction {
	case model.ActionLockAccount:
		details = fmt.Sprintf("account %d locked per analyst %s", alert.CustomerID, decision.AnalystID)
	case model.ActionRefundCharges:
		details = fmt.Sprintf("disputed charges refunded for customer %d per analyst %s", alert.CustomerID, decision.AnalystID)
	case model.ActionBoth:
		details = fmt.Sprintf("account %d locked and disputed charges refunded per analyst %s", alert.CustomerID, decision.AnalystID)
	case model.ActionClear:
		details = fmt.Sprintf("alert %s cleared by analyst %s", alert.AlertID, decision.AnalystID)
	}
	if decision.AnalystNotes != "" {
		details += "; notes: " + decision.AnalystNotes
	}

	a.logger.Info("fraud action executed",
		"alert_id", alert.AlertID,
		"action", decision.ApprovedAction,
		"analyst_id", decision.AnalystID,
	)
	return &model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: decision.ApprovedAction,
		Success:     true,
		Details:     details,
	}, nil
}

// AutoClearAlert clears a low-risk alert without human involvement.
func (a *Activities) AutoClearAlert(ctx context.Context, alert model.Alert, assessment model.RiskAssessment) (*model.ActionResult, error) {
	_, span := otel.StartActionSpan(ctx, alert.AlertID, model.ActionAutoClear)
	defer span.End()

	a.logger.Info("alert auto-cleared",
		"alert_id", alert.AlertID,
		"risk_score", assessment.OverallRiskScore,
	)
	return &model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: model.ActionAutoClear,
		Success:     true,
		Details:     fmt.Sprintf("risk score %.2f below review threshold; alert cleared automatically", assessment.OverallRiskScore),
	}, nil
}

// EscalateTimeout hands the review to a fraud manager after the analyst
// decision window elapsed. Not an error path; a first-class outcome.
func (a *Activities) EscalateTimeout(ctx context.Context, alert model.Alert, assessment model.RiskAssessment) (*model.ActionResult, error) {
	_, span := otel.StartActionSpan(ctx, alert.AlertID, model.ActionEscalateTimeout)
	defer span.End()

	a.logger.Warn("review escalated on timeout",
		"alert_id", alert.AlertID,
		"risk_score", assessment.OverallRiskScore,
	)
	return &model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: model.ActionEscalateTimeout,
		Success:     true,
		Details:     fmt.Sprintf("no analyst decision within window; escalated to fraud manager (risk %.2f)", assessment.OverallRiskScore),
	}, nil
}

// SendNotification delivers the final outcome notification. Runs for every
// completed review regardless of branch.
func (a *Activities) SendNotification(ctx context.Context, result model.ActionResult) (string, error) {
	msg := fmt.Sprintf("Fraud review for alert %s finished: %s (success=%t)",
		result.AlertID, result.ActionTaken, result.Success)

	if a.metrics != nil {
		a.metrics.ReviewsCompleted.Add(ctx, 1)
	}

	a.logger.Info("final notification sent",
		"alert_id", result.AlertID,
		"action_taken", result.ActionTaken,
		"success", result.Success,
	)
	return msg, nil
}
