// Package workflows contains the durable fraud review orchestration.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"fraudwatch/internal/analysis"
	"fraudwatch/internal/model"
)

const TaskQueue = "FRAUD_REVIEW_TASK_QUEUE"

// AnalystDecisionSignal is the well-known event name a human decision is
// delivered under, scoped to one running review instance.
const AnalystDecisionSignal = "AnalystDecision"

// ReviewInput is the workflow argument.
type ReviewInput struct {
	Alert                model.Alert `json:"alert"`
	ApprovalTimeoutHours float64     `json:"approval_timeout_hours"`
}

// DefaultApprovalTimeoutHours applies when the input leaves the window unset.
const DefaultApprovalTimeoutHours = 72

type reviewState struct {
	Progress      model.Progress         `json:"progress"`
	Assessment    *model.RiskAssessment  `json:"assessment,omitempty"`
	PendingReview bool                   `json:"pending_review"`
	Decision      *model.AnalystDecision `json:"decision,omitempty"`
}

// FraudReview orchestrates one alert: analysis fan-out/fan-in, the high-risk
// human-decision-versus-timeout race, the chosen action, and the final
// notification. Every branch value comes from the input or a completed
// activity result, never from an inline clock or random draw, so replay
// after a crash reproduces identical decisions.
func FraudReview(ctx workflow.Context, input ReviewInput) (*model.ReviewResult, error) {
	logger := workflow.GetLogger(ctx)
	alert := input.Alert
	logger.Info("fraud review started", "alertID", alert.AlertID, "customerID", alert.CustomerID)

	state := &reviewState{
		Progress: model.Progress{
			Message:     "Starting fraud analysis",
			StepDetails: map[string]model.StepDetail{},
		},
	}

	publish := func(message string, riskScore *float64) {
		state.Progress.Message = message
		if riskScore != nil {
			state.Progress.RiskScore = riskScore
		}
	}

	// Queries let the API and status reporter read live progress without a
	// side database.
	_ = workflow.SetQueryHandler(ctx, "progress", func() (model.Progress, error) {
		return state.Progress, nil
	})
	_ = workflow.SetQueryHandler(ctx, "assessment", func() (*model.RiskAssessment, error) {
		return state.Assessment, nil
	})
	_ = workflow.SetQueryHandler(ctx, "pending_review", func() (bool, error) {
		return state.PendingReview, nil
	})

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"ValidationError"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// ANALYZING: the fan-out and fan-in run as one durable unit.
	var assessment model.RiskAssessment
	if err := workflow.ExecuteActivity(ctx, "RunFraudAnalysis", alert).Get(ctx, &assessment); err != nil {
		logger.Error("fraud analysis failed", "alertID", alert.AlertID, "error", err)
		publish("Fraud analysis failed: "+err.Error(), nil)
		return nil, err
	}
	state.Assessment = &assessment
	mergeStepDetails(state.Progress.StepDetails, assessment.StepDetails)
	score := assessment.OverallRiskScore
	publish("Risk assessment complete", &score)

	var action model.ActionResult
	if assessment.OverallRiskScore >= analysis.HighRiskThreshold {
		result, err := awaitAnalyst(ctx, state, alert, assessment, approvalTimeout(input))
		if err != nil {
			return nil, err
		}
		action = *result
	} else {
		// AUTO_CLEARING: low risk never waits for a human.
		publish("Risk below review threshold, clearing automatically", &score)
		if err := workflow.ExecuteActivity(ctx, "AutoClearAlert", alert, assessment).Get(ctx, &action); err != nil {
			return nil, err
		}
		recordStep(state, "auto_clear_executor", action.Details, &score)
	}

	// NOTIFYING: always runs, regardless of branch.
	var finalMsg string
	if err := workflow.ExecuteActivity(ctx, "SendNotification", action).Get(ctx, &finalMsg); err != nil {
		return nil, err
	}
	recordStep(state, "final_notification_executor", finalMsg, nil)
	publish("Review completed: "+action.ActionTaken, &score)

	logger.Info("fraud review completed",
		"alertID", alert.AlertID,
		"actionTaken", action.ActionTaken,
		"riskScore", assessment.OverallRiskScore,
	)
	return &model.ReviewResult{
		AlertID:     alert.AlertID,
		Status:      "completed",
		RiskScore:   assessment.OverallRiskScore,
		ActionTaken: action.ActionTaken,
		Success:     action.Success,
		StepDetails: state.Progress.StepDetails,
	}, nil
}

// awaitAnalyst runs the AWAITING_ANALYST state: notify, then race the
// decision signal against the approval timer. First to complete wins; the
// loser is abandoned, so a decision arriving after the timer fired is ignored
// because the orchestration has already advanced past the wait point.
func awaitAnalyst(ctx workflow.Context, state *reviewState, alert model.Alert, assessment model.RiskAssessment, timeout time.Duration) (*model.ActionResult, error) {
	logger := workflow.GetLogger(ctx)
	score := assessment.OverallRiskScore

	var notifyMsg string
	if err := workflow.ExecuteActivity(ctx, "NotifyAnalyst", assessment).Get(ctx, &notifyMsg); err != nil {
		return nil, err
	}
	recordStep(state, "review_gateway", notifyMsg, &score)
	state.Progress.Message = notifyMsg
	state.Progress.RiskScore = &score
	state.PendingReview = true

	var payload model.DecisionPayload
	decided := false

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, timeout)

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(workflow.GetSignalChannel(ctx, AnalystDecisionSignal), func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, &payload)
		decided = true
	})
	selector.AddFuture(timer, func(f workflow.Future) {})

	selector.Select(ctx)
	state.PendingReview = false
	cancelTimer()

	var action model.ActionResult
	if decided {
		decision := payload.Normalize(alert.AlertID)
		state.Decision = &decision
		logger.Info("analyst decision received",
			"alertID", alert.AlertID,
			"approvedAction", decision.ApprovedAction,
			"analystID", decision.AnalystID,
		)
		state.Progress.Message = "Executing approved action: " + decision.ApprovedAction
		if err := workflow.ExecuteActivity(ctx, "ExecuteFraudAction", alert, decision).Get(ctx, &action); err != nil {
			return nil, err
		}
		recordStep(state, "fraud_action_executor", action.Details, &score)
		return &action, nil
	}

	logger.Info("analyst decision window elapsed", "alertID", alert.AlertID)
	state.Progress.Message = "No analyst decision in time, escalating"
	if err := workflow.ExecuteActivity(ctx, "EscalateTimeout", alert, assessment).Get(ctx, &action); err != nil {
		return nil, err
	}
	recordStep(state, "fraud_action_executor", action.Details, &score)
	return &action, nil
}

// approvalTimeout converts the configured window into a timer duration,
// defaulting when unset.
func approvalTimeout(input ReviewInput) time.Duration {
	hours := input.ApprovalTimeoutHours
	if hours <= 0 {
		hours = DefaultApprovalTimeoutHours
	}
	return time.Duration(hours * float64(time.Hour))
}

func recordStep(state *reviewState, key, output string, riskScore *float64) {
	state.Progress.StepDetails[key] = model.StepDetail{
		Status:    "completed",
		RiskScore: riskScore,
		ToolCalls: []model.ToolCall{},
		Output:    output,
	}
}

func mergeStepDetails(dst, src map[string]model.StepDetail) {
	for k, v := range src {
		dst[k] = v
	}
}
