package workflows_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"fraudwatch/internal/activities"
	"fraudwatch/internal/model"
	"fraudwatch/internal/workflows"
)

func newEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *activities.Activities) {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(workflows.FraudReview)

	a := activities.New(nil, nil, nil, slog.New(slog.DiscardHandler))
	env.RegisterActivity(a.RunFraudAnalysis)
	env.RegisterActivity(a.NotifyAnalyst)
	env.RegisterActivity(a.ExecuteFraudAction)
	env.RegisterActivity(a.AutoClearAlert)
	env.RegisterActivity(a.EscalateTimeout)
	env.RegisterActivity(a.SendNotification)
	return env, a
}

func highRiskAssessment(alert model.Alert) model.RiskAssessment {
	score := 0.905
	return model.RiskAssessment{
		AlertID:           alert.AlertID,
		CustomerID:        alert.CustomerID,
		OverallRiskScore:  score,
		RiskLevel:         model.RiskCritical,
		RecommendedAction: model.ActionLockAccount,
		StepDetails: map[string]model.StepDetail{
			"fraud_risk_aggregator": {Status: "completed", RiskScore: &score},
		},
	}
}

func lowRiskAssessment(alert model.Alert) model.RiskAssessment {
	score := 0.27
	return model.RiskAssessment{
		AlertID:           alert.AlertID,
		CustomerID:        alert.CustomerID,
		OverallRiskScore:  score,
		RiskLevel:         model.RiskLow,
		RecommendedAction: model.ActionClear,
		StepDetails:       map[string]model.StepDetail{},
	}
}

func reviewAlert() model.Alert {
	return model.Alert{
		AlertID:     "ALERT-001",
		CustomerID:  102,
		AlertType:   "unusual_roaming",
		Description: "Roaming data spike abroad",
		Timestamp:   "2026-08-22T03:00:00Z",
		Severity:    model.SeverityCritical,
	}
}

func TestDecisionBeatsTimer(t *testing.T) {
	env, a := newEnv(t)
	alert := reviewAlert()
	assessment := highRiskAssessment(alert)

	env.OnActivity(a.RunFraudAnalysis, mock.Anything, alert).Return(&assessment, nil)
	env.OnActivity(a.NotifyAnalyst, mock.Anything, assessment).Return("Awaiting analyst decision for alert ALERT-001", nil)
	env.OnActivity(a.ExecuteFraudAction, mock.Anything, alert, mock.Anything).Return(&model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: model.ActionLockAccount,
		Success:     true,
	}, nil)
	env.OnActivity(a.SendNotification, mock.Anything, mock.Anything).Return("done", nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(workflows.AnalystDecisionSignal, model.DecisionPayload{
			AlertID:        alert.AlertID,
			ApprovedAction: model.ActionLockAccount,
			AnalystID:      "analyst-7",
		})
	}, time.Hour)

	env.ExecuteWorkflow(workflows.FraudReview, workflows.ReviewInput{Alert: alert})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, model.ActionLockAccount, result.ActionTaken)
	assert.True(t, result.Success)
	assert.InDelta(t, 0.905, result.RiskScore, 1e-9)

	env.AssertNotCalled(t, "EscalateTimeout", mock.Anything, mock.Anything, mock.Anything)
	env.AssertNotCalled(t, "AutoClearAlert", mock.Anything, mock.Anything, mock.Anything)
}

func TestTimerBeatsDecision(t *testing.T) {
	env, a := newEnv(t)
	alert := reviewAlert()
	assessment := highRiskAssessment(alert)

	env.OnActivity(a.RunFraudAnalysis, mock.Anything, alert).Return(&assessment, nil)
	env.OnActivity(a.NotifyAnalyst, mock.Anything, assessment).Return("Awaiting analyst decision for alert ALERT-001", nil)
	env.OnActivity(a.EscalateTimeout, mock.Anything, alert, assessment).Return(&model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: model.ActionEscalateTimeout,
		Success:     true,
	}, nil)
	env.OnActivity(a.SendNotification, mock.Anything, mock.Anything).Return("done", nil)

	env.ExecuteWorkflow(workflows.FraudReview, workflows.ReviewInput{
		Alert:                alert,
		ApprovalTimeoutHours: 2,
	})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.ActionEscalateTimeout, result.ActionTaken)

	env.AssertNotCalled(t, "ExecuteFraudAction", mock.Anything, mock.Anything, mock.Anything)
}

func TestLowRiskAutoClears(t *testing.T) {
	env, a := newEnv(t)
	alert := reviewAlert()
	assessment := lowRiskAssessment(alert)

	env.OnActivity(a.RunFraudAnalysis, mock.Anything, alert).Return(&assessment, nil)
	env.OnActivity(a.AutoClearAlert, mock.Anything, alert, assessment).Return(&model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: model.ActionAutoClear,
		Success:     true,
	}, nil)
	env.OnActivity(a.SendNotification, mock.Anything, mock.Anything).Return("done", nil)

	env.ExecuteWorkflow(workflows.FraudReview, workflows.ReviewInput{Alert: alert})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result model.ReviewResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, model.ActionAutoClear, result.ActionTaken)

	env.AssertNotCalled(t, "NotifyAnalyst", mock.Anything, mock.Anything)
}

func TestBareStringDecisionPayload(t *testing.T) {
	env, a := newEnv(t)
	alert := reviewAlert()
	assessment := highRiskAssessment(alert)

	var executed model.AnalystDecision
	env.OnActivity(a.RunFraudAnalysis, mock.Anything, alert).Return(&assessment, nil)
	env.OnActivity(a.NotifyAnalyst, mock.Anything, assessment).Return("Awaiting analyst decision", nil)
	env.OnActivity(a.ExecuteFraudAction, mock.Anything, alert, mock.Anything).
		Run(func(args mock.Arguments) {
			executed = args.Get(2).(model.AnalystDecision)
		}).
		Return(&model.ActionResult{AlertID: alert.AlertID, ActionTaken: model.ActionRefundCharges, Success: true}, nil)
	env.OnActivity(a.SendNotification, mock.Anything, mock.Anything).Return("done", nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(workflows.AnalystDecisionSignal, "refund_charges")
	}, time.Minute)

	env.ExecuteWorkflow(workflows.FraudReview, workflows.ReviewInput{Alert: alert})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	assert.Equal(t, model.ActionRefundCharges, executed.ApprovedAction)
	assert.Equal(t, "unknown", executed.AnalystID)
	assert.Equal(t, alert.AlertID, executed.AlertID)
}

func TestAnalysisFailureFailsRun(t *testing.T) {
	env, a := newEnv(t)
	alert := reviewAlert()

	env.OnActivity(a.RunFraudAnalysis, mock.Anything, alert).Return(nil,
		temporal.NewNonRetryableApplicationError("customer_id must be a positive integer", "ValidationError", errors.New("bad alert")))

	env.ExecuteWorkflow(workflows.FraudReview, workflows.ReviewInput{Alert: alert})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "customer_id")

	env.AssertNotCalled(t, "SendNotification", mock.Anything, mock.Anything)
}

func TestPendingReviewQuery(t *testing.T) {
	env, a := newEnv(t)
	alert := reviewAlert()
	assessment := highRiskAssessment(alert)

	env.OnActivity(a.RunFraudAnalysis, mock.Anything, alert).Return(&assessment, nil)
	env.OnActivity(a.NotifyAnalyst, mock.Anything, assessment).Return("Awaiting analyst decision for alert ALERT-001", nil)
	env.OnActivity(a.ExecuteFraudAction, mock.Anything, alert, mock.Anything).Return(&model.ActionResult{
		AlertID:     alert.AlertID,
		ActionTaken: model.ActionLockAccount,
		Success:     true,
	}, nil)
	env.OnActivity(a.SendNotification, mock.Anything, mock.Anything).Return("done", nil)

	env.RegisterDelayedCallback(func() {
		v, err := env.QueryWorkflow("pending_review")
		require.NoError(t, err)
		var pending bool
		require.NoError(t, v.Get(&pending))
		assert.True(t, pending)

		p, err := env.QueryWorkflow("progress")
		require.NoError(t, err)
		var progress model.Progress
		require.NoError(t, p.Get(&progress))
		assert.Contains(t, progress.Message, "Awaiting analyst")
		require.NotNil(t, progress.RiskScore)

		env.SignalWorkflow(workflows.AnalystDecisionSignal, model.DecisionPayload{
			ApprovedAction: model.ActionLockAccount,
			AnalystID:      "analyst-7",
		})
	}, time.Minute)

	env.ExecuteWorkflow(workflows.FraudReview, workflows.ReviewInput{Alert: alert})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
}
