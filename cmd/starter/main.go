package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"fraudwatch/internal/config"
	"fraudwatch/internal/logger"
	"fraudwatch/internal/model"
	"fraudwatch/internal/workflows"
)

// Starts a fraud review for one of the sample alerts and waits for the
// result. For demo/testing; production starts go through the API.
func main() {
	var alertID string
	var wait bool
	flag.StringVar(&alertID, "alert", "ALERT-001", "sample alert id to review")
	flag.BoolVar(&wait, "wait", true, "wait for the review result")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	alert, ok := findAlert(alertID)
	if !ok {
		log.Error("unknown sample alert", "alert_id", alertID)
		os.Exit(1)
	}

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Error("unable to create temporal client", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	opts := client.StartWorkflowOptions{
		ID:                                       fmt.Sprintf("fraud-%s-%d", alert.AlertID, time.Now().Unix()),
		TaskQueue:                                workflows.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	we, err := tc.ExecuteWorkflow(ctx, opts, workflows.FraudReview, workflows.ReviewInput{
		Alert:                alert,
		ApprovalTimeoutHours: cfg.Review.ApprovalTimeoutHours,
	})
	if err != nil {
		log.Error("unable to start review", "error", err)
		os.Exit(1)
	}
	log.Info("review started", "instance_id", we.GetID(), "run_id", we.GetRunID())

	if !wait {
		return
	}

	var result model.ReviewResult
	if err := we.Get(context.Background(), &result); err != nil {
		log.Error("review failed", "error", err)
		os.Exit(1)
	}
	log.Info("review finished",
		"alert_id", result.AlertID,
		"risk_score", result.RiskScore,
		"action_taken", result.ActionTaken,
		"success", result.Success,
	)
}

func findAlert(alertID string) (model.Alert, bool) {
	for _, a := range model.SampleAlerts() {
		if a.AlertID == alertID {
			return a, true
		}
	}
	return model.Alert{}, false
}
