// Package reporter streams de-duplicated status updates for running fraud
// review instances, derived from the workflow's progress query and execution
// status.
package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"fraudwatch/internal/model"
)

// Update is one status event pushed to watchers. Result is set only on the
// terminal update of a completed run; Error only on a failed one.
type Update struct {
	InstanceID       string              `json:"instance_id"`
	Status           string              `json:"status"`
	Progress         *model.Progress     `json:"progress,omitempty"`
	DecisionRequired bool                `json:"decision_required"`
	Result           *model.ReviewResult `json:"result,omitempty"`
	Error            string              `json:"error,omitempty"`
}

// Watcher polls one instance's durable status and emits an Update whenever
// the status or progress content actually changed.
type Watcher struct {
	tc       client.Client
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(tc client.Client, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = time.Second
	}
	return &Watcher{tc: tc, interval: interval, logger: logger}
}

// Watch polls instanceID until the run reaches a terminal state or ctx is
// done, invoking emit for every de-duplicated update. The terminal update
// carries the run result or failure message.
func (w *Watcher) Watch(ctx context.Context, instanceID string, emit func(Update)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var lastStatus string
	var lastProgress []byte
	var lastPending bool

	for {
		status, err := w.executionStatus(ctx, instanceID)
		if err != nil {
			return fmt.Errorf("describe %s: %w", instanceID, err)
		}

		progress, raw, err := w.queryProgress(ctx, instanceID)
		if err != nil {
			// Progress is best-effort while the run is being scheduled.
			w.logger.Debug("progress query failed", "instance_id", instanceID, "error", err)
		}

		var pending bool
		if status == "RUNNING" {
			pending = w.queryPendingReview(ctx, instanceID)
		}

		if status != lastStatus || pending != lastPending || !bytes.Equal(raw, lastProgress) {
			lastStatus = status
			lastPending = pending
			lastProgress = raw
			emit(w.buildUpdate(instanceID, status, progress, pending))
		}

		if status != "RUNNING" {
			return w.emitTerminal(ctx, instanceID, status, progress, emit)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) buildUpdate(instanceID, status string, progress *model.Progress, pending bool) Update {
	return Update{
		InstanceID:       instanceID,
		Status:           status,
		Progress:         progress,
		DecisionRequired: pending,
	}
}

// emitTerminal attaches the run result (or failure) to the final update.
func (w *Watcher) emitTerminal(ctx context.Context, instanceID, status string, progress *model.Progress, emit func(Update)) error {
	update := w.buildUpdate(instanceID, status, progress, false)

	var result model.ReviewResult
	if err := w.tc.GetWorkflow(ctx, instanceID, "").Get(ctx, &result); err != nil {
		update.Error = err.Error()
	} else {
		update.Result = &result
	}
	emit(update)
	return nil
}

func (w *Watcher) executionStatus(ctx context.Context, instanceID string) (string, error) {
	desc, err := w.tc.DescribeWorkflowExecution(ctx, instanceID, "")
	if err != nil {
		return "", err
	}
	return StatusName(desc.WorkflowExecutionInfo.GetStatus()), nil
}

// queryProgress reads the progress query and returns both the parsed snapshot
// and the raw bytes used for change detection.
func (w *Watcher) queryProgress(ctx context.Context, instanceID string) (*model.Progress, []byte, error) {
	v, err := w.tc.QueryWorkflow(ctx, instanceID, "", "progress")
	if err != nil {
		return nil, nil, err
	}
	var raw json.RawMessage
	if err := v.Get(&raw); err != nil {
		return nil, nil, err
	}
	progress, err := DecodeProgress(raw)
	if err != nil {
		return nil, raw, err
	}
	return progress, raw, nil
}

// DecodeProgress parses a progress payload, tolerating double-encoded JSON:
// if the payload decodes to a string, that string is decoded again.
func DecodeProgress(raw []byte) (*model.Progress, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var inner string
	if err := json.Unmarshal(raw, &inner); err == nil {
		raw = []byte(inner)
	}

	var progress model.Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &progress, nil
}

// queryPendingReview reads the workflow's pending_review query; false on any
// failure so a transient query error never shows a stale decision prompt.
func (w *Watcher) queryPendingReview(ctx context.Context, instanceID string) bool {
	v, err := w.tc.QueryWorkflow(ctx, instanceID, "", "pending_review")
	if err != nil {
		return false
	}
	var pending bool
	if err := v.Get(&pending); err != nil {
		return false
	}
	return pending
}

// StatusName maps an execution status to its API string form.
func StatusName(s enumspb.WorkflowExecutionStatus) string {
	switch s {
	case enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING:
		return "RUNNING"
	case enumspb.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		return "COMPLETED"
	case enumspb.WORKFLOW_EXECUTION_STATUS_FAILED:
		return "FAILED"
	case enumspb.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return "CANCELED"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TERMINATED:
		return "TERMINATED"
	case enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW:
		return "CONTINUED_AS_NEW"
	case enumspb.WORKFLOW_EXECUTION_STATUS_TIMED_OUT:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}
