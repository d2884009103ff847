package model

import "fmt"

// Severity is the monitoring system's classification of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// KnownSeverity reports whether s is one of the four defined severities.
func KnownSeverity(s Severity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Alert is a suspicious-activity alert from the monitoring system.
// Immutable once created; input to the analysis pipeline.
type Alert struct {
	AlertID     string   `json:"alert_id"`
	CustomerID  int      `json:"customer_id"`
	AlertType   string   `json:"alert_type"`
	Description string   `json:"description"`
	Timestamp   string   `json:"timestamp"`
	Severity    Severity `json:"severity"`
}

// Validate checks the fields a review run cannot proceed without.
func (a Alert) Validate() error {
	if a.AlertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if a.CustomerID <= 0 {
		return fmt.Errorf("customer_id must be a positive integer")
	}
	if a.AlertType == "" {
		return fmt.Errorf("alert_type is required")
	}
	if a.Severity != "" && !KnownSeverity(a.Severity) {
		return fmt.Errorf("unknown severity %q", a.Severity)
	}
	return nil
}

// ToolCall records one lookup-tool invocation made during an LLM turn.
// The result is truncated before it is stored; the log is append-only.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result"`
}
