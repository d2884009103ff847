package model

// SpecialistKind identifies one of the three fraud specialists.
type SpecialistKind string

const (
	KindUsage    SpecialistKind = "usage"
	KindLocation SpecialistKind = "location"
	KindBilling  SpecialistKind = "billing"
)

// RiskLevel is the classified band of an overall risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Recommended / approved actions. The automatic rule only ever produces
// ActionClear or ActionLockAccount; refunds require a human analyst.
const (
	ActionClear         = "clear"
	ActionLockAccount   = "lock_account"
	ActionRefundCharges = "refund_charges"
	ActionBoth          = "both"
)

// Terminal action_taken values produced without a human decision.
const (
	ActionAutoClear       = "auto_clear"
	ActionEscalateTimeout = "escalate_timeout"
)

// SpecialistResult is the output of one specialist analyzer.
// Created once, never mutated afterward.
type SpecialistResult struct {
	Kind      SpecialistKind `json:"kind"`
	AlertID   string         `json:"alert_id"`
	RiskScore float64        `json:"risk_score"`
	Findings  string         `json:"findings"`
	ToolCalls []ToolCall     `json:"tool_calls,omitempty"`
}

// StepDetail is one entry of the structured progress map rendered by the UI.
type StepDetail struct {
	Status    string     `json:"status"`
	RiskScore *float64   `json:"risk_score,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls"`
	Output    string     `json:"output"`
}

// RiskAssessment is the aggregated output of the fan-in barrier.
// Exactly one exists per review run, produced before any branching decision.
type RiskAssessment struct {
	AlertID           string                `json:"alert_id"`
	CustomerID        int                   `json:"customer_id"`
	OverallRiskScore  float64               `json:"overall_risk_score"`
	RiskLevel         RiskLevel             `json:"risk_level"`
	RecommendedAction string                `json:"recommended_action"`
	Reasoning         string                `json:"reasoning"`
	UsageFindings     string                `json:"usage_findings"`
	LocationFindings  string                `json:"location_findings"`
	BillingFindings   string                `json:"billing_findings"`
	StepDetails       map[string]StepDetail `json:"step_details"`
}

// Progress is the snapshot the orchestration publishes at every transition.
// External observers read it through the workflow's progress query.
type Progress struct {
	Message     string                `json:"message"`
	StepDetails map[string]StepDetail `json:"step_details"`
	RiskScore   *float64              `json:"risk_score"`
}
