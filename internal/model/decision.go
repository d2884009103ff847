package model

import "encoding/json"

// AnalystDecision is the human decision delivered to a waiting review run.
type AnalystDecision struct {
	AlertID        string `json:"alert_id"`
	ApprovedAction string `json:"approved_action"`
	AnalystNotes   string `json:"analyst_notes"`
	AnalystID      string `json:"analyst_id"`
}

// KnownAction reports whether action is one of the four approvable actions.
func KnownAction(action string) bool {
	switch action {
	case ActionClear, ActionLockAccount, ActionRefundCharges, ActionBoth:
		return true
	}
	return false
}

// DecisionPayload is the wire form of an analyst decision. Clients may send
// either a structured decision object or a bare string naming the approved
// action; both normalize into an AnalystDecision at the gateway boundary.
type DecisionPayload struct {
	AlertID        string `json:"alert_id"`
	ApprovedAction string `json:"approved_action"`
	AnalystNotes   string `json:"analyst_notes"`
	AnalystID      string `json:"analyst_id"`
}

// UnmarshalJSON accepts both an object payload and a bare action string.
func (p *DecisionPayload) UnmarshalJSON(data []byte) error {
	var action string
	if err := json.Unmarshal(data, &action); err == nil {
		*p = DecisionPayload{ApprovedAction: action, AnalystID: "unknown"}
		return nil
	}
	type plain DecisionPayload
	var obj plain
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*p = DecisionPayload(obj)
	return nil
}

// Normalize converts the payload into a canonical AnalystDecision for the
// given alert, filling defaults for fields a bare-string payload cannot carry.
func (p DecisionPayload) Normalize(alertID string) AnalystDecision {
	d := AnalystDecision{
		AlertID:        p.AlertID,
		ApprovedAction: p.ApprovedAction,
		AnalystNotes:   p.AnalystNotes,
		AnalystID:      p.AnalystID,
	}
	if d.AlertID == "" {
		d.AlertID = alertID
	}
	if d.AnalystID == "" {
		d.AnalystID = "unknown"
	}
	return d
}

// ActionResult is the terminal artifact of one review run's action step.
type ActionResult struct {
	AlertID     string `json:"alert_id"`
	ActionTaken string `json:"action_taken"`
	Success     bool   `json:"success"`
	Details     string `json:"details"`
}

// ReviewResult is what a completed review orchestration returns.
type ReviewResult struct {
	AlertID     string                `json:"alert_id"`
	Status      string                `json:"status"`
	RiskScore   float64               `json:"risk_score"`
	ActionTaken string                `json:"action_taken"`
	Success     bool                  `json:"success"`
	StepDetails map[string]StepDetail `json:"step_details"`
}
