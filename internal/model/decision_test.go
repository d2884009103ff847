package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionPayloadObject(t *testing.T) {
	var p DecisionPayload
	err := json.Unmarshal([]byte(`{"alert_id":"ALERT-001","approved_action":"lock_account","analyst_notes":"confirmed","analyst_id":"analyst-7"}`), &p)
	require.NoError(t, err)
	assert.Equal(t, "ALERT-001", p.AlertID)
	assert.Equal(t, ActionLockAccount, p.ApprovedAction)
	assert.Equal(t, "confirmed", p.AnalystNotes)
	assert.Equal(t, "analyst-7", p.AnalystID)
}

func TestDecisionPayloadBareString(t *testing.T) {
	var p DecisionPayload
	err := json.Unmarshal([]byte(`"refund_charges"`), &p)
	require.NoError(t, err)
	assert.Equal(t, ActionRefundCharges, p.ApprovedAction)
	assert.Equal(t, "unknown", p.AnalystID)
	assert.Empty(t, p.AlertID)
}

func TestDecisionPayloadInvalid(t *testing.T) {
	var p DecisionPayload
	err := json.Unmarshal([]byte(`[1,2,3]`), &p)
	require.Error(t, err)
}

func TestDecisionPayloadNormalize(t *testing.T) {
	p := DecisionPayload{ApprovedAction: ActionBoth}
	d := p.Normalize("ALERT-009")
	assert.Equal(t, "ALERT-009", d.AlertID)
	assert.Equal(t, ActionBoth, d.ApprovedAction)
	assert.Equal(t, "unknown", d.AnalystID)

	p = DecisionPayload{AlertID: "ALERT-001", ApprovedAction: ActionClear, AnalystID: "analyst-7"}
	d = p.Normalize("ALERT-009")
	assert.Equal(t, "ALERT-001", d.AlertID)
	assert.Equal(t, "analyst-7", d.AnalystID)
}

func TestKnownAction(t *testing.T) {
	for _, action := range []string{ActionClear, ActionLockAccount, ActionRefundCharges, ActionBoth} {
		assert.True(t, KnownAction(action), action)
	}
	assert.False(t, KnownAction("escalate_timeout"))
	assert.False(t, KnownAction(""))
}

func TestAlertValidate(t *testing.T) {
	valid := Alert{AlertID: "ALERT-001", CustomerID: 102, AlertType: "unusual_roaming", Severity: SeverityHigh}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name  string
		alert Alert
	}{
		{"missing alert_id", Alert{CustomerID: 102, AlertType: "x"}},
		{"zero customer_id", Alert{AlertID: "A", AlertType: "x"}},
		{"negative customer_id", Alert{AlertID: "A", CustomerID: -1, AlertType: "x"}},
		{"missing alert_type", Alert{AlertID: "A", CustomerID: 102}},
		{"unknown severity", Alert{AlertID: "A", CustomerID: 102, AlertType: "x", Severity: "catastrophic"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, tc.alert.Validate())
		})
	}

	// Empty severity is allowed; specialists fall back to their defaults.
	noSeverity := Alert{AlertID: "A", CustomerID: 102, AlertType: "x"}
	assert.NoError(t, noSeverity.Validate())
}
