package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudwatch/internal/adapter/litellm"
	"fraudwatch/internal/model"
)

func newTestAggregator(llm ChatClient) *Aggregator {
	return NewAggregator(llm, "test-model", slog.New(slog.DiscardHandler))
}

func resultsWithScores(usage, location, billing float64) []model.SpecialistResult {
	return []model.SpecialistResult{
		{Kind: model.KindUsage, AlertID: "ALERT-001", RiskScore: usage, Findings: "usage findings"},
		{Kind: model.KindLocation, AlertID: "ALERT-001", RiskScore: location, Findings: "location findings"},
		{Kind: model.KindBilling, AlertID: "ALERT-001", RiskScore: billing, Findings: "billing findings"},
	}
}

func reasoningLLM() *fakeLLM {
	return &fakeLLM{responses: []litellm.ChatResponse{
		textResponse("Synthesis for the analyst."),
	}}
}

func TestAggregateWeightedScore(t *testing.T) {
	cases := []struct {
		name                     string
		usage, location, billing float64
		want                     float64
		level                    model.RiskLevel
		action                   string
	}{
		{"critical alert", 0.9, 0.95, 0.85, 0.905, model.RiskCritical, model.ActionLockAccount},
		{"all low fallbacks", 0.3, 0.3, 0.2, 0.27, model.RiskLow, model.ActionClear},
		{"uniform mid", 0.5, 0.5, 0.5, 0.5, model.RiskMedium, model.ActionClear},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := newTestAggregator(reasoningLLM())
			a, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
				resultsWithScores(tc.usage, tc.location, tc.billing))
			require.NoError(t, err)
			assert.InDelta(t, tc.want, a.OverallRiskScore, 1e-9)
			assert.Equal(t, tc.level, a.RiskLevel)
			assert.Equal(t, tc.action, a.RecommendedAction)
		})
	}
}

func TestAggregateActionBoundary(t *testing.T) {
	// Identical scores across kinds make overall equal to that score.
	agg := newTestAggregator(reasoningLLM())
	a, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
		resultsWithScores(0.59, 0.59, 0.59))
	require.NoError(t, err)
	assert.Equal(t, model.ActionClear, a.RecommendedAction)

	agg = newTestAggregator(reasoningLLM())
	a, err = agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
		resultsWithScores(0.60, 0.60, 0.60))
	require.NoError(t, err)
	assert.Equal(t, model.ActionLockAccount, a.RecommendedAction)
}

func TestAggregateRiskLevelBoundary(t *testing.T) {
	agg := newTestAggregator(reasoningLLM())
	a, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
		resultsWithScores(0.75, 0.75, 0.75))
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, a.RiskLevel)

	agg = newTestAggregator(reasoningLLM())
	a, err = agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
		resultsWithScores(0.80, 0.80, 0.80))
	require.NoError(t, err)
	assert.Equal(t, model.RiskCritical, a.RiskLevel)
}

func TestAggregateRejectsMissingKind(t *testing.T) {
	agg := newTestAggregator(reasoningLLM())
	results := []model.SpecialistResult{
		{Kind: model.KindUsage, RiskScore: 0.5},
		{Kind: model.KindLocation, RiskScore: 0.5},
	}
	_, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh), results)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "missing: billing")
}

func TestAggregateRejectsDuplicateKind(t *testing.T) {
	agg := newTestAggregator(reasoningLLM())
	results := []model.SpecialistResult{
		{Kind: model.KindUsage, RiskScore: 0.5},
		{Kind: model.KindUsage, RiskScore: 0.6},
		{Kind: model.KindLocation, RiskScore: 0.5},
	}
	_, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh), results)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "duplicate: usage")
	assert.Contains(t, verr.Error(), "missing: billing")
}

func TestAggregateStepDetails(t *testing.T) {
	results := resultsWithScores(0.9, 0.95, 0.85)
	results[0].Findings = strings.Repeat("u", 400)
	results[0].ToolCalls = []model.ToolCall{{Name: "get_data_usage", Result: "{}"}}

	agg := newTestAggregator(reasoningLLM())
	a, err := agg.Aggregate(context.Background(), testAlert(model.SeverityCritical), results)
	require.NoError(t, err)

	for _, key := range []string{StepUsage, StepLocation, StepBilling, StepAggregator} {
		detail, ok := a.StepDetails[key]
		require.True(t, ok, "missing step %s", key)
		assert.Equal(t, "completed", detail.Status)
		require.NotNil(t, detail.RiskScore)
	}

	usage := a.StepDetails[StepUsage]
	assert.Len(t, usage.Output, findingsLimit)
	assert.Equal(t, 0.9, *usage.RiskScore)
	require.Len(t, usage.ToolCalls, 1)

	aggStep := a.StepDetails[StepAggregator]
	assert.InDelta(t, 0.905, *aggStep.RiskScore, 1e-9)
}

func TestAggregateReasoningDegradesOnLLMFailure(t *testing.T) {
	agg := newTestAggregator(&fakeLLM{err: errors.New("proxy down")})
	a, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
		resultsWithScores(0.9, 0.95, 0.85))
	require.NoError(t, err)

	// Advisory text degrades; the arithmetic decision stands.
	assert.Contains(t, a.Reasoning, "Overall risk score")
	assert.Contains(t, a.Reasoning, model.ActionLockAccount)
	assert.Equal(t, model.ActionLockAccount, a.RecommendedAction)
}

func TestAggregateReasoningFromLLM(t *testing.T) {
	agg := newTestAggregator(reasoningLLM())
	a, err := agg.Aggregate(context.Background(), testAlert(model.SeverityHigh),
		resultsWithScores(0.2, 0.2, 0.2))
	require.NoError(t, err)
	assert.Equal(t, "Synthesis for the analyst.", a.Reasoning)
}
