package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"fraudwatch/internal/adapter/litellm"
	otelx "fraudwatch/internal/adapter/otel"
	"fraudwatch/internal/model"
)

// fakeLLM returns scripted responses in order.
type fakeLLM struct {
	responses []litellm.ChatResponse
	requests  []litellm.ChatRequest
	err       error
}

func (f *fakeLLM) ChatCompletion(_ context.Context, req litellm.ChatRequest) (*litellm.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("fakeLLM: no more responses")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return &resp, nil
}

// fakeTools serves every allowed name and records calls.
type fakeTools struct {
	results map[string]string
	err     error
	calls   []string
}

func (f *fakeTools) Definitions(allowed []string) []litellm.Tool {
	defs := make([]litellm.Tool, 0, len(allowed))
	for _, name := range allowed {
		defs = append(defs, litellm.Tool{
			Type:     "function",
			Function: litellm.FunctionDefinition{Name: name},
		})
	}
	return defs
}

func (f *fakeTools) Call(_ context.Context, name string, _ map[string]any) (string, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return "", f.err
	}
	return f.results[name], nil
}

func textResponse(content string) litellm.ChatResponse {
	return litellm.ChatResponse{
		Choices: []litellm.Choice{{
			Message:      litellm.Message{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
	}
}

func toolCallResponse(calls ...litellm.ToolCall) litellm.ChatResponse {
	return litellm.ChatResponse{
		Choices: []litellm.Choice{{
			Message:      litellm.Message{Role: "assistant", ToolCalls: calls},
			FinishReason: "tool_calls",
		}},
	}
}

func specByKind(t *testing.T, kind model.SpecialistKind) Spec {
	t.Helper()
	for _, spec := range Specs() {
		if spec.Kind == kind {
			return spec
		}
	}
	t.Fatalf("no spec for kind %s", kind)
	return Spec{}
}

func testAlert(severity model.Severity) model.Alert {
	return model.Alert{
		AlertID:     "ALERT-001",
		CustomerID:  102,
		AlertType:   "unusual_roaming",
		Description: "Sudden roaming data spike abroad",
		Timestamp:   "2026-08-22T03:00:00Z",
		Severity:    severity,
	}
}

func newTestSpecialist(t *testing.T, kind model.SpecialistKind, llm *fakeLLM, tools *fakeTools) *Specialist {
	t.Helper()
	return NewSpecialist(specByKind(t, kind), llm, tools, "test-model", nil, slog.New(slog.DiscardHandler))
}

func TestFallbackScores(t *testing.T) {
	cases := []struct {
		kind     model.SpecialistKind
		severity model.Severity
		want     float64
	}{
		{model.KindUsage, model.SeverityLow, 0.3},
		{model.KindUsage, model.SeverityMedium, 0.5},
		{model.KindUsage, model.SeverityHigh, 0.7},
		{model.KindUsage, model.SeverityCritical, 0.9},
		{model.KindLocation, model.SeverityLow, 0.3},
		{model.KindLocation, model.SeverityMedium, 0.5},
		{model.KindLocation, model.SeverityHigh, 0.8},
		{model.KindLocation, model.SeverityCritical, 0.95},
		{model.KindBilling, model.SeverityLow, 0.2},
		{model.KindBilling, model.SeverityMedium, 0.4},
		{model.KindBilling, model.SeverityHigh, 0.6},
		{model.KindBilling, model.SeverityCritical, 0.85},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind)+"/"+string(tc.severity), func(t *testing.T) {
			llm := &fakeLLM{responses: []litellm.ChatResponse{
				textResponse("no parsable score line here"),
			}}
			s := NewSpecialist(specByKind(t, tc.kind), llm, &fakeTools{}, "m", nil, slog.New(slog.DiscardHandler))

			result, err := s.Analyze(context.Background(), testAlert(tc.severity))
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.RiskScore)
		})
	}
}

func TestFallbackDefaultForUnknownSeverity(t *testing.T) {
	defaults := map[model.SpecialistKind]float64{
		model.KindUsage:    0.5,
		model.KindLocation: 0.6,
		model.KindBilling:  0.4,
	}
	for kind, want := range defaults {
		llm := &fakeLLM{responses: []litellm.ChatResponse{textResponse("nothing useful")}}
		s := NewSpecialist(specByKind(t, kind), llm, &fakeTools{}, "m", nil, slog.New(slog.DiscardHandler))

		result, err := s.Analyze(context.Background(), testAlert(""))
		require.NoError(t, err)
		assert.Equal(t, want, result.RiskScore, "kind %s", kind)
	}
}

func TestParseRiskScore(t *testing.T) {
	cases := []struct {
		content string
		want    float64
		ok      bool
	}{
		{"Findings.\nRISK_SCORE: 0.82", 0.82, true},
		{"risk_score: 0.5", 0.5, true},
		{"RISK_SCORE:0.1", 0.1, true},
		{"RISK_SCORE: .75", 0.75, true},
		{"no score at all", 0, false},
		{"RISK_SCORE: n/a", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseRiskScore(tc.content)
		assert.Equal(t, tc.ok, ok, "content %q", tc.content)
		if tc.ok {
			assert.Equal(t, tc.want, got, "content %q", tc.content)
		}
	}
}

func TestAnalyzeParsesScoreLine(t *testing.T) {
	llm := &fakeLLM{responses: []litellm.ChatResponse{
		textResponse("Roaming volume far above baseline.\nRISK_SCORE: 0.82"),
	}}
	s := newTestSpecialist(t, model.KindUsage, llm, &fakeTools{})

	result, err := s.Analyze(context.Background(), testAlert(model.SeverityHigh))
	require.NoError(t, err)
	assert.Equal(t, 0.82, result.RiskScore)
	assert.Contains(t, result.Findings, "above baseline")
	assert.Equal(t, model.KindUsage, result.Kind)
	assert.Equal(t, "ALERT-001", result.AlertID)
}

func TestAnalyzeClampsScore(t *testing.T) {
	llm := &fakeLLM{responses: []litellm.ChatResponse{
		textResponse("RISK_SCORE: 1.7"),
	}}
	s := newTestSpecialist(t, model.KindUsage, llm, &fakeTools{})

	result, err := s.Analyze(context.Background(), testAlert(model.SeverityLow))
	require.NoError(t, err)
	assert.Equal(t, 1.0, result.RiskScore)
}

func TestAnalyzeToolLoop(t *testing.T) {
	llm := &fakeLLM{responses: []litellm.ChatResponse{
		toolCallResponse(
			litellm.ToolCall{
				ID:   "call_1",
				Type: "function",
				Function: litellm.FunctionCall{
					Name:      "get_data_usage",
					Arguments: `{"customer_id": 102}`,
				},
			},
			litellm.ToolCall{
				ID:   "call_2",
				Type: "function",
				Function: litellm.FunctionCall{
					Name:      "get_billing_summary",
					Arguments: `{"customer_id": 102}`,
				},
			},
		),
		textResponse("Usage spiked 10x abroad.\nRISK_SCORE: 0.9"),
	}}
	tools := &fakeTools{results: map[string]string{
		"get_data_usage": `{"total_gb": 54.7}`,
	}}
	s := newTestSpecialist(t, model.KindUsage, llm, tools)

	result, err := s.Analyze(context.Background(), testAlert(model.SeverityCritical))
	require.NoError(t, err)
	assert.Equal(t, 0.9, result.RiskScore)

	// get_billing_summary is outside the usage allow-list and must be refused
	// at the binding layer, not forwarded to the backend.
	assert.Equal(t, []string{"get_data_usage"}, tools.calls)

	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, "get_data_usage", result.ToolCalls[0].Name)
	assert.Equal(t, `{"total_gb": 54.7}`, result.ToolCalls[0].Result)
	assert.Equal(t, "get_billing_summary", result.ToolCalls[1].Name)
	assert.Contains(t, result.ToolCalls[1].Result, "not permitted")

	// The second LLM turn must see the tool results.
	require.Len(t, llm.requests, 2)
	last := llm.requests[1].Messages
	assert.Equal(t, "tool", last[len(last)-1].Role)
}

func TestAnalyzeToolResultTruncated(t *testing.T) {
	long := strings.Repeat("x", 900)
	llm := &fakeLLM{responses: []litellm.ChatResponse{
		toolCallResponse(litellm.ToolCall{
			ID:       "call_1",
			Type:     "function",
			Function: litellm.FunctionCall{Name: "get_security_logs", Arguments: `{"customer_id": 102}`},
		}),
		textResponse("RISK_SCORE: 0.4"),
	}}
	tools := &fakeTools{results: map[string]string{"get_security_logs": long}}
	s := newTestSpecialist(t, model.KindLocation, llm, tools)

	result, err := s.Analyze(context.Background(), testAlert(model.SeverityMedium))
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Len(t, result.ToolCalls[0].Result, toolResultLimit)
}

func TestAnalyzeToolErrorFedBack(t *testing.T) {
	llm := &fakeLLM{responses: []litellm.ChatResponse{
		toolCallResponse(litellm.ToolCall{
			ID:       "call_1",
			Type:     "function",
			Function: litellm.FunctionCall{Name: "get_data_usage", Arguments: `{}`},
		}),
		textResponse("Could not retrieve usage.\nRISK_SCORE: 0.5"),
	}}
	tools := &fakeTools{err: errors.New("backend unreachable")}
	s := newTestSpecialist(t, model.KindUsage, llm, tools)

	result, err := s.Analyze(context.Background(), testAlert(model.SeverityLow))
	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Contains(t, result.ToolCalls[0].Result, "tool call failed")
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// 200 three-byte runes; the 500-byte limit falls inside the 167th rune.
	long := strings.Repeat("日", 200)
	got := truncate(long, toolResultLimit)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 498, len(got))

	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abcd", 2))
}

func TestAnalyzeRecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	metrics, err := otelx.NewMetrics()
	require.NoError(t, err)

	llm := &fakeLLM{responses: []litellm.ChatResponse{
		toolCallResponse(litellm.ToolCall{
			ID:       "call_1",
			Type:     "function",
			Function: litellm.FunctionCall{Name: "get_data_usage", Arguments: `{"customer_id": 102}`},
		}),
		textResponse("RISK_SCORE: 0.7"),
	}}
	tools := &fakeTools{results: map[string]string{"get_data_usage": "{}"}}
	s := NewSpecialist(specByKind(t, model.KindUsage), llm, tools, "m", metrics, slog.New(slog.DiscardHandler))

	_, err = s.Analyze(context.Background(), testAlert(model.SeverityHigh))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	calls, ok := findMetric(rm, "fraudwatch.toolcalls")
	require.True(t, ok)
	assert.Equal(t, int64(1), sumInt64(t, calls))

	duration, ok := findMetric(rm, "fraudwatch.analysis.duration_seconds")
	require.True(t, ok)
	hist, isHist := duration.Data.(metricdata.Histogram[float64])
	require.True(t, isHist)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumInt64(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestAnalyzeLLMErrorPropagates(t *testing.T) {
	llm := &fakeLLM{err: errors.New("proxy down")}
	s := newTestSpecialist(t, model.KindBilling, llm, &fakeTools{})

	_, err := s.Analyze(context.Background(), testAlert(model.SeverityHigh))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "billing analysis")
}
