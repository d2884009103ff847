// Package analysis implements the fraud specialist analyzers, the fan-out
// pipeline and the risk aggregator.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"fraudwatch/internal/adapter/litellm"
	otelx "fraudwatch/internal/adapter/otel"
	"fraudwatch/internal/model"
)

// maxToolRounds bounds the LLM tool loop for one specialist turn.
const maxToolRounds = 8

// toolResultLimit caps tool output captured in the audit log.
const toolResultLimit = 500

// ChatClient is the LLM backend a specialist consults.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req litellm.ChatRequest) (*litellm.ChatResponse, error)
}

// ToolCaller is the lookup-tool backend. Definitions returns the OpenAI tool
// definitions for an allow-list; Call invokes one tool.
type ToolCaller interface {
	Definitions(allowed []string) []litellm.Tool
	Call(ctx context.Context, name string, args map[string]any) (string, error)
}

// Spec configures one specialist variant: its instructions, the lookup tools
// it may call, and the severity fallback table used when the model's score
// line is missing or unparsable.
type Spec struct {
	Kind            model.SpecialistKind
	Instructions    string
	AllowedTools    []string
	Fallback        map[model.Severity]float64
	FallbackDefault float64
}

// Specs returns the three specialist configurations.
func Specs() []Spec {
	return []Spec{
		{
			Kind: model.KindUsage,
			Instructions: "You are a telecom fraud analyst specializing in data usage patterns. " +
				"Investigate the alert using the available tools: compare recent usage against " +
				"the customer's subscription limits and historical baseline. " +
				"Report your findings as free text, and end with a line of the form " +
				"RISK_SCORE: <float between 0 and 1>.",
			AllowedTools:    []string{"get_data_usage", "get_subscription_detail", "get_customer_detail"},
			Fallback:        map[model.Severity]float64{model.SeverityLow: 0.3, model.SeverityMedium: 0.5, model.SeverityHigh: 0.7, model.SeverityCritical: 0.9},
			FallbackDefault: 0.5,
		},
		{
			Kind: model.KindLocation,
			Instructions: "You are a telecom fraud analyst specializing in location anomalies and " +
				"account takeover. Investigate the alert using the available tools: look for " +
				"logins from unfamiliar locations, impossible travel, and SIM swap requests. " +
				"Report your findings as free text, and end with a line of the form " +
				"RISK_SCORE: <float between 0 and 1>.",
			AllowedTools:    []string{"get_security_logs", "get_customer_detail"},
			Fallback:        map[model.Severity]float64{model.SeverityLow: 0.3, model.SeverityMedium: 0.5, model.SeverityHigh: 0.8, model.SeverityCritical: 0.95},
			FallbackDefault: 0.6,
		},
		{
			Kind: model.KindBilling,
			Instructions: "You are a telecom fraud analyst specializing in billing fraud. " +
				"Investigate the alert using the available tools: look for disputed charges, " +
				"unusual purchases and premium content abuse. " +
				"Report your findings as free text, and end with a line of the form " +
				"RISK_SCORE: <float between 0 and 1>.",
			AllowedTools:    []string{"get_billing_summary", "get_customer_orders", "get_customer_detail"},
			Fallback:        map[model.Severity]float64{model.SeverityLow: 0.2, model.SeverityMedium: 0.4, model.SeverityHigh: 0.6, model.SeverityCritical: 0.85},
			FallbackDefault: 0.4,
		},
	}
}

// Specialist runs one analyzer variant against an alert.
type Specialist struct {
	spec    Spec
	llm     ChatClient
	tools   ToolCaller
	model   string
	metrics *otelx.Metrics
	logger  *slog.Logger
}

// NewSpecialist creates a specialist for the given spec. metrics may be nil.
func NewSpecialist(spec Spec, llm ChatClient, tools ToolCaller, llmModel string, metrics *otelx.Metrics, logger *slog.Logger) *Specialist {
	return &Specialist{
		spec:    spec,
		llm:     llm,
		tools:   tools,
		model:   llmModel,
		metrics: metrics,
		logger:  logger.With("specialist", string(spec.Kind)),
	}
}

// Analyze investigates the alert with a bounded LLM tool loop and returns
// the specialist's result. Only tools on the allow-list are ever offered to
// the model; a call to anything else is refused and the refusal is fed back
// as the tool result.
func (s *Specialist) Analyze(ctx context.Context, alert model.Alert) (*model.SpecialistResult, error) {
	ctx, span := otelx.StartAnalysisSpan(ctx, alert.AlertID, string(s.spec.Kind))
	defer span.End()

	start := time.Now()
	defs := s.tools.Definitions(s.spec.AllowedTools)
	allowed := make(map[string]struct{}, len(s.spec.AllowedTools))
	for _, name := range s.spec.AllowedTools {
		allowed[name] = struct{}{}
	}

	messages := []litellm.Message{
		{Role: "system", Content: s.spec.Instructions},
		{Role: "user", Content: describeAlert(alert)},
	}

	result := &model.SpecialistResult{
		Kind:    s.spec.Kind,
		AlertID: alert.AlertID,
	}

	var content string
	for round := 0; round < maxToolRounds; round++ {
		resp, err := s.llm.ChatCompletion(ctx, litellm.ChatRequest{
			Model:    s.model,
			Messages: messages,
			Tools:    defs,
		})
		if err != nil {
			return nil, fmt.Errorf("%s analysis: %w", s.spec.Kind, err)
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			content = msg.Content
			break
		}

		messages = append(messages, msg)
		for _, tc := range msg.ToolCalls {
			messages = append(messages, s.runToolCall(ctx, alert.AlertID, tc, allowed, result))
		}
	}

	result.Findings = content
	result.RiskScore = s.scoreFor(content, alert.Severity)

	if s.metrics != nil {
		s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("specialist", string(s.spec.Kind))))
	}

	s.logger.Info("analysis complete",
		"alert_id", alert.AlertID,
		"risk_score", result.RiskScore,
		"tool_calls", len(result.ToolCalls),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

// runToolCall executes one model-requested tool call and returns the tool
// message to feed back. Failures and allow-list refusals become tool results
// so the model can recover within the same turn.
func (s *Specialist) runToolCall(ctx context.Context, alertID string, tc litellm.ToolCall, allowed map[string]struct{}, result *model.SpecialistResult) litellm.Message {
	callID := tc.ID
	if callID == "" {
		callID = uuid.NewString()
	}

	var args map[string]any
	if tc.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = nil
		}
	}

	var output string
	if _, ok := allowed[tc.Function.Name]; !ok {
		output = fmt.Sprintf("tool %s is not permitted for this analysis", tc.Function.Name)
	} else {
		_, span := otelx.StartToolCallSpan(ctx, alertID, tc.Function.Name)
		text, err := s.tools.Call(ctx, tc.Function.Name, args)
		span.End()
		if s.metrics != nil {
			s.metrics.ToolCalls.Add(ctx, 1,
				metric.WithAttributes(attribute.String("tool", tc.Function.Name)))
		}
		if err != nil {
			output = fmt.Sprintf("tool call failed: %v", err)
		} else {
			output = text
		}
	}

	truncated := truncate(output, toolResultLimit)
	result.ToolCalls = append(result.ToolCalls, model.ToolCall{
		Name:      tc.Function.Name,
		Arguments: args,
		Result:    truncated,
	})

	return litellm.Message{
		Role:       "tool",
		ToolCallID: callID,
		Name:       tc.Function.Name,
		Content:    truncated,
	}
}

// scoreFor parses the RISK_SCORE line from the model output, falling back to
// the severity table when it is absent or unparsable.
func (s *Specialist) scoreFor(content string, severity model.Severity) float64 {
	if score, ok := parseRiskScore(content); ok {
		return clampScore(score)
	}
	if score, ok := s.spec.Fallback[severity]; ok {
		return score
	}
	return s.spec.FallbackDefault
}

var riskScoreRe = regexp.MustCompile(`(?i)RISK_SCORE:\s*([0-9]*\.?[0-9]+)`)

// parseRiskScore extracts the score from a "RISK_SCORE: <float>" line.
func parseRiskScore(content string) (float64, bool) {
	m := riskScoreRe.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func describeAlert(alert model.Alert) string {
	return fmt.Sprintf("Fraud alert %s for customer %d.\nType: %s\nSeverity: %s\nDescription: %s\nTimestamp: %s",
		alert.AlertID, alert.CustomerID, alert.AlertType, alert.Severity, alert.Description, alert.Timestamp)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
