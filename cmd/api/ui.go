package main

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.temporal.io/api/workflowservice/v1"
	"go.temporal.io/sdk/client"

	"fraudwatch/internal/model"
	"fraudwatch/internal/workflows"
)

type uiServer struct {
	tc client.Client
	t  *template.Template
}

type uiReviewRow struct {
	InstanceID       string
	RunID            string
	Message          string
	RiskScore        string
	DecisionRequired bool
}

type uiIndexData struct {
	Tab     string
	Query   string
	Reviews []uiReviewRow
	Hits    []uiReviewRow
	Error   string
}

type uiDetailData struct {
	InstanceID       string
	RunID            string
	Progress         model.Progress
	Assessment       *model.RiskAssessment
	DecisionRequired bool
	AssessmentJSON   template.HTML
	Error            string
}

func registerUIRoutes(r chi.Router, s *apiServer) {
	t := template.Must(template.New("base").Parse(uiTemplates))
	u := &uiServer{tc: s.tc, t: t}

	r.Get("/ui", u.handleIndex)
	r.Get("/ui/review/{instanceID}", u.handleDetail)
	r.Post("/ui/review/{instanceID}/decision", u.handleDecision)
}

// handleIndex lists running reviews awaiting a decision, or searches all
// reviews by alert ID through the WorkflowId prefix.
func (u *uiServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab != "search" {
		tab = "pending"
	}
	q := r.URL.Query().Get("q")
	data := uiIndexData{Tab: tab, Query: q}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	var query string
	if tab == "pending" {
		query = `ExecutionStatus = "Running"`
	} else {
		if q == "" {
			_ = u.t.ExecuteTemplate(w, "index", data)
			return
		}
		query = `WorkflowId STARTS_WITH "fraud-` + q + `"`
	}

	resp, err := u.tc.ListWorkflow(ctx, &workflowservice.ListWorkflowExecutionsRequest{
		Query:    query,
		PageSize: 200,
	})
	if err != nil {
		data.Error = err.Error()
		_ = u.t.ExecuteTemplate(w, "index", data)
		return
	}

	for _, ex := range resp.Executions {
		if ex.Execution == nil {
			continue
		}
		row := uiReviewRow{
			InstanceID: ex.Execution.WorkflowId,
			RunID:      ex.Execution.RunId,
		}

		if tab == "pending" {
			progress, pending, err := u.queryReview(r.Context(), row.InstanceID, row.RunID)
			if err != nil {
				continue
			}
			if !pending {
				continue
			}
			row.Message = progress.Message
			if progress.RiskScore != nil {
				row.RiskScore = formatScore(*progress.RiskScore)
			}
			row.DecisionRequired = true
			data.Reviews = append(data.Reviews, row)
			if len(data.Reviews) >= 100 {
				break
			}
		} else {
			data.Hits = append(data.Hits, row)
		}
	}

	_ = u.t.ExecuteTemplate(w, "index", data)
}

// handleDetail shows one review: live progress, the risk assessment, and the
// decision form when the run is waiting on an analyst.
func (u *uiServer) handleDetail(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	runID := r.URL.Query().Get("runId")
	data := uiDetailData{InstanceID: instanceID, RunID: runID}

	progress, pending, err := u.queryReview(r.Context(), instanceID, runID)
	if err != nil {
		data.Error = err.Error()
		_ = u.t.ExecuteTemplate(w, "detail", data)
		return
	}
	data.Progress = progress
	data.DecisionRequired = pending

	if assessment, err := u.queryAssessment(r.Context(), instanceID, runID); err == nil && assessment != nil {
		data.Assessment = assessment
		data.AssessmentJSON = prettyJSON(assessment)
	}

	_ = u.t.ExecuteTemplate(w, "detail", data)
}

// handleDecision posts the analyst form as a decision signal.
func (u *uiServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	runID := r.URL.Query().Get("runId")

	action := r.FormValue("approved_action")
	if !model.KnownAction(action) {
		http.Error(w, "unknown approved_action", http.StatusBadRequest)
		return
	}
	analyst := r.FormValue("analyst_id")
	if analyst == "" {
		analyst = "console-analyst"
	}

	payload := model.DecisionPayload{
		ApprovedAction: action,
		AnalystNotes:   r.FormValue("notes"),
		AnalystID:      analyst,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := u.tc.SignalWorkflow(ctx, instanceID, runID, workflows.AnalystDecisionSignal, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/ui/review/"+instanceID+"?runId="+runID, http.StatusSeeOther)
}

func (u *uiServer) queryReview(ctx context.Context, instanceID, runID string) (model.Progress, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	qr, err := u.tc.QueryWorkflow(cctx, instanceID, runID, "progress")
	if err != nil {
		return model.Progress{}, false, err
	}
	var progress model.Progress
	if err := qr.Get(&progress); err != nil {
		return model.Progress{}, false, err
	}

	var pending bool
	if qr, err := u.tc.QueryWorkflow(cctx, instanceID, runID, "pending_review"); err == nil {
		_ = qr.Get(&pending)
	}
	return progress, pending, nil
}

func (u *uiServer) queryAssessment(ctx context.Context, instanceID, runID string) (*model.RiskAssessment, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	qr, err := u.tc.QueryWorkflow(cctx, instanceID, runID, "assessment")
	if err != nil {
		return nil, err
	}
	var assessment *model.RiskAssessment
	return assessment, qr.Get(&assessment)
}

func formatScore(score float64) string {
	b, _ := json.Marshal(score)
	return string(b)
}

func prettyJSON(v any) template.HTML {
	b, _ := json.MarshalIndent(v, "", "  ")
	return template.HTML("<pre>" + template.HTMLEscapeString(string(b)) + "</pre>")
}

// uiTemplates holds the analyst console pages. Kept inline for the prototype.
const uiTemplates = `
{{define "index"}}
<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Fraud Review Console</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    .tabs a { margin-right: 12px; }
    table { border-collapse: collapse; width: 100%; margin-top: 12px; }
    th, td { border: 1px solid #ddd; padding: 8px; }
    .err { color: #b00020; }
    .muted { color: #666; }
  </style>
</head>
<body>
  <h2>Fraud Review Console</h2>

  <div class="tabs">
    <a href="/ui?tab=pending">Pending Reviews</a>
    <a href="/ui?tab=search">Search</a>
  </div>

  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}

  {{if eq .Tab "pending"}}
    <h3>Reviews Awaiting Decision</h3>
    <p class="muted">Running reviews whose analyst decision window is open.</p>
    <table>
      <thead><tr><th>Instance</th><th>Risk</th><th>Status</th></tr></thead>
      <tbody>
      {{range .Reviews}}
        <tr>
          <td><a href="/ui/review/{{.InstanceID}}?runId={{.RunID}}">{{.InstanceID}}</a></td>
          <td>{{.RiskScore}}</td>
          <td>{{.Message}}</td>
        </tr>
      {{end}}
      </tbody>
    </table>
  {{else}}
    <h3>Search by Alert ID</h3>
    <form method="get" action="/ui">
      <input type="hidden" name="tab" value="search"/>
      <input name="q" placeholder="ALERT-001" value="{{.Query}}" style="width: 320px;"/>
      <button type="submit">Search</button>
    </form>

    {{if .Query}}
      <h4>Results</h4>
      <table>
        <thead><tr><th>Instance</th></tr></thead>
        <tbody>
        {{range .Hits}}
          <tr><td><a href="/ui/review/{{.InstanceID}}?runId={{.RunID}}">{{.InstanceID}}</a></td></tr>
        {{end}}
        </tbody>
      </table>
    {{end}}
  {{end}}
</body>
</html>
{{end}}

{{define "detail"}}
<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <title>Review Detail</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    .err { color: #b00020; }
    pre { background: #f7f7f7; padding: 12px; overflow: auto; }
  </style>
</head>
<body>
  <a href="/ui">&larr; Back</a>
  <h2>Review Detail</h2>

  {{if .Error}}<p class="err">{{.Error}}</p>{{end}}

  <p><b>Instance:</b> {{.InstanceID}}<br/>
     <b>RunID:</b> {{.RunID}}<br/>
     <b>Status:</b> {{.Progress.Message}}</p>

  {{if .Assessment}}
    <h3>Risk Assessment</h3>
    <p><b>Overall risk:</b> {{printf "%.2f" .Assessment.OverallRiskScore}} ({{.Assessment.RiskLevel}})<br/>
       <b>Recommended:</b> {{.Assessment.RecommendedAction}}</p>
    <p>{{.Assessment.Reasoning}}</p>
    {{.AssessmentJSON}}
  {{end}}

  {{if .DecisionRequired}}
    <h3>Analyst Decision</h3>
    <form method="post" action="/ui/review/{{.InstanceID}}/decision?runId={{.RunID}}">
      <label>Analyst: <input name="analyst_id" value="analyst"/></label><br/><br/>
      <label>Action:
        <select name="approved_action">
          <option value="lock_account">lock_account</option>
          <option value="refund_charges">refund_charges</option>
          <option value="both">both</option>
          <option value="clear">clear</option>
        </select>
      </label><br/><br/>
      <label>Notes:<br/><textarea name="notes" rows="3" cols="80"></textarea></label><br/><br/>
      <button type="submit">Submit Decision</button>
    </form>
  {{else}}
    <p>(No decision required)</p>
  {{end}}
</body>
</html>
{{end}}
`
