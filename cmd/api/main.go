package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	otelx "fraudwatch/internal/adapter/otel"
	"fraudwatch/internal/adapter/ws"
	"fraudwatch/internal/config"
	"fraudwatch/internal/logger"
	"fraudwatch/internal/model"
	"fraudwatch/internal/reporter"
	"fraudwatch/internal/workflows"
)

type apiServer struct {
	cfg     *config.Config
	tc      client.Client
	logger  *slog.Logger
	hub     *ws.Hub
	watcher *reporter.Watcher
	cache   *ristretto.Cache[string, statusResponse]

	mu       sync.Mutex
	watching map[string]struct{}
}

type startRequest struct {
	Alert                model.Alert `json:"alert"`
	ApprovalTimeoutHours float64     `json:"approval_timeout_hours"`
}

type startResponse struct {
	InstanceID string `json:"instance_id"`
	RunID      string `json:"run_id"`
}

type decisionRequest struct {
	InstanceID string                `json:"instance_id"`
	Decision   model.DecisionPayload `json:"decision"`
}

type statusResponse struct {
	InstanceID       string              `json:"instance_id"`
	Status           string              `json:"status"`
	Progress         *model.Progress     `json:"progress,omitempty"`
	DecisionRequired bool                `json:"decision_required"`
	Result           *model.ReviewResult `json:"result,omitempty"`
	Error            string              `json:"error,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	ctx := context.Background()
	shutdownOTel, err := otelx.Setup(ctx, cfg.OTel, cfg.Logging.Service+"-api")
	if err != nil {
		log.Error("otel setup failed", "error", err)
		os.Exit(1)
	}
	defer shutdownOTel(ctx)

	tc, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Error("unable to create temporal client", "error", err)
		os.Exit(1)
	}
	defer tc.Close()

	cache, err := ristretto.NewCache(&ristretto.Config[string, statusResponse]{
		NumCounters: 10_000,
		MaxCost:     cfg.Cache.MaxSizeMB << 20,
		BufferItems: 64,
	})
	if err != nil {
		log.Error("unable to create status cache", "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	s := &apiServer{
		cfg:      cfg,
		tc:       tc,
		logger:   log,
		hub:      ws.NewHub(),
		watcher:  reporter.NewWatcher(tc, cfg.Cache.StatusTTL, log),
		cache:    cache,
		watching: make(map[string]struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(otelx.HTTPMiddleware(cfg.Logging.Service))
	r.Use(corsMiddleware(cfg.Server.CORSOrigin))

	r.Get("/health", s.handleHealth)
	r.Get("/api/alerts", s.handleAlerts)
	r.Post("/api/workflow/start", s.handleStart)
	r.Get("/api/workflow/status/{instanceID}", s.handleStatus)
	r.Post("/api/workflow/decision", s.handleDecision)
	r.Get("/ws/{instanceID}", s.handleWS)
	registerUIRoutes(r, s)

	addr := ":" + cfg.Server.Port
	log.Info("api listening", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Error("api server exited", "error", err)
		os.Exit(1)
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAlerts serves the demo alert catalog the console offers for review.
func (s *apiServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.SampleAlerts())
}

func (s *apiServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body: expected {\"alert\":{...}}", http.StatusBadRequest)
		return
	}
	if err := req.Alert.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ApprovalTimeoutHours <= 0 {
		req.ApprovalTimeoutHours = s.cfg.Review.ApprovalTimeoutHours
	}

	instanceID := fmt.Sprintf("fraud-%s-%d", req.Alert.AlertID, time.Now().Unix())
	opts := client.StartWorkflowOptions{
		ID:                                       instanceID,
		TaskQueue:                                workflows.TaskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
		WorkflowIDReusePolicy:                    enums.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	we, err := s.tc.ExecuteWorkflow(ctx, opts, workflows.FraudReview, workflows.ReviewInput{
		Alert:                req.Alert,
		ApprovalTimeoutHours: req.ApprovalTimeoutHours,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("review started", "instance_id", we.GetID(), "alert_id", req.Alert.AlertID)
	writeJSON(w, http.StatusOK, startResponse{InstanceID: we.GetID(), RunID: we.GetRunID()})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")

	if cached, ok := s.cache.Get(instanceID); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	resp, err := s.fetchStatus(r.Context(), instanceID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	s.cache.SetWithTTL(instanceID, resp, 1, s.cfg.Cache.StatusTTL)
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) fetchStatus(ctx context.Context, instanceID string) (statusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	desc, err := s.tc.DescribeWorkflowExecution(ctx, instanceID, "")
	if err != nil {
		return statusResponse{}, fmt.Errorf("unknown instance %s: %w", instanceID, err)
	}
	status := desc.WorkflowExecutionInfo.GetStatus()

	resp := statusResponse{
		InstanceID: instanceID,
		Status:     reporter.StatusName(status),
	}

	if qr, err := s.tc.QueryWorkflow(ctx, instanceID, "", "progress"); err == nil {
		var raw json.RawMessage
		if err := qr.Get(&raw); err == nil {
			if progress, err := reporter.DecodeProgress(raw); err == nil {
				resp.Progress = progress
			}
		}
	}

	switch status {
	case enums.WORKFLOW_EXECUTION_STATUS_RUNNING:
		var pending bool
		if qr, err := s.tc.QueryWorkflow(ctx, instanceID, "", "pending_review"); err == nil {
			_ = qr.Get(&pending)
		}
		resp.DecisionRequired = pending
	case enums.WORKFLOW_EXECUTION_STATUS_COMPLETED:
		var result model.ReviewResult
		if err := s.tc.GetWorkflow(ctx, instanceID, "").Get(ctx, &result); err == nil {
			resp.Result = &result
		}
	default:
		if err := s.tc.GetWorkflow(ctx, instanceID, "").Get(ctx, new(model.ReviewResult)); err != nil {
			resp.Error = err.Error()
		}
	}
	return resp, nil
}

func (s *apiServer) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InstanceID == "" {
		http.Error(w, "invalid body: expected {\"instance_id\":\"...\",\"decision\":{...}}", http.StatusBadRequest)
		return
	}
	if req.Decision.ApprovedAction == "" {
		http.Error(w, "decision.approved_action is required", http.StatusBadRequest)
		return
	}
	if !model.KnownAction(req.Decision.ApprovedAction) {
		http.Error(w, fmt.Sprintf("unknown approved_action %q", req.Decision.ApprovedAction), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.tc.SignalWorkflow(ctx, req.InstanceID, "", workflows.AnalystDecisionSignal, req.Decision); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.cache.Del(req.InstanceID)
	s.logger.Info("decision signaled",
		"instance_id", req.InstanceID,
		"approved_action", req.Decision.ApprovedAction,
		"analyst_id", req.Decision.AnalystID,
	)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWS subscribes the client to live updates for one instance and lazily
// starts the single background watcher feeding that instance's hub channel.
func (s *apiServer) handleWS(w http.ResponseWriter, r *http.Request) {
	instanceID := chi.URLParam(r, "instanceID")
	s.hub.HandleWS(w, r, instanceID)
	s.ensureWatcher(instanceID)
}

func (s *apiServer) ensureWatcher(instanceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watching[instanceID]; ok {
		return
	}
	s.watching[instanceID] = struct{}{}

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.watching, instanceID)
			s.mu.Unlock()
		}()

		err := s.watcher.Watch(context.Background(), instanceID, func(u reporter.Update) {
			payload, err := json.Marshal(u)
			if err != nil {
				return
			}
			s.hub.Broadcast(context.Background(), ws.Event{
				Type:       eventType(u),
				InstanceID: instanceID,
				Payload:    payload,
			})
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("watcher stopped", "instance_id", instanceID, "error", err)
		}
	}()
}

func eventType(u reporter.Update) string {
	switch {
	case u.Error != "":
		return "error"
	case u.Result != nil:
		return "completed"
	default:
		return "progress"
	}
}

func corsMiddleware(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
