package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/opensource-finance/talon/internal/domain"
	"github.com/opensource-finance/talon/internal/pipeline"
	"github.com/opensource-finance/talon/internal/repository"
	"github.com/opensource-finance/talon/internal/scoring"
)

// GlobalTenantID is used for scoring rules that apply to all tenants.
const GlobalTenantID = "*"

// resultCacheTTL bounds how long completed results stay in the cache.
const resultCacheTTL = 30 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	engine   *scoring.CustomEngine
	pipeline *pipeline.Pipeline
	scoring  domain.ScoringConfig
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *scoring.CustomEngine, pl *pipeline.Pipeline, scoringCfg domain.ScoringConfig, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		engine:   engine,
		pipeline: pl,
		scoring:  scoringCfg,
		version:  version,
	}
}

// BatchRequest is the request body for POST /batches.
type BatchRequest struct {
	Accounts     []*domain.Account     `json:"accounts"`
	Transactions []*domain.Transaction `json:"transactions"`
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) (*domain.Batch, bool) {
	tenantID := GetTenantID(r.Context())

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil, false
	}

	for _, a := range req.Accounts {
		if a.ID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "every account requires an id",
			})
			return nil, false
		}
	}
	for _, tx := range req.Transactions {
		if tx.DebtorID == "" || tx.CreditorID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "every transaction requires debtorId and creditorId",
			})
			return nil, false
		}
		if tx.Amount <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "transaction amount must be positive",
			})
			return nil, false
		}
	}

	batch := &domain.Batch{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		Accounts:     req.Accounts,
		Transactions: req.Transactions,
		ReceivedAt:   time.Now().UTC(),
	}
	if len(batch.AccountIndex()) != len(batch.Accounts) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "duplicate account id in batch",
		})
		return nil, false
	}
	return batch, true
}

// AnalyzeBatch handles POST /batches: synchronous analysis of a snapshot.
func (h *Handler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	batch, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveBatch(ctx, tenantID, batch); err != nil {
			slog.Error("failed to save batch", "batch_id", batch.ID, "error", err)
			// Analysis proceeds on the in-memory snapshot.
		}
	}

	result := h.pipeline.Run(ctx, batch)
	result.Metadata.TraceID = traceID

	if h.repo != nil {
		if err := h.repo.SaveResult(ctx, tenantID, result); err != nil {
			slog.Error("failed to save result", "result_id", result.ID, "error", err)
		}
	}
	if h.cache != nil {
		_ = h.cache.SetResult(ctx, tenantID, batch.ID, result, resultCacheTTL)
	}

	h.publishResult(r, tenantID, result)

	writeJSON(w, http.StatusOK, result)
}

// IngestBatch handles POST /batches/async: persist the snapshot and hand it
// to the worker over the bus.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	batch, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if err := h.repo.SaveBatch(ctx, tenantID, batch); err != nil {
		slog.Error("failed to save batch", "batch_id", batch.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save batch",
		})
		return
	}

	payload, _ := json.Marshal(map[string]string{"batchId": batch.ID})
	if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchIngested, payload); err != nil {
		slog.Error("failed to publish batch", "batch_id", batch.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to enqueue batch",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"batchId": batch.ID,
		"status":  "queued",
	})
}

// GetBatchResult handles GET /batches/{id}: cache-first result retrieval.
func (h *Handler) GetBatchResult(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetBatchRows handles GET /batches/{id}/rows: flat export rows for
// reporting collaborators. The reason delimiter defaults to "; ".
func (h *Handler) GetBatchRows(w http.ResponseWriter, r *http.Request) {
	result, ok := h.lookupResult(w, r)
	if !ok {
		return
	}

	delimiter := r.URL.Query().Get("delimiter")
	if delimiter == "" {
		delimiter = "; "
	}

	rows := make([]map[string]string, 0, len(result.Risks))
	for i := range result.Risks {
		rows = append(rows, result.Risks[i].Row(delimiter))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"batchId": result.BatchID,
		"rows":    rows,
		"count":   len(rows),
	})
}

func (h *Handler) lookupResult(w http.ResponseWriter, r *http.Request) (*domain.BatchResult, bool) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	batchID := chi.URLParam(r, "id")

	if batchID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "batch id is required",
		})
		return nil, false
	}

	if h.cache != nil {
		if result, err := h.cache.GetResult(ctx, tenantID, batchID); err == nil && result != nil {
			return result, true
		}
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return nil, false
	}

	result, err := h.repo.GetResultByBatch(ctx, tenantID, batchID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "result not found",
		})
		return nil, false
	}
	if err != nil {
		slog.Error("failed to get result", "batch_id", batchID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load result",
		})
		return nil, false
	}

	if h.cache != nil {
		_ = h.cache.SetResult(ctx, tenantID, batchID, result, resultCacheTTL)
	}

	return result, true
}

// publishResult emits the completion event plus one alert per account above
// the alert threshold. Publish failures are logged, not surfaced.
func (h *Handler) publishResult(r *http.Request, tenantID string, result *domain.BatchResult) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	payload, _ := json.Marshal(result)
	if err := h.bus.Publish(ctx, tenantID, domain.TopicBatchCompleted, payload); err != nil {
		slog.Error("failed to publish completion", "batch_id", result.BatchID, "error", err)
	}

	for i := range result.Risks {
		risk := &result.Risks[i]
		if risk.Score < h.scoring.AlertThreshold {
			continue
		}
		alert, _ := json.Marshal(map[string]interface{}{
			"batchId":   result.BatchID,
			"accountId": risk.AccountID,
			"score":     risk.Score,
			"reasons":   risk.Reasons,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAlert, alert); err != nil {
			slog.Error("failed to publish alert", "account_id", risk.AccountID, "error", err)
		}
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// ListRules returns all loaded scoring rules from the engine.
// Rules are loaded from the database at startup and can be reloaded via
// POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.engine.GetLoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a scoring rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.engine.GetLoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRuleRequest is the request body for creating a scoring rule.
type CreateRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Reason      string  `json:"reason"`
	Enabled     bool    `json:"enabled"`
}

// CreateRule creates a new scoring rule and saves it to the database.
// Rules are saved globally (tenant_id = "*") so they apply to all tenants.
// After saving, call POST /rules/reload to hot-reload into the engine.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Validate
	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if req.Weight < 0 || req.Weight > 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "weight must be between 0 and 1",
		})
		return
	}

	// Create rule (global tenant)
	rule := &domain.ScoringRule{
		ID:          req.ID,
		TenantID:    GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Weight:      req.Weight,
		Reason:      req.Reason,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if err := h.engine.LoadRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	// Persist to repository (global tenant ID)
	if h.repo != nil {
		if err := h.repo.SaveScoringRule(ctx, GlobalTenantID, rule); err != nil {
			slog.Error("failed to save scoring rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	slog.Info("scoring rule created", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Rule created. Call POST /rules/reload to apply changes.",
	})
}

// ReloadRules reloads all scoring rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	// Load rules from database (global rules)
	dbRules, err := h.repo.ListScoringRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Error("failed to list scoring rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	// Reload into engine
	if err := h.engine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload scoring rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("scoring rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
