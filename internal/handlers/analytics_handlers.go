package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"taxi-weather-platform/internal/repository"
	"taxi-weather-platform/pkg/logging"
	"taxi-weather-platform/pkg/metrics"
)

// AnalyticsHandler serves the aggregation views over the fact table
// and the quality report stream.
type AnalyticsHandler struct {
	repo    repository.FactRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAnalyticsHandler creates a new analytics handler
func NewAnalyticsHandler(repo repository.FactRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AnalyticsHandler {
	return &AnalyticsHandler{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// GetDailySummaries handles GET /api/trips/daily
func (h *AnalyticsHandler) GetDailySummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/trips/daily").Observe(duration.Seconds())
	}()

	filter, ok := h.parseSummaryFilter(w, r)
	if !ok {
		return
	}

	summaries, err := h.repo.GetDailySummaries(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_DAILY_ERROR] Failed to get daily summaries", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/trips/daily")
		h.sendError(w, r, "failed to retrieve daily summaries", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/trips/daily", "GET", "200")
	h.sendJSON(w, summaries, http.StatusOK)
}

// GetZoneSummaries handles GET /api/trips/zones
func (h *AnalyticsHandler) GetZoneSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/trips/zones").Observe(duration.Seconds())
	}()

	filter, ok := h.parseSummaryFilter(w, r)
	if !ok {
		return
	}

	summaries, err := h.repo.GetZoneSummaries(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_ZONES_ERROR] Failed to get zone summaries", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/trips/zones")
		h.sendError(w, r, "failed to retrieve zone summaries", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/trips/zones", "GET", "200")
	h.sendJSON(w, summaries, http.StatusOK)
}

// GetConditionSummaries handles GET /api/trips/conditions
func (h *AnalyticsHandler) GetConditionSummaries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/trips/conditions").Observe(duration.Seconds())
	}()

	filter, ok := h.parseSummaryFilter(w, r)
	if !ok {
		return
	}

	summaries, err := h.repo.GetConditionSummaries(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_CONDITIONS_ERROR] Failed to get condition summaries", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/trips/conditions")
		h.sendError(w, r, "failed to retrieve condition summaries", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/trips/conditions", "GET", "200")
	h.sendJSON(w, summaries, http.StatusOK)
}

// GetQualityReports handles GET /api/quality
func (h *AnalyticsHandler) GetQualityReports(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/quality").Observe(duration.Seconds())
	}()

	pageStr := r.URL.Query().Get("page")
	limitStr := r.URL.Query().Get("limit")

	page := 1
	limit := 100

	if pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	filter := repository.QualityReportFilter{
		RunID:      r.URL.Query().Get("run_id"),
		QualityTag: r.URL.Query().Get("quality_tag"),
		Limit:      limit,
		Offset:     (page - 1) * limit,
	}

	reports, total, err := h.repo.GetQualityReports(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_QUALITY_ERROR] Failed to get quality reports", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/quality")
		h.sendError(w, r, "failed to retrieve quality reports", http.StatusInternalServerError)
		return
	}

	totalPages := (total + limit - 1) / limit

	response := PaginatedResponse{
		Data:       reports,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}

	h.metrics.RecordAPIRequest("/api/quality", "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *AnalyticsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.repo.HealthCheck(ctx); err != nil {
		h.logger.Error(ctx, "[HEALTH_CHECK] Database unreachable", logging.Fields{}, err)
		h.sendJSON(w, map[string]string{
			"status":    "unhealthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, http.StatusServiceUnavailable)
		return
	}

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseSummaryFilter reads the shared date and borough query
// parameters. Returns ok=false after writing the error response.
func (h *AnalyticsHandler) parseSummaryFilter(w http.ResponseWriter, r *http.Request) (repository.SummaryFilter, bool) {
	filter := repository.SummaryFilter{
		Borough: r.URL.Query().Get("borough"),
	}

	if startDateStr := r.URL.Query().Get("start_date"); startDateStr != "" {
		startDate, err := time.Parse("2006-01-02", startDateStr)
		if err != nil {
			h.sendError(w, r, "invalid start_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return filter, false
		}
		filter.StartDate = &startDate
	}

	if endDateStr := r.URL.Query().Get("end_date"); endDateStr != "" {
		endDate, err := time.Parse("2006-01-02", endDateStr)
		if err != nil {
			h.sendError(w, r, "invalid end_date format, expected YYYY-MM-DD", http.StatusBadRequest)
			return filter, false
		}
		filter.EndDate = &endDate
	}

	return filter, true
}

// sendJSON sends a JSON response
func (h *AnalyticsHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *AnalyticsHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all analytics API routes
func (h *AnalyticsHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/trips/daily", h.GetDailySummaries).Methods("GET")
	router.HandleFunc("/api/trips/zones", h.GetZoneSummaries).Methods("GET")
	router.HandleFunc("/api/trips/conditions", h.GetConditionSummaries).Methods("GET")
	router.HandleFunc("/api/quality", h.GetQualityReports).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
