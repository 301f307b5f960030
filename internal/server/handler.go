// Package server exposes the HTTP API: export upload, KPI retrieval, and the
// narrative analysis endpoints with their streaming variants.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/duetlabs/duet/internal/config"
	"github.com/duetlabs/duet/internal/database"
	"github.com/duetlabs/duet/internal/kpi"
	"github.com/duetlabs/duet/internal/narrative"
)

const version = "0.1.0"

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store      database.Store
	conflicts  *narrative.Analyzer
	highlights *narrative.Analyzer
	themes     *narrative.ThemeAnalyzer
	lexicon    kpi.Lexicon
	log        *slog.Logger

	maxUploadBytes  int64
	defaultTimezone string
	windowDays      int
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(
	cfg *config.Config,
	store database.Store,
	conflicts, highlights *narrative.Analyzer,
	themes *narrative.ThemeAnalyzer,
	log *slog.Logger,
) *Handler {
	return &Handler{
		store:           store,
		conflicts:       conflicts,
		highlights:      highlights,
		themes:          themes,
		lexicon:         BuildLexicon(cfg.Lexicon),
		log:             log.With("component", "server"),
		maxUploadBytes:  cfg.Server.MaxUploadBytes,
		defaultTimezone: cfg.Server.DefaultTimezone,
		windowDays:      cfg.Analysis.WindowDays,
	}
}

// BuildLexicon applies configured overrides on top of the built-in word
// lists. Empty override lists keep the defaults; extra stopwords extend them.
func BuildLexicon(cfg config.LexiconConfig) kpi.Lexicon {
	lex := kpi.DefaultLexicon()
	if len(cfg.Affection) > 0 {
		lex.Affection = cfg.Affection
	}
	if len(cfg.Profanity) > 0 {
		lex.Profanity = cfg.Profanity
	}
	if len(cfg.Sexual) > 0 {
		lex.Sexual = cfg.Sexual
	}
	if len(cfg.Thematic) > 0 {
		lex.Thematic = cfg.Thematic
	}
	if cfg.ThematicTag != "" {
		lex.ThematicTag = cfg.ThematicTag
	}
	if cfg.TopN > 0 {
		lex.TopN = cfg.TopN
	}
	return lex.WithExtraStopwords(cfg.ExtraStopwords)
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Warn("Failed to encode JSON response", "error", err)
	}
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// RootResponse represents the root endpoint response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the root endpoint.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{Name: "duet", Version: version})
}

// Version reports the running version.
func (h *Handler) Version(w http.ResponseWriter, _ *http.Request) {
	h.JSON(w, http.StatusOK, map[string]string{"version": version})
}

// DebugResponse carries runtime diagnostics.
type DebugResponse struct {
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	UptimeSecs int64  `json:"uptime_secs"`
}

// Debug reports runtime diagnostics.
func (h *Handler) Debug(w http.ResponseWriter, _ *http.Request) {
	h.JSON(w, http.StatusOK, DebugResponse{
		Version:    version,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		UptimeSecs: int64(time.Since(startTime).Seconds()),
	})
}

var startTime = time.Now()

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	if h.store != nil {
		dbStart := time.Now()
		if err := h.store.Ping(ctx); err != nil {
			checks["database"] = Check{Status: "fail", Message: "connection failed"}
			allHealthy = false
		} else {
			checks["database"] = Check{Status: "pass", Latency: time.Since(dbStart).String()}
		}
	} else {
		checks["database"] = Check{Status: "fail", Message: "not configured"}
		allHealthy = false
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	h.JSON(w, statusCode, HealthResponse{
		Status:    status,
		Version:   version,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
