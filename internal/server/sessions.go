package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/duetlabs/duet/internal/chatlog"
	"github.com/duetlabs/duet/internal/metrics"
	"github.com/duetlabs/duet/internal/narrative"
	"github.com/duetlabs/duet/internal/period"
)

// KPIs returns the session's stored KPI bundle.
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	session, _, ok := h.loadSession(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var bundle json.RawMessage = session.KPIs
	h.JSON(w, http.StatusOK, bundle)
}

// MessagesResponse carries the session's parsed messages.
type MessagesResponse struct {
	SessionID string            `json:"session_id"`
	Timezone  string            `json:"timezone"`
	Messages  []chatlog.Message `json:"messages"`
}

// Messages returns the session's parsed messages.
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	session, msgs, ok := h.loadSession(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	h.JSON(w, http.StatusOK, MessagesResponse{
		SessionID: session.ID,
		Timezone:  session.Timezone,
		Messages:  msgs,
	})
}

// periodOptions builds grouping options from the session defaults and the
// request's tz, window_days, start, and end query parameters.
func (h *Handler) periodOptions(r *http.Request, sessionTZ string) (period.Options, error) {
	opts := period.Options{
		Timezone:   sessionTZ,
		WindowDays: h.windowDays,
		Start:      r.URL.Query().Get("start"),
		End:        r.URL.Query().Get("end"),
	}
	if tz := r.URL.Query().Get("tz"); tz != "" {
		opts.Timezone = tz
	}
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		days, err := strconv.Atoi(raw)
		if err != nil || days < 1 || days > 90 {
			return period.Options{}, errors.New("window_days must be an integer between 1 and 90")
		}
		opts.WindowDays = days
	}
	return opts, nil
}

// groupPeriods loads, filters, and windows the session's messages, writing
// boundary errors itself. The returned location matches the options.
func (h *Handler) groupPeriods(w http.ResponseWriter, r *http.Request) ([]period.Period, *time.Location, bool) {
	session, msgs, ok := h.loadSession(w, r, chi.URLParam(r, "id"))
	if !ok {
		return nil, nil, false
	}

	opts, err := h.periodOptions(r, session.Timezone)
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}

	loc, err := opts.LoadLocation()
	if err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}

	periods, err := period.Group(msgs, opts)
	switch {
	case errors.Is(err, period.ErrInvalidTimezone), errors.Is(err, period.ErrNoMessagesInRange):
		h.Error(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	case err != nil:
		h.Error(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}
	return periods, loc, true
}

// FindingsResponse is the non-streaming conflict/highlight payload: the
// per-period reports plus the same findings regrouped by calendar month.
type FindingsResponse struct {
	Kind    string                   `json:"kind"`
	Periods []narrative.PeriodReport `json:"periods"`
	Months  []narrative.Month        `json:"months"`
}

// Conflicts runs conflict analysis over the session's periods.
func (h *Handler) Conflicts(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, h.conflicts)
}

// Highlights runs highlight analysis over the session's periods.
func (h *Handler) Highlights(w http.ResponseWriter, r *http.Request) {
	h.analyze(w, r, h.highlights)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request, analyzer *narrative.Analyzer) {
	periods, loc, ok := h.groupPeriods(w, r)
	if !ok {
		return
	}

	metrics.AnalysisRequests.WithLabelValues(analyzer.Kind()).Inc()

	reports, err := analyzer.Analyze(r.Context(), periods, loc)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Analysis failed", "kind", analyzer.Kind(), "error", err)
		h.Error(w, http.StatusBadGateway, "analysis backend failed")
		return
	}

	h.JSON(w, http.StatusOK, FindingsResponse{
		Kind:    analyzer.Kind(),
		Periods: reports,
		Months:  narrative.PeriodsToMonths(reports),
	})
}

// DailyThemesResponse is the non-streaming daily theme payload.
type DailyThemesResponse struct {
	Ranges []narrative.ThemeRange `json:"ranges"`
}

// DailyThemes labels each day of the session with a mood and theme.
func (h *Handler) DailyThemes(w http.ResponseWriter, r *http.Request) {
	periods, loc, ok := h.groupPeriods(w, r)
	if !ok {
		return
	}

	metrics.AnalysisRequests.WithLabelValues("daily_themes").Inc()

	ranges, err := h.themes.Analyze(r.Context(), periods, loc)
	if err != nil {
		h.log.ErrorContext(r.Context(), "Daily theme analysis failed", "error", err)
		h.Error(w, http.StatusBadGateway, "analysis backend failed")
		return
	}

	h.JSON(w, http.StatusOK, DailyThemesResponse{Ranges: ranges})
}

// ConflictsStream streams conflict analysis progress as server-sent events.
func (h *Handler) ConflictsStream(w http.ResponseWriter, r *http.Request) {
	h.analyzeStream(w, r, h.conflicts)
}

// HighlightsStream streams highlight analysis progress as server-sent events.
func (h *Handler) HighlightsStream(w http.ResponseWriter, r *http.Request) {
	h.analyzeStream(w, r, h.highlights)
}

func (h *Handler) analyzeStream(w http.ResponseWriter, r *http.Request, analyzer *narrative.Analyzer) {
	periods, loc, ok := h.groupPeriods(w, r)
	if !ok {
		return
	}

	metrics.AnalysisRequests.WithLabelValues(analyzer.Kind()).Inc()

	stream, ok := newSSEWriter(w)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	for progress := range analyzer.Stream(r.Context(), periods, loc) {
		if err := stream.Send(progress); err != nil {
			return
		}
	}
	stream.Done()
}

// DailyThemesStream streams daily theme progress as server-sent events.
func (h *Handler) DailyThemesStream(w http.ResponseWriter, r *http.Request) {
	periods, loc, ok := h.groupPeriods(w, r)
	if !ok {
		return
	}

	metrics.AnalysisRequests.WithLabelValues("daily_themes").Inc()

	stream, ok := newSSEWriter(w)
	if !ok {
		h.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	for progress := range h.themes.Stream(r.Context(), periods, loc) {
		if err := stream.Send(progress); err != nil {
			return
		}
	}
	stream.Done()
}
