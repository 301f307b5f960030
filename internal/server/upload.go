package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duetlabs/duet/internal/chatlog"
	"github.com/duetlabs/duet/internal/database"
	"github.com/duetlabs/duet/internal/kpi"
	"github.com/duetlabs/duet/internal/metrics"
)

// UploadResponse is returned after a successful export upload.
type UploadResponse struct {
	SessionID    string      `json:"session_id"`
	Participants []string    `json:"participants"`
	MessageCount int         `json:"message_count"`
	Timezone     string      `json:"timezone"`
	KPIs         *kpi.Bundle `json:"kpis"`
}

// Upload accepts a multipart chat export (.txt), parses it, computes the KPI
// bundle, and creates a session. The optional "tz" form field names the IANA
// timezone the export's timestamps belong to.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		h.Error(w, http.StatusBadRequest, "invalid multipart form or upload too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		h.Error(w, http.StatusBadRequest, "missing form file \"file\"")
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".txt" {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		h.Error(w, http.StatusBadRequest, "only .txt chat exports are supported")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		h.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	tzName := r.FormValue("tz")
	if tzName == "" {
		tzName = h.defaultTimezone
	}
	loc := time.UTC
	if tzName != "" {
		loc, err = time.LoadLocation(tzName)
		if err != nil {
			metrics.UploadsTotal.WithLabelValues("rejected").Inc()
			h.Error(w, http.StatusBadRequest, "invalid timezone: "+tzName)
			return
		}
	}

	msgs := chatlog.ParseExport(string(raw), loc)
	if len(msgs) == 0 {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		h.Error(w, http.StatusBadRequest, "no messages could be parsed from the export")
		return
	}

	bundle := kpi.Compute(msgs, h.lexicon)

	msgsJSON, err := json.Marshal(msgs)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to encode messages")
		return
	}
	kpisJSON, err := json.Marshal(bundle)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to encode KPIs")
		return
	}

	session := &database.Session{
		ID:           uuid.NewString(),
		Timezone:     tzName,
		MessageCount: len(msgs),
		Messages:     msgsJSON,
		KPIs:         kpisJSON,
	}
	if err := h.store.SaveSession(r.Context(), session); err != nil {
		h.log.ErrorContext(r.Context(), "Failed to save session", "error", err)
		h.Error(w, http.StatusInternalServerError, "failed to save session")
		return
	}

	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	metrics.MessagesParsed.Add(float64(len(msgs)))
	h.log.InfoContext(r.Context(), "Session created",
		"session_id", session.ID, "message_count", len(msgs), "timezone", tzName)

	h.JSON(w, http.StatusCreated, UploadResponse{
		SessionID:    session.ID,
		Participants: bundle.Participants,
		MessageCount: len(msgs),
		Timezone:     tzName,
		KPIs:         bundle,
	})
}

// loadSession fetches and decodes one session, writing the error response
// itself when the session is missing or corrupt. The bool reports success.
func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request, id string) (*database.Session, []chatlog.Message, bool) {
	session, err := h.store.GetSession(r.Context(), id)
	if errors.Is(err, database.ErrSessionNotFound) {
		h.Error(w, http.StatusNotFound, "session not found")
		return nil, nil, false
	}
	if err != nil {
		h.log.ErrorContext(r.Context(), "Failed to load session", "session_id", id, "error", err)
		h.Error(w, http.StatusInternalServerError, "failed to load session")
		return nil, nil, false
	}

	var msgs []chatlog.Message
	if err := json.Unmarshal(session.Messages, &msgs); err != nil {
		h.log.ErrorContext(r.Context(), "Session messages are corrupt", "session_id", id, "error", err)
		h.Error(w, http.StatusInternalServerError, "session data is corrupt")
		return nil, nil, false
	}
	return session, msgs, true
}
