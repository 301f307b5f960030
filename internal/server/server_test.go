package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/duetlabs/duet/internal/config"
	"github.com/duetlabs/duet/internal/database"
	"github.com/duetlabs/duet/internal/narrative"
)

const sampleExport = `2024-01-01, 9:00 a.m. - Alice: hey
2024-01-01, 9:01 a.m. - Bob: hey how are you?
2024-01-01, 9:02 a.m. - Alice: doing great
2024-01-02, 10:00 a.m. - Bob: <Media omitted>
`

type stubProvider struct {
	response string
}

func (s stubProvider) Generate(context.Context, string) (string, error) {
	return s.response, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			MaxUploadBytes: 1 << 20,
			AllowedOrigins: []string{"*"},
		},
		Analysis: config.AnalysisConfig{WindowDays: 14},
	}
}

func testServer(t *testing.T, provider narrative.Provider) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := database.NewDB(filepath.Join(t.TempDir(), "duet-test.db"))
	if err != nil {
		t.Fatalf("NewDB() error: %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, log)
	cache := database.NewAnalysisCache(store)

	cfg := testConfig()
	h := NewHandler(cfg,
		store,
		narrative.NewConflictAnalyzer(provider, cache, log, 2),
		narrative.NewHighlightAnalyzer(provider, cache, log, 2),
		narrative.NewThemeAnalyzer(provider, cache, log, 2),
		log,
	)

	srv := httptest.NewServer(NewRouter(h, cfg, log))
	t.Cleanup(srv.Close)
	return srv
}

func uploadExport(t *testing.T, srv *httptest.Server, filename, content, tz string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if tz != "" {
		if err := mw.WriteField("tz", tz); err != nil {
			t.Fatalf("write tz field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := http.Post(srv.URL+"/upload", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /upload error: %v", err)
	}
	return resp
}

func decodeUpload(t *testing.T, resp *http.Response) UploadResponse {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status = %d, body = %s", resp.StatusCode, raw)
	}
	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return out
}

func TestUploadAndKPIs(t *testing.T) {
	srv := testServer(t, stubProvider{})

	up := decodeUpload(t, uploadExport(t, srv, "chat.txt", sampleExport, ""))
	if up.SessionID == "" {
		t.Fatal("empty session id")
	}
	if up.MessageCount != 4 {
		t.Errorf("MessageCount = %d, want 4", up.MessageCount)
	}
	if len(up.Participants) != 2 || up.Participants[0] != "Alice" || up.Participants[1] != "Bob" {
		t.Errorf("Participants = %v", up.Participants)
	}
	if up.KPIs == nil || up.KPIs.Totals.Messages != 4 {
		t.Errorf("KPIs not computed: %+v", up.KPIs)
	}

	resp, err := http.Get(srv.URL + "/sessions/" + up.SessionID + "/kpis")
	if err != nil {
		t.Fatalf("GET kpis error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("kpis status = %d", resp.StatusCode)
	}
	var bundle map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		t.Fatalf("decode kpis: %v", err)
	}
	if _, ok := bundle["totals"]; !ok {
		t.Errorf("kpis payload missing totals: %v", bundle)
	}
}

func TestUploadRejections(t *testing.T) {
	srv := testServer(t, stubProvider{})

	tests := []struct {
		name     string
		filename string
		content  string
		tz       string
	}{
		{"wrong extension", "chat.csv", sampleExport, ""},
		{"no parseable messages", "chat.txt", "just some random text\nwithout headers\n", ""},
		{"invalid timezone", "chat.txt", sampleExport, "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := uploadExport(t, srv, tt.filename, tt.content, tt.tz)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	srv := testServer(t, stubProvider{})

	for _, path := range []string{"/kpis", "/messages", "/conflicts", "/daily-themes"} {
		resp, err := http.Get(srv.URL + "/sessions/does-not-exist" + path)
		if err != nil {
			t.Fatalf("GET %s error: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestMessagesEndpoint(t *testing.T) {
	srv := testServer(t, stubProvider{})
	up := decodeUpload(t, uploadExport(t, srv, "chat.txt", sampleExport, ""))

	resp, err := http.Get(srv.URL + "/sessions/" + up.SessionID + "/messages")
	if err != nil {
		t.Fatalf("GET messages error: %v", err)
	}
	defer resp.Body.Close()

	var out MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(out.Messages) != 4 {
		t.Errorf("len(Messages) = %d, want 4", len(out.Messages))
	}
	if out.Messages[3].HasMedia != true {
		t.Errorf("media message not flagged: %+v", out.Messages[3])
	}
}

func TestConflictsEndpoint(t *testing.T) {
	srv := testServer(t, stubProvider{
		response: `{"total": 1, "findings": [{"date": "2024-01-01", "summary": "minor spat"}]}`,
	})
	up := decodeUpload(t, uploadExport(t, srv, "chat.txt", sampleExport, ""))

	resp, err := http.Get(srv.URL + "/sessions/" + up.SessionID + "/conflicts")
	if err != nil {
		t.Fatalf("GET conflicts error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conflicts status = %d", resp.StatusCode)
	}

	var out FindingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode conflicts: %v", err)
	}
	if out.Kind != "conflict" {
		t.Errorf("Kind = %s, want conflict", out.Kind)
	}
	if len(out.Periods) != 1 || out.Periods[0].Total != 1 {
		t.Errorf("Periods = %+v", out.Periods)
	}
	if len(out.Months) != 1 || out.Months[0].Month != "2024-01" {
		t.Errorf("Months = %+v", out.Months)
	}
}

func TestAnalysisQueryValidation(t *testing.T) {
	srv := testServer(t, stubProvider{})
	up := decodeUpload(t, uploadExport(t, srv, "chat.txt", sampleExport, ""))

	tests := []struct {
		name  string
		query string
	}{
		{"bad window_days", "?window_days=zero"},
		{"window_days out of range", "?window_days=1000"},
		{"invalid timezone", "?tz=Nowhere/Nothing"},
		{"range excludes everything", "?start=2030-01-01&end=2030-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/sessions/" + up.SessionID + "/conflicts" + tt.query)
			if err != nil {
				t.Fatalf("GET error: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestConflictsStream(t *testing.T) {
	srv := testServer(t, stubProvider{response: `{"total": 0, "findings": []}`})
	up := decodeUpload(t, uploadExport(t, srv, "chat.txt", sampleExport, ""))

	resp, err := http.Get(srv.URL + "/sessions/" + up.SessionID + "/conflicts/stream")
	if err != nil {
		t.Fatalf("GET stream error: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %s", ct)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read stream: %v", err)
	}
	body := string(raw)
	if !strings.Contains(body, `"current":`) {
		t.Errorf("stream carries no progress events: %s", body)
	}
	if !strings.HasSuffix(strings.TrimSpace(body), "data: [DONE]") {
		t.Errorf("stream missing terminal sentinel: %s", body)
	}
}

func TestDailyThemesEndpoint(t *testing.T) {
	srv := testServer(t, stubProvider{
		response: `{"2024-01-01": {"mood_pct": 70, "description": "catching up"}}`,
	})
	up := decodeUpload(t, uploadExport(t, srv, "chat.txt", sampleExport, ""))

	resp, err := http.Get(srv.URL + "/sessions/" + up.SessionID + "/daily-themes")
	if err != nil {
		t.Fatalf("GET daily-themes error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("daily-themes status = %d", resp.StatusCode)
	}

	var out DailyThemesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode daily-themes: %v", err)
	}
	if len(out.Ranges) != 1 || len(out.Ranges[0].Days) != 1 {
		t.Fatalf("Ranges = %+v", out.Ranges)
	}
	if out.Ranges[0].Days[0].ColorHex != "#99ff00" {
		t.Errorf("ColorHex = %s, want #99ff00", out.Ranges[0].Days[0].ColorHex)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, stubProvider{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}

	var out HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if out.Status != "healthy" {
		t.Errorf("Status = %s", out.Status)
	}
	if out.Checks["database"].Status != "pass" {
		t.Errorf("database check = %+v", out.Checks["database"])
	}
}
