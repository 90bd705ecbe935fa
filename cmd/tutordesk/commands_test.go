package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tutordesk/internal/config"
	"github.com/kalambet/tutordesk/internal/ingest"
	"github.com/kalambet/tutordesk/internal/knowledge"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found_error"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

var ctx = context.Background()

func TestBuildIngestRequest_Text(t *testing.T) {
	req, err := buildIngestRequest("A secretaria abre às 9h", "", "", "", "secretaria, horários,")
	require.NoError(t, err)
	assert.Equal(t, ingest.TypeText, req.ContentType)
	assert.Equal(t, "A secretaria abre às 9h", req.Content)
	assert.Equal(t, "cli", req.Source)
	assert.Equal(t, []string{"secretaria", "horários"}, req.Tags)
}

func TestBuildIngestRequest_URL(t *testing.T) {
	req, err := buildIngestRequest("", "https://example.com/regulamento", "", "Regulamento", "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/regulamento", req.URL)
	assert.Empty(t, req.ContentType)
	assert.Empty(t, req.Content)
	assert.Nil(t, req.Tags)
}

func TestBuildIngestRequest_Files(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "precario.PDF")
	htmlPath := filepath.Join(dir, "faq.html")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 fake"), 0o600))
	require.NoError(t, os.WriteFile(htmlPath, []byte("<p>olá</p>"), 0o600))

	req, err := buildIngestRequest("", "", pdfPath, "", "")
	require.NoError(t, err)
	assert.Equal(t, ingest.TypePDF, req.ContentType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake")), req.Content)
	assert.Equal(t, "precario.PDF", req.Title)

	req, err = buildIngestRequest("", "", htmlPath, "FAQ", "")
	require.NoError(t, err)
	assert.Equal(t, ingest.TypeHTML, req.ContentType)
	assert.Equal(t, "<p>olá</p>", req.Content)
	assert.Equal(t, "FAQ", req.Title)

	_, err = buildIngestRequest("", "", filepath.Join(dir, "missing.txt"), "", "")
	assert.ErrorContains(t, err, "reading file")
}

func TestIngestCommand_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"ingest"})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestIngestRequestReachesServer(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /knowledge": `{"id":"doc-123","status":"pending"}`,
	})

	req, err := buildIngestRequest("hello world", "", "", "", "foo")
	require.NoError(t, err)

	var result struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, ts.client().call(ctx, http.MethodPost, "/knowledge", req, &result))
	assert.Equal(t, "doc-123", result.ID)

	reqs := ts.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer test-token", reqs[0].Auth)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &body))
	assert.Equal(t, "cli", body["source"])
	assert.Equal(t, "hello world", body["content"])
	assert.Equal(t, "text", body["content_type"])
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	resp, err := client.get(ctx, "/health")
	require.NoError(t, err)
	resp.Body.Close()

	reqs := ts.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer my-secret-token", reqs[0].Auth)
}

func TestAPIClient_ServerDown(t *testing.T) {
	client := &apiClient{baseURL: "http://127.0.0.1:1", token: "t", httpClient: &http.Client{Timeout: time.Second}}
	_, err := client.get(ctx, "/health")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not reachable")
}

func TestDecodeJSON_ErrorEnvelope(t *testing.T) {
	ts := newTestServer(t, nil)

	err := ts.client().call(ctx, http.MethodGet, "/knowledge/nope", nil, &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "not found")
}

func TestDecodeJSON_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &apiClient{baseURL: srv.URL, token: "t", httpClient: srv.Client()}
	var out map[string]any
	require.NoError(t, client.call(ctx, http.MethodDelete, "/knowledge/doc-1", nil, &out))
	assert.Nil(t, out)
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	assert.Equal(t, "test message", colorize(colorGreen, "test message"))

	noColor = false
	assert.Contains(t, colorize(colorGreen, "test message"), "\033[")
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Proxy.OpenRouterAPIKey = "sk-secret"

	got := map[string]string{}
	for _, k := range config.ShowAll(cfg) {
		got[k.Key] = k.Value
	}
	assert.Equal(t, "4000", got["server.port"])
	assert.Equal(t, "********", got["proxy.openrouter_api_key"])
}

func TestClassifyCommand(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"classify", "Quero", "falar", "com", "um", "humano"})
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	}()

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "intent:     general")
	assert.Contains(t, out.String(), "escalation: explicit (ticket)")
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, countLabel(tt.count, tt.limit))
	}
}

func TestPrintSources(t *testing.T) {
	old := noColor
	noColor = true
	defer func() { noColor = old }()

	score := 0.5
	var out bytes.Buffer
	printSources(&out, []knowledge.Source{{ID: "d1", Title: "Horário", Snippet: "Abre às 9h", Score: &score, URL: "https://x"}})
	assert.Equal(t, "[1] Horário (score: 0.50)\n    Abre às 9h\n    https://x\n", out.String())

	out.Reset()
	printSources(&out, nil)
	assert.Equal(t, "No results found.\n", out.String())
}
