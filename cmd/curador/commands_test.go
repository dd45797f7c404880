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
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/curador/internal/config"
	"github.com/kalambet/curador/internal/pipeline"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
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

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
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

var ctx = context.Background()

func TestCurateClient(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /curadoria": `{"TÍTULO":"Solos","APROVAÇÃO CURADOR (marcar)":false}`,
	})

	req := pipeline.Request{
		EncodedContent: base64.StdEncoding.EncodeToString([]byte("texto")),
		ContentType:    "text",
		Headers:        []string{"TÍTULO", "APROVAÇÃO CURADOR (marcar)"},
		Category:       "solos",
	}
	values, err := ts.client().Curate(ctx, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := values.Keys(); len(got) != 2 || got[0] != "TÍTULO" {
		t.Errorf("keys = %v, want server order", got)
	}
	if v, _ := values.Get("TÍTULO"); v != "Solos" {
		t.Errorf("TÍTULO = %v, want Solos", v)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body pipeline.Request
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body.Category != "solos" || body.ContentType != "text" || len(body.Headers) != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestCategorizeClient(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /categorize": `{"category":"solos"}`,
	})

	res, err := ts.client().Categorize(ctx, pipeline.Request{EncodedContent: "eA==", ContentType: "text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Category != "solos" {
		t.Errorf("category = %q, want solos", res.Category)
	}
}

func TestCurateClient_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(503)
		w.Write([]byte(`{"error":{"message":"generation backend unavailable","type":"service_unavailable"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	_, err := client.Curate(ctx, pipeline.Request{})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") || !strings.Contains(err.Error(), "unavailable") {
		t.Errorf("error = %q, want status and message", err.Error())
	}
}

func TestKnowledgeAdd_RequestBody(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /knowledge": `{"id":"doc-123","status":"queued"}`,
	})

	resp, err := ts.client().post(ctx, "/knowledge", map[string]any{
		"source": "cli",
		"title":  "Manejo de solos",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["id"] != "doc-123" {
		t.Errorf("id = %q, want doc-123", result["id"])
	}

	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["title"] != "Manejo de solos" {
		t.Errorf("body.title = %v", body["title"])
	}
}

func TestKBAdd_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"kb", "add"})
	err := rootCmd.Execute()
	if err == nil {
		t.Fatal("expected error for missing args")
	}
	if !strings.Contains(err.Error(), "required") {
		t.Errorf("error = %q, want it to mention 'required'", err.Error())
	}
}

func TestCurate_MissingArgs(t *testing.T) {
	defer rootCmd.SetArgs(nil)

	rootCmd.SetArgs([]string{"curate", "--file", "x.pdf"})
	err := rootCmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "required") {
		t.Errorf("err = %v, want a required-flag error", err)
	}
}

func TestListKnowledge_Query(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /knowledge": `[{"id":"doc-1","collection":"BaseCurador","title":"Solos","status":"indexed","created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}]`,
	})

	docs, err := listKnowledgeIn(ctx, ts.client(), "Outra Base", 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "doc-1" || docs[0].Status != "indexed" {
		t.Errorf("docs = %+v", docs)
	}

	path := ts.requests[0].Path
	for _, want := range []string{"limit=5", "offset=10", "collection=Outra+Base"} {
		if !strings.Contains(path, want) {
			t.Errorf("path = %q, want it to contain %q", path, want)
		}
	}
}

func TestPurgeKnowledge_CollectsFailures(t *testing.T) {
	var mu sync.Mutex
	listed := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if r.Method == http.MethodGet {
			w.Header().Set("Content-Type", "application/json")
			if listed == 0 {
				listed++
				w.Write([]byte(`[{"id":"doc-1"},{"id":"doc-2"}]`))
			} else {
				w.Write([]byte(`[]`))
			}
			return
		}
		if r.Method == http.MethodDelete {
			if strings.HasSuffix(r.URL.Path, "doc-1") {
				w.WriteHeader(500)
				w.Write([]byte(`{"error":{"message":"internal error"}}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"status":"deleted"}`))
		}
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "test", httpClient: ts.Client()}

	deleted, failures, err := purgeKnowledge(ctx, client, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 || failures != 1 {
		t.Errorf("deleted, failures = %d, %d, want 1, 1", deleted, failures)
	}
}

func TestStatus_Stopped(t *testing.T) {
	client := &apiClient{
		baseURL:    "http://127.0.0.1:1",
		httpClient: http.DefaultClient,
	}

	_, err := client.get(ctx, "/")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestAPIClientAuth(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /health": `{"status":"ok"}`,
	})

	client := ts.client()
	client.token = "my-secret-token"

	if _, err := client.get(ctx, "/health"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[0].Auth != "Bearer my-secret-token" {
		t.Errorf("auth = %q, want 'Bearer my-secret-token'", ts.requests[0].Auth)
	}

	client.token = ""
	if _, err := client.get(ctx, "/health"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.requests[1].Auth != "" {
		t.Errorf("auth = %q, want none without a token", ts.requests[1].Auth)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"invalid API token","type":"authentication_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "bad-token", httpClient: ts.Client()}

	resp, err := client.get(ctx, "/knowledge")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid API token") {
		t.Errorf("error = %q, want status and message", err.Error())
	}
}

func TestDecodeJSON_PlainErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
		w.Write([]byte("bad gateway\n"))
	}))
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	var result any
	err = decodeJSON(resp, &result)
	if err == nil || !strings.Contains(err.Error(), "502: bad gateway") {
		t.Errorf("err = %v, want trimmed plain body", err)
	}
}

func TestBaseURL(t *testing.T) {
	old := serverURL
	defer func() { serverURL = old }()

	tests := []struct {
		host     string
		override string
		want     string
	}{
		{"127.0.0.1", "", "http://127.0.0.1:8000"},
		{"0.0.0.0", "", "http://127.0.0.1:8000"},
		{"", "", "http://127.0.0.1:8000"},
		{"curador.local", "", "http://curador.local:8000"},
		{"0.0.0.0", "http://remote:9000/", "http://remote:9000"},
	}
	for _, tt := range tests {
		serverURL = tt.override
		cfg := config.Config{}
		cfg.Server.Host = tt.host
		cfg.Server.Port = 8000
		if got := baseURL(cfg); got != tt.want {
			t.Errorf("baseURL(%q, %q) = %q, want %q", tt.host, tt.override, got, tt.want)
		}
	}
}

func TestFileRequest(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "artigo.PDF")
	txt := filepath.Join(dir, "notas.md")
	os.WriteFile(pdf, []byte("%PDF-1.4"), 0o644)
	os.WriteFile(txt, []byte("olá"), 0o644)

	req, err := fileRequest(pdf)
	if err != nil {
		t.Fatal(err)
	}
	if req.ContentType != "pdf" {
		t.Errorf("content type = %q, want pdf", req.ContentType)
	}

	req, err = fileRequest(txt)
	if err != nil {
		t.Fatal(err)
	}
	if req.ContentType != "text" {
		t.Errorf("content type = %q, want text", req.ContentType)
	}
	if decoded, _ := base64.StdEncoding.DecodeString(req.EncodedContent); string(decoded) != "olá" {
		t.Errorf("decoded = %q, want olá", decoded)
	}

	if _, err := fileRequest(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" TÍTULO, RESUMO ,,FEEDBACK DO CURADOR (escrever) ")
	want := []string{"TÍTULO", "RESUMO", "FEEDBACK DO CURADOR (escrever)"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Server.APIToken = "secret"

	keys := config.ShowAll(cfg)
	var port, token string
	for _, k := range keys {
		switch k.Key {
		case "server.port":
			port = k.Value
		case "server.api_token":
			token = k.Value
		}
	}
	if port != "4000" {
		t.Errorf("server.port = %q, want 4000", port)
	}
	if token != "(set)" {
		t.Errorf("server.api_token = %q, want (set)", token)
	}
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
		if got := countLabel(tt.count, tt.limit); got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}
