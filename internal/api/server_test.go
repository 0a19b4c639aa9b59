package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moasq/swiftsmith/internal/llm"
	"github.com/moasq/swiftsmith/internal/orchestration"
	"github.com/moasq/swiftsmith/internal/recovery"
	"github.com/moasq/swiftsmith/internal/storage"
	"github.com/moasq/swiftsmith/internal/swift"
)

const appSource = "import SwiftUI\n\n@main\nstruct NotesApp: App {\n    var body: some Scene {\n        WindowGroup {\n            Text(\"Notes\")\n        }\n    }\n}\n"

type staticLLM struct{ text string }

func (s staticLLM) Complete(context.Context, llm.Hint, string) (llm.Completion, error) {
	return llm.Completion{Text: s.text, Provider: "static", Tried: []string{"static"}}, nil
}

func newTestServer(t *testing.T, reply string, withDB bool) (*httptest.Server, *storage.DB) {
	t.Helper()
	var opts []orchestration.Option
	var serverOpts []Option
	var db *storage.DB
	if withDB {
		var err error
		db, err = storage.Open(filepath.Join(t.TempDir(), "history.db"))
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		opts = append(opts, orchestration.WithHistory(db))
		serverOpts = append(serverOpts, WithHistory(db))
	}
	o := orchestration.New(staticLLM{text: reply}, opts...)
	serverOpts = append(serverOpts, WithProviders([]string{"static"}))
	srv := httptest.NewServer(NewServer(":0", o, serverOpts...).Router())
	t.Cleanup(srv.Close)
	return srv, db
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func filesReply(t *testing.T, files ...swift.File) string {
	t.Helper()
	b, err := json.Marshal(map[string][]swift.File{"files": files})
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Status    string   `json:"status"`
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"static"}, body.Providers)
}

func TestGenerate(t *testing.T) {
	srv, db := newTestServer(t, filesReply(t, swift.File{Path: "NotesApp.swift", Content: appSource}), true)

	resp := postJSON(t, srv.URL+"/v1/generate", generateRequest{Description: "a notes app", AppName: "Notes"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var res orchestration.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Metadata.Success)
	assert.False(t, res.Metadata.FallbackUsed)
	assert.Equal(t, "Notes", res.AppName)
	require.Len(t, res.Files, 1)
	assert.Equal(t, appSource, res.Files[0].Content)

	gens, err := db.RecentGenerations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, res.Metadata.RequestID, gens[0].RequestID)
}

func TestGenerateFallbackStillReturns200(t *testing.T) {
	srv, _ := newTestServer(t, "no code here", false)
	resp := postJSON(t, srv.URL+"/v1/generate", generateRequest{Description: "a notes app"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res orchestration.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.False(t, res.Metadata.Success)
	assert.True(t, res.Metadata.FallbackUsed)
	assert.NotEmpty(t, res.Files)
}

func TestBadRequests(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"empty description", "/v1/generate", `{"description":"  "}`, "description is required"},
		{"unknown field", "/v1/generate", `{"prompt":"x"}`, "unknown field"},
		{"malformed", "/v1/generate", `{`, "invalid request body"},
		{"modify without files", "/v1/modify", `{"request":"x"}`, "files is required"},
		{"modify without request", "/v1/modify", `{"files":[{"path":"A.swift","content":"x"}]}`, "request is required"},
		{"recover without errors", "/v1/recover", `{"files":[{"path":"A.swift","content":"x"}]}`, "errors is required"},
		{"file without path", "/v1/repair", `{"files":[{"path":"","content":"x"}]}`, "files[0]: path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+tt.path, "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Contains(t, body.Error, tt.want)
		})
	}
}

func TestBodyTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	big := `{"description":"` + strings.Repeat("a", maxBodyBytes+1) + `"}`
	resp, err := http.Post(srv.URL+"/v1/generate", "application/json", strings.NewReader(big))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestModify(t *testing.T) {
	updated := strings.Replace(appSource, `Text("Notes")`, `Text("My Notes")`, 1)
	srv, _ := newTestServer(t, filesReply(t, swift.File{Path: "NotesApp.swift", Content: updated}), false)

	resp := postJSON(t, srv.URL+"/v1/modify", modifyRequest{
		Files:   []swift.File{{Path: "NotesApp.swift", Content: appSource}},
		Request: "rename the title",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res orchestration.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.True(t, res.Metadata.Success)
	require.Len(t, res.Files, 1)
	assert.Contains(t, res.Files[0].Content, "My Notes")
}

func TestRecover(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	item := swift.File{Path: "Item.swift", Content: "import Foundation\n\nstruct Item {\n    let id: Int\n}\n"}
	resp := postJSON(t, srv.URL+"/v1/recover", recoverRequest{
		Errors: []string{"Item.swift:3:8: error: type 'Item' does not conform to protocol 'Hashable'"},
		Files:  []swift.File{{Path: "NotesApp.swift", Content: appSource}, item},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out recovery.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.True(t, out.Success)
	assert.Equal(t, recovery.Succeeded, out.State)
	i := swift.Find(out.Files, "Item.swift")
	require.GreaterOrEqual(t, i, 0)
	assert.Contains(t, out.Files[i].Content, "struct Item: Hashable {")
}

func TestRepair(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	resp := postJSON(t, srv.URL+"/v1/repair", repairRequest{Files: []swift.File{
		{Path: "A.swift", Content: "import SwiftUI\n\nlet title = 'Hello';\n"},
		{Path: "B.swift", Content: appSource},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out repairResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"A.swift"}, out.Changed)
	assert.Contains(t, out.Files[0].Content, `let title = "Hello"`)
	assert.NotContains(t, out.Files[0].Content, ";")
	assert.Equal(t, appSource, out.Files[1].Content)
	assert.NotEmpty(t, out.Fixes)
}

func TestClassify(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	resp := postJSON(t, srv.URL+"/v1/classify", classifyRequest{Errors: []string{
		"Item.swift:3:8: error: type 'Item' does not conform to protocol 'Hashable'",
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Fingerprint string   `json:"fingerprint"`
		Categories  []string `json:"categories"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, []string{"protocol_conformance"}, out.Categories)
	assert.Len(t, out.Fingerprint, 16)
}

func TestStatsAndHistory(t *testing.T) {
	srv, _ := newTestServer(t, filesReply(t, swift.File{Path: "NotesApp.swift", Content: appSource}), true)
	for i := 0; i < 2; i++ {
		resp := postJSON(t, srv.URL+"/v1/generate", generateRequest{Description: "notes"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/v1/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats statsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 2, stats.Process.Requests)
	require.NotNil(t, stats.History)
	assert.Equal(t, 2, stats.History.Generations)

	resp2, err := http.Get(srv.URL + "/v1/history?limit=1")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var gens []storage.Generation
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&gens))
	assert.Len(t, gens, 1)

	resp3, err := http.Get(srv.URL + "/v1/history?limit=abc")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)
}

func TestHistoryDisabled(t *testing.T) {
	srv, _ := newTestServer(t, "", false)
	resp, err := http.Get(srv.URL + "/v1/history")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	o := orchestration.New(staticLLM{})
	s := NewServer("127.0.0.1:0", o)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	cancel()
	assert.NoError(t, <-done)
}
