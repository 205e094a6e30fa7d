package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/socialdesk/moddesk/automod/setstore"
	"github.com/socialdesk/moddesk/util/cliutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := cliutil.SetupDatabase("sqlite://:memory:", 1, logger)
	require.NoError(t, err)
	srv, err := NewServer(db, Config{Logger: logger, MetricsRegisterer: prometheus.NewRegistry()})
	require.NoError(t, err)
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, user string, body any) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(actorHeader, user)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

const spamRule = `{
	"name": "spam",
	"priority": 10,
	"triggerType": "KEYWORD_MATCH",
	"targetTypes": ["post"],
	"conditions": [{"type": "keyword", "keywords": ["spam"]}],
	"actions": [{"type": "flag", "flag": "spam"}, {"type": "notify", "target": "moderators", "message": "{target} by {owner}"}],
	"isActive": true
}`

func TestHealth(t *testing.T) {
	srv := testServer(t)
	rec := doJSON(t, srv, http.MethodGet, "/_health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRulesAndProcessing(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/v1/rules", "", map[string]any{
		"name":        "broken",
		"triggerType": "KEYWORD_MATCH",
		"targetTypes": []string{"post"},
		"conditions":  []any{},
		"actions":     []any{map[string]any{"type": "flag", "flag": "x"}},
	})
	assert.Equal(http.StatusBadRequest, rec.Code)
	errResp := decode[GenericError](t, rec)
	assert.Contains(errResp.Details, "conditions must be a non-empty array")

	rec = doJSON(t, srv, http.MethodPost, "/v1/rules", "", json.RawMessage(spamRule))
	require.Equal(t, http.StatusCreated, rec.Code)
	rule := decode[map[string]any](t, rec)
	ruleID := rule["id"].(string)
	assert.NotEmpty(ruleID)

	rec = doJSON(t, srv, http.MethodGet, "/v1/rules/"+ruleID, "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodGet, "/v1/rules/missing", "", nil)
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/v1/users/u1", "", map[string]any{"roles": []string{}})
	assert.Equal(http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPut, "/v1/content/p1", "", map[string]any{
		"type":    "post",
		"ownerId": "u1",
		"body":    "buy spam today",
		"process": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[ProcessOutput](t, rec)
	assert.Equal("post/p1", out.Target)
	require.Len(t, out.Outcomes, 1)
	assert.Equal(ruleID, out.Outcomes[0].RuleID)
	assert.Equal("COMPLETED", string(out.Outcomes[0].Status))
	assert.Len(out.Outcomes[0].Results, 2)

	rec = doJSON(t, srv, http.MethodGet, "/v1/flags", "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "post/p1")

	rec = doJSON(t, srv, http.MethodGet, "/v1/rules/"+ruleID+"/statistics?days=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(1.0, stats["triggerCount"])
	assert.Equal(1.0, stats["successRate"])

	rec = doJSON(t, srv, http.MethodGet, "/v1/statistics?days=abc", "", nil)
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/actions?rule="+ruleID, "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), "post/p1")

	rec = doJSON(t, srv, http.MethodPost, "/v1/content/missing/process", "", nil)
	assert.Equal(http.StatusNotFound, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/rules/"+ruleID+"/deactivate", "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/v1/content/p1/process", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(decode[ProcessOutput](t, rec).Outcomes)

	rec = doJSON(t, srv, http.MethodDelete, "/v1/rules/"+ruleID, "", nil)
	assert.Equal(http.StatusNoContent, rec.Code)
}

func TestWorkflowEndpoints(t *testing.T) {
	assert := assert.New(t)
	srv := testServer(t)

	doJSON(t, srv, http.MethodPut, "/v1/users/author", "", map[string]any{"roles": []string{}})
	doJSON(t, srv, http.MethodPut, "/v1/users/ed", "", map[string]any{"roles": []string{"editor"}})
	rec := doJSON(t, srv, http.MethodPut, "/v1/content/c1", "", map[string]any{
		"type":    "post",
		"ownerId": "author",
		"body":    "draft",
		"title":   "Old",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows", "author", map[string]any{
		"contentId": "c1",
		"changes":   map[string]any{"title": "New"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	wf := decode[map[string]any](t, rec)
	id := wf["id"].(string)
	assert.Equal("pending", wf["status"])

	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows/"+id+"/approve", "author", nil)
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows/"+id+"/reject", "ed", map[string]any{})
	assert.Equal(http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows/"+id+"/reject", "ed", map[string]any{"comment": "no"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal("rejected", decode[map[string]any](t, rec)["status"])

	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows/"+id+"/approve", "ed", nil)
	assert.Equal(http.StatusConflict, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows/"+id+"/reject", "ed", map[string]any{})
	assert.Equal(http.StatusConflict, rec.Code)
	rec = doJSON(t, srv, http.MethodPost, "/v1/workflows/"+id+"/approve", "ghost", nil)
	assert.Equal(http.StatusForbidden, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/workflows?status=rejected", "", nil)
	assert.Equal(http.StatusOK, rec.Code)
	assert.Contains(rec.Body.String(), id)

	rec = doJSON(t, srv, http.MethodGet, "/v1/workflows/nope", "", nil)
	assert.Equal(http.StatusNotFound, rec.Code)
}

func TestValidateDrafts(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(p, []byte("["+spamRule+`, {"name": "empty", "triggerType": "RATE_LIMIT", "targetTypes": ["post"], "conditions": [], "actions": []}]`), 0o644))
	drafts, err := loadRuleDrafts(p)
	require.NoError(t, err)
	require.Len(t, drafts, 2)

	var buf bytes.Buffer
	err = validateDrafts(&buf, drafts)
	assert.Error(err)
	assert.Contains(buf.String(), "OK\t0\tspam")
	assert.Contains(buf.String(), "INVALID\t1\tempty")
	assert.Contains(buf.String(), "conditions must be a non-empty array")

	assert.NoError(validateDrafts(&buf, drafts[:1]))
}

func TestMatchLines(t *testing.T) {
	assert := assert.New(t)

	p := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, os.WriteFile(p, []byte("["+spamRule+"]"), 0o644))
	drafts, err := loadRuleDrafts(p)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng, err := offlineEngine(drafts, setstore.NewMemSetStore(), logger)
	require.NoError(t, err)

	var out bytes.Buffer
	in := strings.NewReader("hello there\nthis is SPAM\n")
	assert.NoError(matchLines(context.Background(), eng, "u1", in, &out))
	assert.Equal("MATCH\tspam\tthis is SPAM\n", out.String())
}

func TestTokenLines(t *testing.T) {
	sets := setstore.NewMemSetStore()
	sets.Put("bad-words", []string{"scam"})

	var out bytes.Buffer
	err := tokenLines(context.Background(), sets, "bad-words", strings.NewReader("a SCAM offer\nnothing here\n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "MATCH\tscam\ta SCAM offer\n", out.String())
}
