package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansik-ai/hansik/internal/config"
	"github.com/hansik-ai/hansik/internal/pipeline"
	"github.com/hansik-ai/hansik/internal/session"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type fakeService struct {
	lastReq  pipeline.Request
	resp     *pipeline.Response
	sessions session.Store
}

func (f *fakeService) Ask(ctx context.Context, req pipeline.Request) *pipeline.Response {
	f.lastReq = req
	return f.resp
}

func (f *fakeService) Sessions() session.Store { return f.sessions }

func newTestServer(t *testing.T) (*fakeService, http.Handler) {
	t.Helper()
	cfg := config.Default()
	svc := &fakeService{
		resp: &pipeline.Response{
			Answer: "김치찌개 안내",
			Intent: "recipe",
			Branch: "has_docs",
		},
		sessions: session.NewMemoryStore(5, 30*time.Minute),
	}
	return svc, New(svc, &cfg, testLog()).Router()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAskOK(t *testing.T) {
	svc, h := newTestServer(t)

	rec := postJSON(t, h, "/ask", map[string]any{"query": "김치찌개 레시피", "k": 8})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "김치찌개 안내", resp.Answer)
	assert.Equal(t, "김치찌개 레시피", svc.lastReq.Query)
	assert.Equal(t, 8, svc.lastReq.K)
	assert.Equal(t, defaultMaxImages, svc.lastReq.MaxImages, "omitted max_images defaults")
}

func TestAskValidatesK(t *testing.T) {
	_, h := newTestServer(t)

	rec := postJSON(t, h, "/ask", map[string]any{"query": "질문", "k": 99})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestAskValidatesMaxImages(t *testing.T) {
	_, h := newTestServer(t)
	rec := postJSON(t, h, "/ask", map[string]any{"query": "질문", "max_images": 13})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/ask", map[string]any{"query": "질문", "max_images": 0})
	assert.Equal(t, http.StatusOK, rec.Code, "explicit zero disables images")
}

func TestAskRejectsMalformedBody(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/ask", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	svc, h := newTestServer(t)
	_, err := svc.sessions.Create(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.ActiveSessions)
	assert.Equal(t, "balanced", resp.LowConfMode)
}

func TestSessionHistoryAndDelete(t *testing.T) {
	svc, h := newTestServer(t)
	ctx := context.Background()
	sid, _ := svc.sessions.Create(ctx)
	require.NoError(t, svc.sessions.AddMessage(ctx, sid, "user", "질문"))

	req := httptest.NewRequest(http.MethodGet, "/session/"+sid+"/history", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "질문")

	req = httptest.NewRequest(http.MethodDelete, "/session/"+sid, nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/session/"+sid+"/history", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionCleanup(t *testing.T) {
	_, h := newTestServer(t)
	rec := postJSON(t, h, "/session/cleanup", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "active_sessions")
}
