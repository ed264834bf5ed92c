package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/server"
	"github.com/tgienger/cronocelda/internal/timeline"
)

type fakeSource struct {
	atts []models.Attachment
	err  error
}

func (f fakeSource) Attachments(context.Context, string) ([]models.Attachment, error) {
	return f.atts, f.err
}

type fakeAuth map[string]models.User

func (f fakeAuth) Authorize(_ context.Context, token string) (models.User, error) {
	u, ok := f[token]
	if !ok {
		return models.User{}, auth.ErrInvalidToken
	}
	if u.Email == "eve@example.com" {
		return u, auth.ErrNotAllowed
	}
	return u, nil
}

type fakeSummarizer struct{ got []models.Milestone }

func (f *fakeSummarizer) Summarize(_ context.Context, ms []models.Milestone) (string, error) {
	f.got = ms
	return "It went well.", nil
}

type fixture struct {
	tl      *timeline.Timeline
	handler http.Handler
	general models.Category
	summary *fakeSummarizer
}

func newFixture(t *testing.T, src fakeSource) *fixture {
	t.Helper()
	tl := timeline.New(timeline.NewRegistry(nil), zerolog.Nop())
	general, err := tl.AddCategory("General")
	require.NoError(t, err)

	syncer := timeline.NewSyncer(tl, src, timeline.NewDispatcher(nil, nil, zerolog.Nop()), zerolog.Nop())
	sum := &fakeSummarizer{}
	s := server.New(server.Options{
		Syncer:         syncer,
		Summarizer:     sum,
		Auth:           fakeAuth{"good": {UID: "1", Email: "ana@example.com"}, "eve": {UID: "2", Email: "eve@example.com"}},
		AllowedOrigins: []string{"*"},
		Log:            zerolog.Nop(),
	})
	t.Cleanup(syncer.Dispatcher().Wait)
	return &fixture{tl: tl, handler: s.Handler(), general: general, summary: sum}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func seed(f *fixture) {
	f.tl.Insert(models.Milestone{ID: "a", Name: "Kickoff", OccurredAt: time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), Category: f.general})
	f.tl.Insert(models.Milestone{ID: "b", Name: "Launch", OccurredAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Category: f.general})
}

func TestListMilestones(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)

	rec := f.do(t, http.MethodGet, "/api/milestones?range=all", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[server.MilestoneList](t, rec)
	require.Len(t, list.Milestones, 2)
	assert.Equal(t, "b", list.Milestones[0].ID)
	assert.Equal(t, time.Date(2022, 12, 10, 0, 0, 0, 0, time.UTC), list.Range.Start.UTC())

	rec = f.do(t, http.MethodGet, "/api/milestones?q=kick", "", nil)
	list = decodeBody[server.MilestoneList](t, rec)
	require.Len(t, list.Milestones, 1)
	assert.Equal(t, "a", list.Milestones[0].ID)
}

func TestGetMilestone(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)

	rec := f.do(t, http.MethodGet, "/api/milestones/a", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Kickoff", decodeBody[models.Milestone](t, rec).Name)

	rec = f.do(t, http.MethodGet, "/api/milestones/zzz", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWritesRequireAllowedUser(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)
	body := map[string]string{"tag": "launch"}

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/milestones/a/tags", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/milestones/a/tags", "forged", body).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/milestones/a/tags", "eve", body).Code)

	m, _ := f.tl.Get("a")
	assert.Empty(t, m.History)

	rec := f.do(t, http.MethodPost, "/api/milestones/a/tags", "good", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decodeBody[models.Milestone](t, rec).Tags, "launch")
}

func TestTagLifecycle(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)

	f.do(t, http.MethodPost, "/api/milestones/a/tags", "good", map[string]string{"tag": "design"})
	rec := f.do(t, http.MethodDelete, "/api/milestones/a/tags/design", "good", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	m := decodeBody[models.Milestone](t, rec)
	assert.NotContains(t, m.Tags, "design")
	assert.Len(t, m.History, 2)

	rec = f.do(t, http.MethodPost, "/api/milestones/a/tags", "good", map[string]string{"tag": " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveTagWithReservedCharacters(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)

	for _, tag := range []string{"ui/ux", "road map", "50%"} {
		rec := f.do(t, http.MethodPost, "/api/milestones/a/tags", "good", map[string]string{"tag": tag})
		require.Equal(t, http.StatusOK, rec.Code, tag)

		rec = f.do(t, http.MethodDelete, "/api/milestones/a/tags/"+url.PathEscape(tag), "good", nil)
		require.Equal(t, http.StatusOK, rec.Code, tag)
		assert.NotContains(t, decodeBody[models.Milestone](t, rec).Tags, tag)
	}

	m, _ := f.tl.Get("a")
	assert.Empty(t, m.Tags)
	assert.Len(t, m.History, 6)
}

func TestPatchMilestone(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)
	events, err := f.tl.AddCategory("Events")
	require.NoError(t, err)

	rec := f.do(t, http.MethodPatch, "/api/milestones/a", "good", map[string]any{
		"name":        "Kickoff meeting",
		"categoryId":  events.ID,
		"isImportant": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	m := decodeBody[models.Milestone](t, rec)
	assert.Equal(t, "Kickoff meeting", m.Name)
	assert.Equal(t, events, m.Category)
	assert.True(t, m.IsImportant)
	assert.Len(t, m.History, 3)

	rec = f.do(t, http.MethodPatch, "/api/milestones/a", "good", map[string]any{"isImportant": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[models.Milestone](t, rec).History, 3)

	rec = f.do(t, http.MethodPatch, "/api/milestones/a", "good", map[string]any{"categoryId": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCategories(t *testing.T) {
	f := newFixture(t, fakeSource{})
	seed(f)

	rec := f.do(t, http.MethodPost, "/api/categories", "good", map[string]string{"name": "Docs", "color": "#123456"})
	require.Equal(t, http.StatusCreated, rec.Code)
	docs := decodeBody[models.Category](t, rec)
	assert.Equal(t, "#123456", docs.Color)

	rec = f.do(t, http.MethodPatch, "/api/categories/"+f.general.ID, "good", map[string]string{"color": "#fff"})
	require.Equal(t, http.StatusOK, rec.Code)
	m, _ := f.tl.Get("a")
	assert.Equal(t, "#fff", m.Category.Color)

	rec = f.do(t, http.MethodPatch, "/api/categories/"+f.general.ID, "good", map[string]string{"color": "blue"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/categories", "", nil)
	assert.Len(t, decodeBody[[]models.Category](t, rec), 2)
}

func TestSelectCard(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, fakeSource{atts: []models.Attachment{
		{ID: "1", FileName: "plan.pdf", MimeType: "application/pdf", Date: &date},
	}})

	rec := f.do(t, http.MethodPost, "/api/cards/c1/select", "good", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeBody[map[string]int](t, rec)["loaded"])

	failing := newFixture(t, fakeSource{err: errors.New("boom")})
	rec = failing.do(t, http.MethodPost, "/api/cards/c1/select", "good", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestUpload(t *testing.T) {
	f := newFixture(t, fakeSource{})

	rec := f.do(t, http.MethodPost, "/api/milestones", "good", map[string]any{
		"name":       "Report",
		"categoryId": f.general.ID,
		"files":      []map[string]any{{"name": "q1.pdf", "type": "application/pdf", "size": 2048}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	m := decodeBody[models.Milestone](t, rec)
	require.Len(t, m.AssociatedFiles, 1)
	assert.Equal(t, models.FileDocument, m.AssociatedFiles[0].Type)
	assert.Equal(t, 1, f.tl.Len())

	rec = f.do(t, http.MethodPost, "/api/milestones", "good", map[string]any{"categoryId": f.general.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	f := newFixture(t, fakeSource{})

	rec := f.do(t, http.MethodGet, "/api/summary", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	seed(f)
	rec = f.do(t, http.MethodGet, "/api/summary?range=all", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "It went well.", decodeBody[map[string]string](t, rec)["summary"])
	assert.Len(t, f.summary.got, 2)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, fakeSource{})
	req := httptest.NewRequest(http.MethodOptions, "/api/milestones/a", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWriteFailuresLeaveStateUnchanged(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   func(f *fixture) string
		body   any
		code   int
	}{
		{
			name:   "new category with bad color",
			method: http.MethodPost,
			path:   func(*fixture) string { return "/api/categories" },
			body:   map[string]string{"name": "Docs", "color": "blue"},
			code:   http.StatusBadRequest,
		},
		{
			name:   "new category with empty name",
			method: http.MethodPost,
			path:   func(*fixture) string { return "/api/categories" },
			body:   map[string]string{"name": " ", "color": "#fff"},
			code:   http.StatusBadRequest,
		},
		{
			name:   "milestone rename with unknown category",
			method: http.MethodPatch,
			path:   func(*fixture) string { return "/api/milestones/a" },
			body:   map[string]any{"name": "Renamed", "categoryId": "ghost", "isImportant": true},
			code:   http.StatusNotFound,
		},
		{
			name:   "milestone with empty name",
			method: http.MethodPatch,
			path:   func(*fixture) string { return "/api/milestones/a" },
			body:   map[string]any{"name": "  ", "isImportant": true},
			code:   http.StatusBadRequest,
		},
		{
			name:   "category rename with bad color",
			method: http.MethodPatch,
			path:   func(f *fixture) string { return "/api/categories/" + f.general.ID },
			body:   map[string]string{"name": "Misc", "color": "blue"},
			code:   http.StatusBadRequest,
		},
		{
			name:   "category with empty name",
			method: http.MethodPatch,
			path:   func(f *fixture) string { return "/api/categories/" + f.general.ID },
			body:   map[string]string{"name": " ", "color": "#000"},
			code:   http.StatusBadRequest,
		},
		{
			name:   "unknown category",
			method: http.MethodPatch,
			path:   func(*fixture) string { return "/api/categories/ghost" },
			body:   map[string]string{"name": "X"},
			code:   http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fakeSource{})
			seed(f)
			categories := f.tl.Categories()
			before, ok := f.tl.Get("a")
			require.True(t, ok)

			rec := f.do(t, tt.method, tt.path(f), "good", tt.body)
			assert.Equal(t, tt.code, rec.Code)

			assert.Equal(t, categories, f.tl.Categories())
			after, _ := f.tl.Get("a")
			assert.Equal(t, before, after)
			assert.Len(t, after.History, len(before.History))
		})
	}
}
