package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/planapi"
	"github.com/metalagman/aletheia/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPlanner struct{}

func (stubPlanner) RequestPlan(_ context.Context, goal, _ string) (model.Plan, error) {
	return model.Plan{
		ID:           "p1",
		OriginalGoal: goal,
		Category:     "Knowledge",
		Tasks: []model.Task{
			{ID: "t1", Title: "Vocabulary", Status: model.StatusTodo},
			{ID: "t2", Title: "Grammar", Status: model.StatusTodo},
		},
		TraceID:              "trace-123456789",
		TraceURL:             "https://comet/opik/default/traces/1",
		FrictionIntervention: "Evenings are busy.",
	}, nil
}

var testTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type stubSessions struct {
	mu   sync.Mutex
	user *model.User
}

func (s *stubSessions) Current() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *stubSessions) SignIn(ctx context.Context, providerName string) (*model.User, error) {
	name, err := session.NormalizeProviderName(providerName)
	if err != nil {
		return nil, err
	}
	p, err := session.ContextProfile(nil)(ctx, name)
	if err != nil {
		return nil, err
	}
	u := session.MapUser(session.ProviderUser{UID: "u1", DisplayName: p.Name, Email: p.Email}, testTime)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	return &u, nil
}

func (s *stubSessions) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	return nil
}

func newTestServer(t *testing.T, health HealthFunc) (*httptest.Server, *dashboard.Controller, *stubSessions) {
	t.Helper()
	ctrl := dashboard.New(stubPlanner{}, dashboard.WithoutActivity())
	t.Cleanup(ctrl.Close)
	sessions := &stubSessions{}
	srv, err := NewServer(ctrl, sessions, health)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, ctrl, sessions
}

func noRedirect(ts *httptest.Server) *http.Client {
	c := ts.Client()
	c.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return c
}

func postForm(t *testing.T, ts *httptest.Server, path string, form url.Values, accept string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, ts.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := noRedirect(ts).Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func getState(t *testing.T, ts *httptest.Server) stateView {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v stateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestSubmitAndUpdateTaskStatus(t *testing.T) {
	ts, ctrl, _ := newTestServer(t, nil)

	resp := postForm(t, ts, "/plan", url.Values{"goal": {"Learn Spanish"}}, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	ctrl.Wait()

	st := getState(t, ts)
	require.NotNil(t, st.Plan)
	assert.Equal(t, "Learn Spanish", st.Plan.OriginalGoal)
	assert.Len(t, st.Tasks, 2)
	assert.Equal(t, 0, st.Progress)

	resp = postForm(t, ts, "/tasks/t2/status", url.Values{"status": {"completed"}}, "application/json")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var v stateView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	assert.Equal(t, 50, v.Progress)
	assert.Equal(t, model.StatusCompleted, v.Tasks[1].Status)

	page, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer func() { _ = page.Body.Close() }()
	html := body(t, page)
	assert.Contains(t, html, "Learn Spanish")
	assert.Contains(t, html, "Evenings are busy.")
	assert.Contains(t, html, "[SYSTEM WARNING]")
	assert.Contains(t, html, "trace-12...")
	assert.Contains(t, html, `value="50"`)
}

func TestSubmitRejectsBlankGoal(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp := postForm(t, ts, "/plan", url.Values{"goal": {"   "}}, "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postForm(t, ts, "/plan", url.Values{"goal": {""}}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), planapi.ErrEmptyGoal.Error())
}

func TestTaskStatusErrors(t *testing.T) {
	ts, ctrl, _ := newTestServer(t, nil)
	postForm(t, ts, "/plan", url.Values{"goal": {"g"}}, "")
	ctrl.Wait()

	resp := postForm(t, ts, "/tasks/missing/status", url.Values{"status": {"completed"}}, "application/json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = postForm(t, ts, "/tasks/t1/status", url.Values{"status": {"archived"}}, "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Equal(t, 0, getState(t, ts).Progress)
}

func TestSessionSignInAndOut(t *testing.T) {
	ts, _, sessions := newTestServer(t, nil)

	resp := postForm(t, ts, "/session/signin", url.Values{"provider": {"myspace"}, "email": {"a@b.c"}}, "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postForm(t, ts, "/session/signin", url.Values{"provider": {"google"}, "email": {"ada@example.com"}}, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.NotNil(t, sessions.Current())
	assert.Equal(t, "ada", getState(t, ts).User.Name)

	resp = postForm(t, ts, "/session/signout", nil, "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Nil(t, getState(t, ts).User)
}

func TestBackendHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, func(context.Context) (planapi.Health, error) {
		return planapi.Health{Status: "healthy"}, nil
	})
	resp, err := ts.Client().Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "healthy")

	ts, _, _ = newTestServer(t, func(context.Context) (planapi.Health, error) {
		return planapi.Health{}, &planapi.NetworkError{Err: io.EOF}
	})
	resp, err = ts.Client().Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHealthzAndIndex(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), `"status":"ok"`)

	page, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer func() { _ = page.Body.Close() }()
	html := body(t, page)
	assert.Contains(t, html, "What do you want to achieve?")
	assert.Contains(t, html, `<option value="github">`)

	missing, err := ts.Client().Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer func() { _ = missing.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}
