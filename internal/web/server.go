// Package web serves the dashboard as a local single page.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/metalagman/aletheia/internal/dashboard"
	"github.com/metalagman/aletheia/internal/model"
	"github.com/metalagman/aletheia/internal/planapi"
	"github.com/metalagman/aletheia/internal/render"
	"github.com/metalagman/aletheia/internal/session"
	"github.com/metalagman/aletheia/internal/taskstore"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

// Controller is the part of the dashboard controller the web UI drives.
type Controller interface {
	Submit(ctx context.Context, goal string) (uint64, error)
	Snapshot() dashboard.State
	SetTaskStatus(id string, status model.TaskStatus) error
	Reset()
}

// Sessions manages the signed-in user. *session.Manager satisfies it.
type Sessions interface {
	Current() *model.User
	SignIn(ctx context.Context, providerName string) (*model.User, error)
	SignOut(ctx context.Context) error
}

// HealthFunc reports the planning backend health.
type HealthFunc func(ctx context.Context) (planapi.Health, error)

// Server provides the web UI handlers and state.
type Server struct {
	ctrl     Controller
	sessions Sessions
	health   HealthFunc
	tmpl     *template.Template
}

//go:embed templates/*.html
var templatesFS embed.FS

var funcs = template.FuncMap{
	"label": func(s model.TaskStatus) string { return s.Label() },
	"short": render.ShortTraceID,
	"score": func(v float64) string {
		if v == 0 {
			return "N/A"
		}
		return strconv.FormatFloat(v, 'f', 1, 64) + "/5"
	},
}

// NewServer creates a new web server. health may be nil.
func NewServer(ctrl Controller, sessions Sessions, health HealthFunc) (*Server, error) {
	tmpl, err := template.New("index.html").Funcs(funcs).ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Server{ctrl: ctrl, sessions: sessions, health: health, tmpl: tmpl}, nil
}

// Routes returns the router for the web UI.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /plan", s.handleSubmit)
	mux.HandleFunc("POST /reset", s.handleReset)
	mux.HandleFunc("POST /tasks/{id}/status", s.handleTaskStatus)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/health", s.handleBackendHealth)
	mux.HandleFunc("POST /session/signin", s.handleSignIn)
	mux.HandleFunc("POST /session/signout", s.handleSignOut)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return withAccessLog(mux)
}

func withAccessLog(next http.Handler) http.Handler {
	h := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("web: request")
	})(next)
	return hlog.NewHandler(log.Logger)(h)
}

// stateView is the JSON shape of the dashboard state.
type stateView struct {
	Generation uint64           `json:"generation"`
	Loading    bool             `json:"loading"`
	Goal       string           `json:"goal,omitempty"`
	Plan       *model.Plan      `json:"plan,omitempty"`
	Tasks      []model.Task     `json:"tasks"`
	Progress   int              `json:"progress"`
	Activity   []model.LogEntry `json:"activity"`
	Error      string           `json:"error,omitempty"`
	User       *model.User      `json:"user,omitempty"`
}

type pageData struct {
	stateView
	Notice            string
	PlannerSuggestion string
	EvaluatorInsight  string
	Environment       string
	Warning           string
	Statuses          []model.TaskStatus
	Providers         []string
}

func (s *Server) view() stateView {
	st := s.ctrl.Snapshot()
	v := stateView{
		Generation: st.Generation,
		Loading:    st.Loading,
		Goal:       st.Goal,
		Plan:       st.Plan,
		Tasks:      st.Tasks,
		Progress:   st.Progress,
		Activity:   st.Activity,
		Error:      planapi.Message(st.Err),
	}
	if v.Tasks == nil {
		v.Tasks = []model.Task{}
	}
	if v.Activity == nil {
		v.Activity = []model.LogEntry{}
	}
	if s.sessions != nil {
		v.User = s.sessions.Current()
	}
	return v
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, r.URL.Query().Get("notice"))
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, notice string) {
	data := pageData{
		stateView: s.view(),
		Notice:    notice,
		Statuses:  model.TaskStatuses,
		Providers: session.Providers,
	}
	if p := data.Plan; p != nil {
		data.PlannerSuggestion = render.PlannerSuggestion(*p)
		data.EvaluatorInsight = render.EvaluatorInsight(*p)
		data.Environment = render.Environment(*p)
		if p.DefaultWorkspace() {
			data.Warning = render.DefaultWorkspaceWarning
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.Execute(w, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("web: render page")
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ctrl.Submit(r.Context(), r.FormValue("goal")); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, planapi.ErrEmptyGoal) {
			status = http.StatusBadRequest
		}
		s.fail(w, r, status, err)
		return
	}
	s.done(w, r)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Reset()
	s.done(w, r)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	status, err := model.ParseTaskStatus(r.FormValue("status"))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.ctrl.SetTaskStatus(r.PathValue("id"), status); err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, taskstore.ErrUnknownTask):
			code = http.StatusNotFound
		case errors.Is(err, taskstore.ErrInvalidStatus):
			code = http.StatusBadRequest
		}
		s.fail(w, r, code, err)
		return
	}
	s.done(w, r)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.view())
}

func (s *Server) handleBackendHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, r, http.StatusNotImplemented, map[string]string{"error": "backend health is not configured"})
		return
	}
	h, err := s.health(r.Context())
	if err != nil {
		writeJSON(w, r, http.StatusBadGateway, map[string]string{"error": planapi.Message(err)})
		return
	}
	writeJSON(w, r, http.StatusOK, h)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.fail(w, r, http.StatusNotImplemented, errors.New("sessions are not configured"))
		return
	}
	ctx := session.WithProfile(r.Context(), session.Profile{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		PhotoURL: r.FormValue("photo_url"),
	})
	if _, err := s.sessions.SignIn(ctx, r.FormValue("provider")); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, session.ErrUnsupportedProvider) || errors.Is(err, session.ErrNoProfile) {
			code = http.StatusBadRequest
		}
		s.fail(w, r, code, err)
		return
	}
	s.done(w, r)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		s.fail(w, r, http.StatusNotImplemented, errors.New("sessions are not configured"))
		return
	}
	if err := s.sessions.SignOut(r.Context()); err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.done(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"status": "ok", "generation": s.ctrl.Snapshot().Generation})
}

// done answers a successful form post. Scripts asking for JSON get the new
// state, browsers are redirected back to the page.
func (s *Server) done(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, r, http.StatusOK, s.view())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	hlog.FromRequest(r).Debug().Err(err).Int("status", status).Msg("web: request failed")
	msg := planapi.Message(err)
	if wantsJSON(r) {
		writeJSON(w, r, status, map[string]string{"error": msg})
		return
	}
	s.renderPage(w, r, status, msg)
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json"
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("web: encode response")
	}
}
