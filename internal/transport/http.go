// Package transport serves the participant-facing HTTP API.
package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/identity"
	"github.com/rpggio/searchstudy/internal/domain/survey"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/provider/article"
	"github.com/rpggio/searchstudy/internal/storage"
)

// IdentityService manages participant identity and consent.
type IdentityService interface {
	Enter(ctx context.Context, deviceID, recruitmentID string) (*identity.Participant, error)
	Participant(ctx context.Context, deviceID string) (*identity.Participant, error)
	RecordConsent(ctx context.Context, deviceID string, granted bool) (*identity.Participant, error)
}

// AssignmentService assigns conditions.
type AssignmentService interface {
	Assign(ctx context.Context, deviceID, participantID string) (*assignment.Assignment, error)
	Get(ctx context.Context, deviceID string) (*assignment.Assignment, bool, error)
}

// SurveyService serves and stores questionnaires.
type SurveyService interface {
	Form(ctx context.Context, deviceID string, kind survey.Kind) (*survey.Form, error)
	SaveDraft(ctx context.Context, deviceID string, kind survey.Kind, r survey.Responses) error
	Draft(ctx context.Context, deviceID string, kind survey.Kind) (survey.Responses, bool, error)
	Submit(ctx context.Context, deviceID, participantID string, kind survey.Kind, sub survey.Submission) (*survey.Receipt, error)
}

// SessionRegistry tracks live task controllers.
type SessionRegistry interface {
	Start(ctx context.Context, session task.Session, store storage.Store) (*task.Controller, error)
	Get(participantID string) (*task.Controller, error)
	Release(participantID string, c *task.Controller)
}

// EventRelay forwards browser-originated log events.
type EventRelay interface {
	Relay(ctx context.Context, ev activity.Event) error
}

// ArticleFetcher downloads and extracts article text.
type ArticleFetcher interface {
	Fetch(ctx context.Context, raw string) (*article.Article, error)
}

// Services are the collaborators behind the HTTP API.
type Services struct {
	Identity    IdentityService
	Assignments AssignmentService
	Surveys     SurveyService
	Sessions    SessionRegistry
	Events      EventRelay
	Searcher    task.Searcher
	Generator   task.Generator
	Articles    ArticleFetcher
}

// Instrumentation is the optional metrics surface.
type Instrumentation interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Options configures the router.
type Options struct {
	StudyID string
	// Backend stores per-device task state such as the scrapbook snapshot.
	Backend         storage.Backend
	SecureCookies   bool
	CompletionURL   string
	DeclineURL      string
	ResultsPerQuery int
	// Console, when set, is mounted at /mcp behind ConsoleAuth.
	Console     http.Handler
	ConsoleAuth func(http.Handler) http.Handler
	Metrics     Instrumentation
	Logger      *slog.Logger
}

// Server wires HTTP handlers.
type Server struct {
	svc    Services
	opts   Options
	logger *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(svc Services, opts Options) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ResultsPerQuery <= 0 {
		opts.ResultsPerQuery = task.DefaultResultsPerQuery
	}
	srv := &Server{svc: svc, opts: opts, logger: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}
	r.Get("/health", srv.handleHealth)

	if opts.Console != nil {
		r.Group(func(r chi.Router) {
			if opts.ConsoleAuth != nil {
				r.Use(opts.ConsoleAuth)
			}
			r.Handle("/mcp", opts.Console)
		})
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(DeviceMiddleware(opts.SecureCookies))

		r.Get("/SearchEngine", srv.handleSearch)
		r.Post("/llm", srv.handleLLM)
		r.Get("/fetchArticle", srv.handleFetchArticle)
		r.Post("/experiment-log", srv.handleExperimentLog)

		r.Post("/identity", srv.handleEnterIdentity)

		r.Group(func(r chi.Router) {
			r.Use(srv.requireIdentity)
			r.Get("/identity", srv.handleGetIdentity)
			r.Post("/consent", srv.handleConsent)

			r.Group(func(r chi.Router) {
				r.Use(srv.requireConsent)
				r.Get("/assignment", srv.handleAssignment)

				r.Route("/surveys/{kind}", func(r chi.Router) {
					r.Get("/", srv.handleSurveyForm)
					r.Post("/", srv.handleSurveySubmit)
					r.Get("/draft", srv.handleGetDraft)
					r.Put("/draft", srv.handleSaveDraft)
				})

				r.Route("/task", func(r chi.Router) {
					r.Post("/session", srv.handleStartTask)
					r.Get("/session", srv.handleTaskSnapshot)
					r.Post("/begin", srv.handleBegin)
					r.Post("/modal", srv.handleModal)
					r.Post("/visibility", srv.handleVisibility)
					r.Post("/back", srv.handleBack)
					r.Post("/submit", srv.handleSubmit)
					r.Post("/click", srv.handleClick)
					r.Post("/scrapbook", srv.handleAddScrap)
					r.Patch("/scrapbook/{index}", srv.handleUpdateScrap)
					r.Delete("/scrapbook/{index}", srv.handleRemoveScrap)
					r.Post("/advance", srv.handleAdvance)
				})
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type participantKey struct{}

// ParticipantFromContext returns the participant loaded by the identity guard.
func ParticipantFromContext(ctx context.Context) (*identity.Participant, bool) {
	p, ok := ctx.Value(participantKey{}).(*identity.Participant)
	return p, ok && p != nil
}

func (s *Server) deviceID(r *http.Request) string {
	id, _ := DeviceFromContext(r.Context())
	return id
}

// requireIdentity rejects requests from devices without a participant id.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := s.svc.Identity.Participant(r.Context(), s.deviceID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), participantKey{}, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireConsent allows only participants who granted consent.
func (s *Server) requireConsent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := ParticipantFromContext(r.Context())
		switch p.Consent {
		case identity.ConsentGranted:
			next.ServeHTTP(w, r)
		case identity.ConsentDeclined:
			s.writeError(w, r, &APIError{Status: http.StatusForbidden, Code: "CONSENT_DECLINED", Message: "consent was declined", Redirect: s.opts.DeclineURL})
		default:
			s.writeError(w, r, &APIError{Status: http.StatusForbidden, Code: "CONSENT_REQUIRED", Message: "consent required", Redirect: "/consent"})
		}
	})
}

func (s *Server) deviceStore(r *http.Request) storage.Store {
	return storage.Scoped(s.opts.Backend, storage.DeviceNamespace(s.opts.StudyID, s.deviceID(r)))
}
