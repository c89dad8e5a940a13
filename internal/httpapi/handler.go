// Package httpapi exposes the issue store over a JSON REST API.
//
// Routes (prefix defaults to /api/v1):
//
//	GET    {prefix}/health
//	GET    {prefix}/issues
//	POST   {prefix}/issues
//	GET    {prefix}/issues/{id}
//	PUT    {prefix}/issues/{id}
//	DELETE {prefix}/issues/{id}
//
// Error responses carry {"detail": "<message>"}.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/runoshun/issue-crew/internal/domain"
)

// IssueStore is the set of store operations the API serves.
type IssueStore interface {
	List(ctx context.Context) (domain.Collection, error)
	Get(ctx context.Context, id string) (*domain.Issue, error)
	Create(ctx context.Context, in domain.NewIssue) (*domain.Issue, error)
	Update(ctx context.Context, id string, patch domain.IssuePatch) (*domain.Issue, error)
	Delete(ctx context.Context, id string) error
}

// Options configures NewHandler.
type Options struct {
	Logger      *slog.Logger
	Metrics     *Metrics // nil disables metrics
	APIPrefix   string   // default "/api/v1"
	StaticDir   string   // served at / and /static/ when set
	MetricsPath string   // default "/metrics"
	CORSOrigins []string // default ["*"]
}

// Handler serves the issue routes.
type Handler struct {
	store  IssueStore
	logger *slog.Logger
}

// NewHandler returns the complete HTTP handler: routes wrapped in middleware.
func NewHandler(store IssueStore, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = domain.DefaultAPIPrefix
	}
	opts.APIPrefix = strings.TrimSuffix(opts.APIPrefix, "/")
	if opts.MetricsPath == "" {
		opts.MetricsPath = domain.DefaultMetricsPath
	}
	if opts.CORSOrigins == nil {
		opts.CORSOrigins = []string{"*"}
	}

	h := &Handler{store: store, logger: opts.Logger}
	mux := http.NewServeMux()
	h.Register(mux, opts.APIPrefix)

	if opts.Metrics != nil {
		mux.Handle("GET "+opts.MetricsPath, opts.Metrics.Handler())
	}
	if opts.StaticDir != "" {
		registerStatic(mux, opts.StaticDir)
	}

	var handler http.Handler = mux
	handler = timing(handler)
	handler = cors(opts.CORSOrigins)(handler)
	if opts.Metrics != nil {
		handler = opts.Metrics.Middleware(handler)
	}
	handler = requestLogger(opts.Logger)(handler)
	handler = recovery(opts.Logger)(handler)
	return handler
}

// Register adds the API routes under prefix to mux.
func (h *Handler) Register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/health", h.health)
	mux.HandleFunc("GET "+prefix+"/issues", h.listIssues)
	mux.HandleFunc("POST "+prefix+"/issues", h.createIssue)
	mux.HandleFunc("GET "+prefix+"/issues/{id}", h.getIssue)
	mux.HandleFunc("PUT "+prefix+"/issues/{id}", h.updateIssue)
	mux.HandleFunc("DELETE "+prefix+"/issues/{id}", h.deleteIssue)
}

func registerStatic(mux *http.ServeMux, dir string) {
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listIssues(w http.ResponseWriter, r *http.Request) {
	issues, err := h.store.List(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (h *Handler) getIssue(w http.ResponseWriter, r *http.Request) {
	issue, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *Handler) createIssue(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !decodeBody(w, r, &req) {
		return
	}

	issue, err := h.store.Create(r.Context(), req.toNewIssue())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, issue)
}

func (h *Handler) updateIssue(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	issue, err := h.store.Update(r.Context(), r.PathValue("id"), req.toPatch())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, issue)
}

func (h *Handler) deleteIssue(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeStoreError maps store error kinds onto status codes.
// Storage failures are logged and answered with a generic 500.
func (h *Handler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrIssueNotFound):
		writeError(w, http.StatusNotFound, "Issue not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "store operation failed",
			"method", r.Method,
			"path", r.URL.Path,
			"corrupt", errors.Is(err, domain.ErrStorageCorruption),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
