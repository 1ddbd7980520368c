package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/KaramelBytes/tabloom-cli/internal/cache"
	"github.com/KaramelBytes/tabloom-cli/internal/compose"
	"github.com/KaramelBytes/tabloom-cli/internal/crosstab"
	"github.com/KaramelBytes/tabloom-cli/internal/metrics"
	"github.com/KaramelBytes/tabloom-cli/internal/study"
	"github.com/KaramelBytes/tabloom-cli/internal/tabulate"
)

// Server exposes the tabulation service over HTTP.
type Server struct {
	svc         *tabulate.Service
	cache       cache.Cache
	log         *zap.Logger
	corsOrigins []string
}

func New(svc *tabulate.Service, c cache.Cache, corsOrigins []string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{svc: svc, cache: c, log: log, corsOrigins: corsOrigins}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.requestLog)

	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/studies", s.listStudies)
		r.Get("/studies/{study}/questions", s.questions)
		r.Post("/studies/{study}/tables", s.tables)
		r.Post("/cache/invalidate", s.invalidate)
	})
	return r
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	if status >= 500 {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, study.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, study.ErrInvalidName), errors.Is(err, tabulate.ErrUnknownCrossBreak), errors.Is(err, crosstab.ErrNoCrossBreak):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

type studyInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	Subcategory string `json:"subcategory,omitempty"`
}

func (s *Server) listStudies(w http.ResponseWriter, r *http.Request) {
	all, err := study.List(s.svc.StudiesDir)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	out := make([]studyInfo, 0, len(all))
	for _, st := range all {
		out = append(out, studyInfo{ID: st.ID, Name: st.Name, Category: st.Category, Subcategory: st.Subcategory})
	}
	render.JSON(w, r, out)
}

func (s *Server) questions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.svc.Questions(r.Context(), chi.URLParam(r, "study"))
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	render.JSON(w, r, qs)
}

type tablesRequest struct {
	tabulate.Request
	Format string `json:"format"`
}

func (s *Server) tables(w http.ResponseWriter, r *http.Request) {
	var req tablesRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	req.Study = chi.URLParam(r, "study")
	if _, err := crosstab.ParseViewType(req.View); err != nil {
		s.fail(w, r, http.StatusBadRequest, err)
		return
	}
	switch req.Format {
	case "", "json", "html":
	default:
		s.fail(w, r, http.StatusBadRequest, errors.New("format must be json or html"))
		return
	}
	rep, err := s.svc.Tabulate(r.Context(), req.Request)
	if err != nil {
		s.fail(w, r, statusFor(err), err)
		return
	}
	if req.Format == "html" {
		w.Header().Set("Content-Type", tabulate.ContentType("html"))
		if err := compose.RenderHTML(w, rep); err != nil {
			s.log.Error("render html", zap.Error(err))
		}
		return
	}
	render.JSON(w, r, rep)
}

type invalidateRequest struct {
	Prefix string `json:"prefix"`
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		render.JSON(w, r, map[string]int{"removed": 0})
		return
	}
	var req invalidateRequest
	if r.ContentLength != 0 {
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			s.fail(w, r, http.StatusBadRequest, errors.New("invalid request body"))
			return
		}
	}
	n, err := s.cache.Invalidate(r.Context(), req.Prefix)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("cache invalidated over http", zap.String("prefix", req.Prefix), zap.Int("removed", n))
	render.JSON(w, r, map[string]int{"removed": n})
}
