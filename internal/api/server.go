// Package api serves the hazard report, profile, account and social media
// endpoints over gorilla/mux.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/hazards"
	"github.com/oceanwatch/hazard-monitor/internal/ingest"
	"github.com/oceanwatch/hazard-monitor/internal/sources"
	"github.com/oceanwatch/hazard-monitor/internal/storage"
)

// IngestService runs and reports on platform ingestion.
type IngestService interface {
	Platforms() []string
	Run(ctx context.Context, platform string) (*ingest.RunResult, error)
	RunAll(ctx context.Context) []*ingest.RunResult
	IsRunning(platform string) bool
	Status() ingest.Status
}

// TrendsSource looks up trending disaster topics.
type TrendsSource interface {
	Trends(ctx context.Context, woeid int, obs sources.Observer) ([]sources.Trend, error)
}

// StatusSource probes a platform API.
type StatusSource interface {
	Status(ctx context.Context, obs sources.Observer) sources.InstagramStatus
}

// Deps are the collaborators of the HTTP surface. Ingest, Archive,
// Twitter and Instagram may be nil.
type Deps struct {
	DB       *gorm.DB
	Accounts *hazards.AccountService
	Profiles *hazards.ProfileService
	Reports  *hazards.ReportService

	Ingest  IngestService
	Archive storage.Archive

	Twitter        TrendsSource
	TwitterUsage   sources.Observer
	Instagram      StatusSource
	InstagramUsage sources.Observer

	// BaseContext bounds ingestion runs started from a request.
	BaseContext context.Context
}

// Server holds the HTTP handlers.
type Server struct {
	db       *gorm.DB
	accounts *hazards.AccountService
	profiles *hazards.ProfileService
	reports  *hazards.ReportService

	ingest  IngestService
	archive storage.Archive

	twitter        TrendsSource
	twitterUsage   sources.Observer
	instagram      StatusSource
	instagramUsage sources.Observer

	baseCtx context.Context
	bg      sync.WaitGroup
	now     func() time.Time
}

// NewServer creates a server from deps.
func NewServer(d Deps) *Server {
	s := &Server{
		db:             d.DB,
		accounts:       d.Accounts,
		profiles:       d.Profiles,
		reports:        d.Reports,
		ingest:         d.Ingest,
		archive:        d.Archive,
		twitter:        d.Twitter,
		twitterUsage:   d.TwitterUsage,
		instagram:      d.Instagram,
		instagramUsage: d.InstagramUsage,
		baseCtx:        d.BaseContext,
		now:            time.Now,
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}
	if s.twitterUsage == nil {
		s.twitterUsage = sources.NopObserver{}
	}
	if s.instagramUsage == nil {
		s.instagramUsage = sources.NopObserver{}
	}
	return s
}

// Handler returns the complete HTTP handler.
func (s *Server) Handler() http.Handler {
	return withRequestID(recoverPanics(s.Router()))
}

// Router registers every route.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(accessLog)
	r.NotFoundHandler = accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, CodeNotFound, "route not found")
	}))
	r.MethodNotAllowedHandler = accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodInvalid, "method not allowed")
	}))

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/api/register", s.register).Methods(http.MethodPost)
	r.HandleFunc("/api/token", s.token).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)

	api.HandleFunc("/userprofiles", s.listProfiles).Methods(http.MethodGet)
	api.HandleFunc("/userprofiles", s.createProfile).Methods(http.MethodPost)
	api.HandleFunc("/userprofiles/{id}", s.getProfile).Methods(http.MethodGet)
	api.HandleFunc("/userprofiles/{id}", s.replaceProfile).Methods(http.MethodPut)
	api.HandleFunc("/userprofiles/{id}", s.patchProfile).Methods(http.MethodPatch)
	api.HandleFunc("/userprofiles/{id}", s.deleteProfile).Methods(http.MethodDelete)

	api.HandleFunc("/hazards", s.listReports).Methods(http.MethodGet)
	api.HandleFunc("/hazards", s.createReport).Methods(http.MethodPost)
	api.HandleFunc("/hazards/{id}", s.getReport).Methods(http.MethodGet)
	api.HandleFunc("/hazards/{id}", s.replaceReport).Methods(http.MethodPut)
	api.HandleFunc("/hazards/{id}", s.patchReport).Methods(http.MethodPatch)
	api.HandleFunc("/hazards/{id}", s.deleteReport).Methods(http.MethodDelete)

	api.HandleFunc("/social-media/posts", s.listPosts).Methods(http.MethodGet)
	api.HandleFunc("/social-media/usage", s.listUsage).Methods(http.MethodGet)
	api.HandleFunc("/social-media/twitter/trends", s.twitterTrends).Methods(http.MethodGet)
	api.HandleFunc("/social-media/instagram/status", s.instagramStatus).Methods(http.MethodGet)

	api.HandleFunc("/ingest/trigger", s.triggerIngest).Methods(http.MethodPost)
	api.HandleFunc("/ingest/status", s.ingestStatus).Methods(http.MethodGet)
	api.HandleFunc("/ingest/archives", s.listArchives).Methods(http.MethodGet)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	if sqlDB, err := s.db.DB(); err != nil || sqlDB.PingContext(r.Context()) != nil {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}
