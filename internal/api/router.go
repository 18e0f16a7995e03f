// Package api exposes research, extraction, content drafting and post
// scheduling over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/brand-research/internal/content"
	"github.com/sells-group/brand-research/internal/model"
	"github.com/sells-group/brand-research/internal/research"
	"github.com/sells-group/brand-research/internal/resilience"
	"github.com/sells-group/brand-research/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Researcher runs research and standalone extraction.
type Researcher interface {
	Run(ctx context.Context, req research.Request) (*model.ProfileRecord, error)
	ExtractText(ctx context.Context, text string, mode model.ExtractionMode) (model.ExtractedProfile, error)
}

// Drafter writes draft posts for a profile.
type Drafter interface {
	Generate(ctx context.Context, rec *model.ProfileRecord, req content.Request) ([]model.Post, error)
}

// Deps are the collaborators behind the routes. Breakers is optional and only
// reported by /health.
type Deps struct {
	Research    Researcher
	Content     Drafter
	Store       store.Store
	Breakers    *resilience.ServiceBreakers
	DefaultMode model.ExtractionMode
	CORSOrigins []string
	Timeout     time.Duration
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.DefaultMode == "" {
		deps.DefaultMode = model.ExtractionModeRegex
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 2 * time.Minute
	}
	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth(deps))

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(deps.Timeout))

		r.Post("/extract", handleExtract(deps))
		r.Get("/profiles", handleListProfiles(deps))
		r.Get("/profiles/{id}", handleGetProfile(deps))
		r.Post("/profiles/{id}/research", handleResearch(deps))
		r.Post("/profiles/{id}/content", handleContent(deps))
		r.Get("/posts", handleListPosts(deps))
		r.Get("/posts/{id}", handleGetPost(deps))
		r.Post("/posts/{id}/schedule", handleSchedule(deps))
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
