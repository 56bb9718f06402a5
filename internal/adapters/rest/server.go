package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"unification-service/internal/core/port"
)

type Server struct {
	httpServer *http.Server
	logger     port.LoggerPort
}

// NewRouter собирает маршруты админки. metricsHandler может быть nil.
func NewRouter(matchesHandlers *MatchesHandler,
	unifiedHandlers *UnifiedHandler,
	metricsHandler http.Handler,
	corsOrigins []string,
	baseLogger port.LoggerPort) http.Handler {

	r := chi.NewRouter()

	r.Use(middleware.RealIP, LoggerMiddleware(baseLogger), middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Trace-ID"},
		ExposedHeaders:   []string{"X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: time.Now().UTC()})
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/matches", matchesHandlers.Merge)
		r.Post("/matches/preview", matchesHandlers.Preview)
		r.Get("/unmatched", matchesHandlers.Unmatched)
		r.Get("/candidates", matchesHandlers.Candidates)

		r.Post("/future-projects", unifiedHandlers.CreateFutureProject)
		r.Delete("/future-projects/{unifiedID}", unifiedHandlers.DeleteFutureProject)

		r.Get("/unified", unifiedHandlers.FindNear)
		r.Route("/unified/{unifiedID}", func(r chi.Router) {
			r.Get("/", unifiedHandlers.GetByID)
			r.Patch("/", unifiedHandlers.Update)
			r.Post("/featured", unifiedHandlers.SetFeatured)
			r.Post("/rebuild", unifiedHandlers.Rebuild)
		})
	})

	return r
}

func NewServer(listenPort string, handler http.Handler, baseLogger port.LoggerPort) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + listenPort,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: baseLogger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST server", port.Fields{"address": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST server...", nil)
	return s.httpServer.Shutdown(ctx)
}
