package importapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/Stephilip2022/wotc-platform-sub004/internal/auth"
	"github.com/Stephilip2022/wotc-platform-sub004/internal/middleware"
)

// RouterOptions configures the outer HTTP stack.
type RouterOptions struct {
	AllowedOrigins []string
	Logger         *logrus.Logger
	// GraphQL is mounted at /api/graphql when set.
	GraphQL http.Handler
}

// NewRouter builds the complete HTTP handler: access logging, CORS, the
// employer-scoped API under /api (REST and optionally GraphQL), plus /metrics
// and /healthz.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", auth.EmployerHeader},
	})

	r := chi.NewRouter()
	r.Use(middleware.Logging(logger))
	r.Use(corsHandler.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.EmployerScope)
		h.RegisterRoutes(r)
		if opts.GraphQL != nil {
			r.Handle("/graphql", opts.GraphQL)
		}
	})
	return r
}
