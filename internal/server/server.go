package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"linear-mcp/internal/mcp"
	"linear-mcp/internal/session"
	"linear-mcp/internal/telemetry"
)

// MCPPath is the streamable HTTP endpoint.
const MCPPath = "/mcp"

// Config contains the HTTP server configuration.
type Config struct {
	Addr            string
	LogLevel        string
	SessionTimeout  time.Duration
	CleanupInterval time.Duration
	RequireSession  bool
	AllowedOrigins  []string
	// RedisURL selects the Redis session store when set.
	RedisURL string
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		SessionTimeout:  session.DefaultTimeout,
		CleanupInterval: session.DefaultCleanupInterval,
		RequireSession:  true,
		AllowedOrigins:  []string{"*"},
	}
}

// Deps are the collaborators the router serves.
type Deps struct {
	Handler  *mcp.Handler
	Sessions session.Manager
	Metrics  *telemetry.Metrics
	Gatherer prometheus.Gatherer
	Version  string
	Logger   zerolog.Logger
}

// New builds the router: /health, /metrics and the MCP endpoint.
func New(cfg Config, deps Deps) http.Handler {
	logger := deps.Logger.With().Str("component", "http_server").Logger()

	transport := mcp.NewHTTPTransport(deps.Handler, mcp.HTTPOptions{
		Sessions:       deps.Sessions,
		RequireSession: cfg.RequireSession,
	}, deps.Logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(telemetry.HTTPMetricsMiddleware(deps.Metrics))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", session.HeaderName, "Mcp-Protocol-Version", "Last-Event-ID"},
		ExposedHeaders:   []string{session.HeaderName},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler(deps))

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		if deps.Sessions != nil {
			r.Use(session.Middleware(deps.Sessions, deps.Logger))
		}
		r.Handle(MCPPath, transport)
	})

	return r
}

type healthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions *int   `json:"sessions,omitempty"`
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Version: deps.Version}
		if deps.Sessions != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			n, err := deps.Sessions.ActiveSessionCount(ctx)
			if err != nil {
				resp.Status = "degraded"
			} else {
				resp.Sessions = &n
			}
		}
		render.JSON(w, r, resp)
	}
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}
