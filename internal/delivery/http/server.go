package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ilindan-dev/windowed-notifier/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var requestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "windowed_notifier_http_requests_total",
		Help: "Total HTTP requests by route and status.",
	},
	[]string{"method", "route", "status"},
)

// Server is a wrapper for the HTTP server.
type Server struct {
	*http.Server
	logger zerolog.Logger
}

// NewServer creates and configures a new Gin server.
func NewServer(cfg *config.Config, handlers *Handlers, logger *zerolog.Logger) *Server {
	log := logger.With().Str("layer", "http_server").Logger()
	log.Info().Str("mode", cfg.HTTP.GinMode).Msg("initializing http server")

	if cfg.HTTP.GinMode != "" {
		gin.SetMode(cfg.HTTP.GinMode)
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Port,
		Handler:           NewRouter(handlers, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{server, log}
}

// NewRouter builds the gin engine with middleware, API routes, health check and metrics.
func NewRouter(handlers *Handlers, log zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	handlers.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// requestLogger logs each request and counts it by route.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		requestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		log.Debug().
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

// NewMetricsServer serves only /metrics and /health; the worker exposes it for scraping dispatch metrics.
// It returns nil when no metrics port is configured.
func NewMetricsServer(cfg *config.Config, logger *zerolog.Logger) *Server {
	if cfg.HTTP.MetricsPort == "" {
		return nil
	}
	log := logger.With().Str("layer", "metrics_server").Logger()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{&http.Server{
		Addr:              cfg.HTTP.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}, log}
}
