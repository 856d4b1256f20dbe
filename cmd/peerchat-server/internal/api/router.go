package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/coregx/peerchat/cmd/peerchat-server/internal/metrics"
)

// RouterConfig wires the router.
type RouterConfig struct {
	Handler  *Handler
	WS       *WSHandler
	Auth     *Authenticator
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", cfg.Handler.HandleHealth)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Auth.Middleware)

			r.Post("/chat/send", cfg.Handler.HandleSend)
			r.Get("/chat/history/{peerId}", cfg.Handler.HandleHistory)
			r.Handle("/chat/ws", cfg.WS)
		})
	})

	return r
}

// RequestLogger returns a request logging middleware using zerolog.
func RequestLogger(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("latency", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Str("remote_addr", r.RemoteAddr).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
