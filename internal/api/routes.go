package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/onnwee/forcegraph/backend/internal/api/handlers"
	"github.com/onnwee/forcegraph/backend/internal/apierr"
	"github.com/onnwee/forcegraph/backend/internal/config"
	"github.com/onnwee/forcegraph/backend/internal/graph"
	"github.com/onnwee/forcegraph/backend/internal/middleware"
)

// Deps are the collaborators the router hands to its handlers.
type Deps struct {
	Layout *graph.Service
	Config *config.Config
	// Limiter throttles /api routes. nil disables rate limiting.
	Limiter *middleware.RateLimiter
}

// NewRouter builds the HTTP surface of the layout server.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.CORSAllowedOrigins
	}

	r := mux.NewRouter()
	r.Use(middleware.Instrument)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		apierr.WriteErrorWithContext(w, req, apierr.ResourceNotFound("route"))
	})

	// Health & metrics
	r.HandleFunc("/health", handlers.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if d.Limiter != nil {
		api.Use(d.Limiter.Limit)
	}
	api.Use(middleware.LimitBody(cfg.MaxBodyBytes))

	layout := handlers.NewLayoutHandler(d.Layout, cfg.LayoutTimeout)
	stream := handlers.NewLayoutStreamHandler(d.Layout, handlers.StreamOptions{
		FrameInterval: cfg.LayoutFrameInterval,
		Every:         cfg.LayoutStreamEvery,
		Timeout:       cfg.LayoutTimeout,
		MaxStartBytes: cfg.MaxBodyBytes,
		CheckOrigin:   middleware.OriginChecker(cors),
	})

	// Layout
	api.Handle("/layout", middleware.Compress(http.HandlerFunc(layout.PostLayout))).Methods(http.MethodPost)
	api.Handle("/layout/limits", middleware.Compress(http.HandlerFunc(layout.GetLimits))).Methods(http.MethodGet)
	api.HandleFunc("/layout/ws", stream.HandleWebSocket).Methods(http.MethodGet)

	// CORS sits outside the mux so preflights never hit method matching.
	var h http.Handler = r
	h = middleware.CORS(cors)(h)
	h = middleware.RecoverWithSentry(h)
	h = middleware.RequestID(h)
	return h
}
