package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/neuralforge/platform/pkg/api/middleware"
	"github.com/neuralforge/platform/pkg/common/config"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/observability/metrics"
)

// NewRouter mounts every engine endpoint under /api/v1 behind the
// standard middleware chain. CORS wraps the router so preflight
// requests, which match no route, are still answered.
func NewRouter(engine *forge.Engine, cfg *config.Config) http.Handler {
	router := mux.NewRouter()

	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	if cfg.MaxRequestBody > 0 {
		router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	}
	router.Use(middleware.Caller(cfg.CallerHeader))

	RegisterHealth(router, func() map[string]interface{} {
		return map[string]interface{}{"version": engine.Version()}
	})

	api := router.PathPrefix("/api/v1").Subrouter()
	NewTokenHandler(engine).Register(api)
	NewRoleHandler(engine).Register(api)
	NewMarketplaceHandler(engine).Register(api)
	NewTrainingHandler(engine).Register(api)
	return middleware.CORS(cfg.CallerHeader)(router)
}

// RegisterHealth adds /health and /metrics. extra, when set, contributes
// fields to the health body.
func RegisterHealth(r *mux.Router, extra func() map[string]interface{}) {
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		body := map[string]interface{}{"status": "healthy"}
		if extra != nil {
			for k, v := range extra() {
				body[k] = v
			}
		}
		writeJSON(w, body)
	}).Methods(http.MethodGet)
	r.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)
}

// WriteJSON and WriteError are shared with the other HTTP services.
func WriteJSON(w http.ResponseWriter, data interface{}) { writeJSON(w, data) }

func WriteError(w http.ResponseWriter, err error) { writeError(w, err) }
