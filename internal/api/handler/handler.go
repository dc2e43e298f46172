// Package handler provides HTTP handlers for all API endpoints. Handlers
// delegate to the ranking engine and the store; responses are cached with
// ETags and invalidated on cohort snapshot publish.
package handler

import (
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/farmsight/farmsight-data/internal/api/respond"
	"github.com/farmsight/farmsight-data/internal/cache"
	"github.com/farmsight/farmsight-data/internal/config"
	"github.com/farmsight/farmsight-data/internal/rank"
	"github.com/farmsight/farmsight-data/internal/store"
)

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	pool   *pgxpool.Pool
	cache  *cache.Cache
	cfg    *config.Config
	engine *rank.Engine
	store  *store.Store
}

// New creates a Handler with shared dependencies.
func New(pool *pgxpool.Pool, c *cache.Cache, cfg *config.Config, engine *rank.Engine, st *store.Store) *Handler {
	return &Handler{
		pool:   pool,
		cache:  c,
		cfg:    cfg,
		engine: engine,
		store:  st,
	}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns API name, version, and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"name":    "Farmsight Ranking API",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck reports process liveness.
// @Summary Liveness check
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// HealthCheckDB verifies database connectivity.
// @Summary Database health check
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} respond.ErrorResponse
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	var n int
	if err := h.pool.QueryRow(r.Context(), "health_check").Scan(&n); err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unreachable")
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

// HealthCheckCache reports cache statistics.
// @Summary Cache health check
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, h.cache.Stats())
}
