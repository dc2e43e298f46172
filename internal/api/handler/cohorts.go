package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/api/respond"
	"github.com/farmsight/farmsight-data/internal/cache"
	"github.com/farmsight/farmsight-data/internal/config"
)

// cohortResponse is the published breakpoint contract: five breakpoints,
// cohort size, and whether the cohort met the minimum-size bar.
type cohortResponse struct {
	Metric     aggregate.Metric `json:"metric"`
	Level      string           `json:"level"`
	Season     int              `json:"season"`
	P10        float64          `json:"p10"`
	P25        float64          `json:"p25"`
	P50        float64          `json:"p50"`
	P75        float64          `json:"p75"`
	P90        float64          `json:"p90"`
	CohortSize int              `json:"cohort_size"`
	Reliable   bool             `json:"reliable"`
}

// GetCohort returns the published percentile breakpoints for one cohort.
// @Summary Get cohort breakpoints
// @Description Returns the five percentile breakpoints for a (metric, level, season) cohort from the currently published snapshot. Reliable is false when the cohort was below the minimum size.
// @Tags cohorts
// @Produce json
// @Param metric path string true "Metric name" example(contact_rate)
// @Param level query string true "Competition level" Enums(CPX, RK, A, A+, AA, AAA, WIN)
// @Param season query int true "Season year"
// @Success 200 {object} cohortResponse
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /cohorts/{metric} [get]
func (h *Handler) GetCohort(w http.ResponseWriter, r *http.Request) {
	metric := aggregate.Metric(chi.URLParam(r, "metric"))
	if !aggregate.KnownMetric(metric) {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_METRIC",
			fmt.Sprintf("Unknown metric %q", metric))
		return
	}
	level := r.URL.Query().Get("level")
	if !config.KnownLevel(level) {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_LEVEL",
			fmt.Sprintf("Unknown level %q", level))
		return
	}
	season, err := strconv.Atoi(r.URL.Query().Get("season"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_SEASON", "season must be an integer")
		return
	}

	cacheKey := fmt.Sprintf("%s%s:%s:%d", cache.PrefixCohorts, metric, level, season)
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLCohorts, true)
		return
	}

	bp, found, err := h.store.Breakpoints(r.Context(), metric, level, season)
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "QUERY_FAILED",
			"Cohort lookup failed", err.Error())
		return
	}
	if !found {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("No published cohort for %s at %s in %d", metric, level, season))
		return
	}

	resp := cohortResponse{
		Metric:     bp.Metric,
		Level:      bp.Level,
		Season:     bp.Season,
		P10:        bp.P10,
		P25:        bp.P25,
		P50:        bp.P50,
		P75:        bp.P75,
		P90:        bp.P90,
		CohortSize: bp.CohortSize,
		Reliable:   bp.Reliable(),
	}
	data, err := json.Marshal(resp)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Failed to encode cohort")
		return
	}

	etag := h.cache.Set(cacheKey, data, cache.TTLCohorts)
	respond.WriteJSON(w, data, etag, cache.TTLCohorts, false)
}

// pathInt parses an integer chi URL parameter.
func pathInt(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, false
	}
	return n, true
}
