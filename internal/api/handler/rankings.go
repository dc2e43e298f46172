package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/farmsight/farmsight-data/internal/aggregate"
	"github.com/farmsight/farmsight-data/internal/api/respond"
	"github.com/farmsight/farmsight-data/internal/cache"
	"github.com/farmsight/farmsight-data/internal/rank"
)

// GetRankings returns the full composite ranking.
// @Summary Get prospect rankings
// @Description Returns the ranked prospect list for a season. Each entry carries the base grade, performance modifier, trend adjustment, age bonus, and a breakdown recording which data tier backed the score.
// @Tags rankings
// @Produce json
// @Param season query int false "Season year (defaults to current)"
// @Param role query string false "Filter by role" Enums(batting, pitching)
// @Param limit query int false "Maximum entries returned"
// @Success 200 {object} rank.RunResult
// @Failure 400 {object} respond.ErrorResponse
// @Failure 500 {object} respond.ErrorResponse
// @Router /rankings [get]
func (h *Handler) GetRankings(w http.ResponseWriter, r *http.Request) {
	season := h.cfg.CurrentSeason
	if s := r.URL.Query().Get("season"); s != "" {
		var err error
		season, err = strconv.Atoi(s)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_SEASON", "season must be an integer")
			return
		}
		if season < 2000 || season > time.Now().Year()+1 {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_SEASON",
				fmt.Sprintf("Season must be between 2000 and %d", time.Now().Year()+1))
			return
		}
	}

	role := aggregate.Role(r.URL.Query().Get("role"))
	if role != "" && !role.Valid() {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ROLE", "role must be 'batting' or 'pitching'")
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, _ = strconv.Atoi(l)
	}

	cacheKey := fmt.Sprintf("%s%d:%s:%d", cache.PrefixRankings, season, role, limit)
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLRankings, true)
		return
	}

	run, err := h.engine.Generate(r.Context(), season, time.Now())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusInternalServerError, "RANKING_FAILED",
			"Ranking generation failed", err.Error())
		return
	}

	filtered := *run
	if role != "" {
		filtered.Ranked = filterRole(run.Ranked, role)
		filtered.Unscored = filterRole(run.Unscored, role)
	}
	if limit > 0 && limit < len(filtered.Ranked) {
		filtered.Ranked = filtered.Ranked[:limit]
	}

	data, err := json.Marshal(&filtered)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Failed to encode rankings")
		return
	}

	etag := h.cache.Set(cacheKey, data, cache.TTLRankings)
	respond.WriteJSON(w, data, etag, cache.TTLRankings, false)
}

// GetPlayerScore returns one player's composite score and breakdown.
// @Summary Get a single player's score
// @Description Computes one player's composite score against the currently published cohort snapshot. The breakdown distinguishes pitch-data, game-log, and grade-only tiers.
// @Tags rankings
// @Produce json
// @Param playerID path int true "Player ID"
// @Param season query int false "Season year (defaults to current)"
// @Success 200 {object} rank.Result
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /players/{playerID}/score [get]
func (h *Handler) GetPlayerScore(w http.ResponseWriter, r *http.Request) {
	playerID, ok := pathInt(r, "playerID")
	if !ok {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ID", "Player ID must be an integer")
		return
	}

	season := h.cfg.CurrentSeason
	if s := r.URL.Query().Get("season"); s != "" {
		var err error
		season, err = strconv.Atoi(s)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "INVALID_SEASON", "season must be an integer")
			return
		}
	}

	cacheKey := fmt.Sprintf("%s%d:%d", cache.PrefixMetrics, playerID, season)
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLPlayerMetrics, true)
		return
	}

	result, err := h.engine.ScorePlayer(r.Context(), playerID, season, time.Now())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusNotFound, "NOT_FOUND",
			fmt.Sprintf("No score available for player %d", playerID), err.Error())
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Failed to encode score")
		return
	}

	etag := h.cache.Set(cacheKey, data, cache.TTLPlayerMetrics)
	respond.WriteJSON(w, data, etag, cache.TTLPlayerMetrics, false)
}

func filterRole(results []rank.Result, role aggregate.Role) []rank.Result {
	out := make([]rank.Result, 0, len(results))
	for _, r := range results {
		if r.Role == role {
			out = append(out, r)
		}
	}
	return out
}
