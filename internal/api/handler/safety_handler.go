package handler

import (
	"net/http"
	"strconv"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/safety"
)

// SafetyHandler serves route scores, weather and nearby help centers.
type SafetyHandler struct {
	scorer  safety.RouteSafetyScorer
	weather safety.WeatherProvider
	help    safety.HelpCenterFinder
}

func NewSafetyHandler(
	scorer safety.RouteSafetyScorer,
	weather safety.WeatherProvider,
	help safety.HelpCenterFinder,
) *SafetyHandler {
	return &SafetyHandler{scorer: scorer, weather: weather, help: help}
}

// ScoreRoute handles POST /api/v1/routes/score
func (h *SafetyHandler) ScoreRoute(w http.ResponseWriter, r *http.Request) {
	var body scoreRouteRequest
	if !decode(w, r, &body) {
		return
	}
	score, err := h.scorer.Score(r.Context(), body.Route)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"safety_score": score})
}

// Weather handles GET /api/v1/weather?lat=&lon=
func (h *SafetyHandler) Weather(w http.ResponseWriter, r *http.Request) {
	at, err := pointFromQuery(r)
	if err != nil {
		mapError(w, err)
		return
	}
	wx, err := h.weather.Current(r.Context(), at)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wx)
}

// HelpCenters handles GET /api/v1/help-centers?lat=&lon=
func (h *SafetyHandler) HelpCenters(w http.ResponseWriter, r *http.Request) {
	at, err := pointFromQuery(r)
	if err != nil {
		mapError(w, err)
		return
	}
	centers, err := h.help.Nearby(r.Context(), at)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, centers)
}

func pointFromQuery(r *http.Request) (safety.Point, error) {
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil {
		return safety.Point{}, domain.ErrInvalidLocation
	}
	return safety.Point{Lat: lat, Lon: lon}, nil
}
