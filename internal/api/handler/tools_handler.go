package handler

import (
	"net/http"
	"strconv"

	"github.com/notifyhub/safety-dispatch/internal/emailaddr"
	"github.com/notifyhub/safety-dispatch/internal/maplink"
)

// ToolsHandler exposes the address corrector and map link builder so
// clients can preview what a dispatch will use.
type ToolsHandler struct {
	corrector *emailaddr.Corrector
	maps      *maplink.Builder
}

func NewToolsHandler(corrector *emailaddr.Corrector, maps *maplink.Builder) *ToolsHandler {
	return &ToolsHandler{corrector: corrector, maps: maps}
}

// AnalyzeEmail handles POST /api/v1/emails/analyze
func (h *ToolsHandler) AnalyzeEmail(w http.ResponseWriter, r *http.Request) {
	var body analyzeEmailRequest
	if !decode(w, r, &body) {
		return
	}
	respondJSON(w, http.StatusOK, h.corrector.Analyze(body.Email))
}

// StaticMap handles GET /api/v1/maps/static?lat=&lng=&w=&h=
//
// A missing or unparsable coordinate yields {"url": null}.
func (h *ToolsHandler) StaticMap(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat := parseFloat(q.Get("lat"))
	lng := parseFloat(q.Get("lng"))
	width, _ := strconv.Atoi(q.Get("w"))
	height, _ := strconv.Atoi(q.Get("h"))

	u, ok := h.maps.StaticMapURL(lat, lng, width, height)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"url": nil})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"url": u})
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
