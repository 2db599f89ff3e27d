package handler

import (
	"net/http"
	"time"

	"github.com/notifyhub/safety-dispatch/internal/tracking"
)

// TrackingHandler serves live tracking sessions.
type TrackingHandler struct {
	mgr *tracking.Manager
}

func NewTrackingHandler(mgr *tracking.Manager) *TrackingHandler {
	return &TrackingHandler{mgr: mgr}
}

// Start handles POST /api/v1/tracking
func (h *TrackingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body startTrackingRequest
	if !decode(w, r, &body) {
		return
	}
	sess, err := h.mgr.Start(tracking.StartRequest{
		OwnerID:  body.OwnerID,
		Contacts: contacts(body.Contacts),
		User:     body.User.info(),
		Channel:  body.Channel,
		Interval: time.Duration(body.IntervalSeconds) * time.Second,
		Location: body.Location.snapshot(),
	})
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sess)
}

// Get handles GET /api/v1/tracking/{id}
func (h *TrackingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		mapError(w, err)
		return
	}
	sess, err := h.mgr.Get(id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sess)
}

// UpdatePosition handles PUT /api/v1/tracking/{id}/position
func (h *TrackingHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		mapError(w, err)
		return
	}
	var body locationDTO
	if !decode(w, r, &body) {
		return
	}
	if err := h.mgr.UpdatePosition(id, *body.snapshot()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stop handles DELETE /api/v1/tracking/{id}
func (h *TrackingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		mapError(w, err)
		return
	}
	if err := h.mgr.Stop(id); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
