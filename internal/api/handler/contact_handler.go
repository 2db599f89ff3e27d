package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/repository"
)

// ContactHandler manages a user's emergency contacts.
type ContactHandler struct {
	repo repository.ContactRepository
}

func NewContactHandler(repo repository.ContactRepository) *ContactHandler {
	return &ContactHandler{repo: repo}
}

// List handles GET /api/v1/users/{owner}/contacts
func (h *ContactHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.ListByOwner(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": list, "total": len(list)})
}

// Create handles POST /api/v1/users/{owner}/contacts
func (h *ContactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createContactRequest
	if !decode(w, r, &body) {
		return
	}
	c := domain.Contact{
		ID:        uuid.New().String(),
		OwnerID:   chi.URLParam(r, "owner"),
		Name:      body.Name,
		Phone:     body.Phone,
		Email:     body.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		mapError(w, err)
		return
	}
	if err := h.repo.Create(r.Context(), &c); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// Delete handles DELETE /api/v1/users/{owner}/contacts/{id}
func (h *ContactHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		mapError(w, err)
		return
	}
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "owner"), id); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
