package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/safety-dispatch/internal/api/middleware"
	"github.com/notifyhub/safety-dispatch/internal/domain"
	"github.com/notifyhub/safety-dispatch/internal/service"
)

// DispatchHandler serves location sharing, emergency alerts and dispatch
// lookups.
type DispatchHandler struct {
	svc    *service.Orchestrator
	logger *zap.Logger
}

func NewDispatchHandler(svc *service.Orchestrator, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{svc: svc, logger: logger}
}

// ShareLocation handles POST /api/v1/location/share
//
// @Summary     Share the caller's location with contacts
// @Tags        dispatches
// @Accept      json
// @Produce     json
// @Param       X-Idempotency-Key  header    string           false  "Idempotency key"
// @Param       body               body      dispatchRequest  true   "Contacts, sender and location"
// @Success     201                {object}  domain.AggregateResult
// @Success     200                {object}  domain.AggregateResult  "Duplicate or nothing sent"
// @Failure     422                {object}  map[string]string
// @Router      /api/v1/location/share [post]
func (h *DispatchHandler) ShareLocation(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, domain.KindLocationShare)
}

// SendAlert handles POST /api/v1/alerts
//
// @Summary     Send an emergency alert to contacts
// @Tags        dispatches
// @Accept      json
// @Produce     json
// @Param       X-Idempotency-Key  header    string           false  "Idempotency key"
// @Param       body               body      dispatchRequest  true   "Contacts, sender and location"
// @Success     201                {object}  domain.AggregateResult
// @Router      /api/v1/alerts [post]
func (h *DispatchHandler) SendAlert(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, domain.KindEmergencyAlert)
}

func (h *DispatchHandler) dispatch(w http.ResponseWriter, r *http.Request, kind domain.DispatchKind) {
	var body dispatchRequest
	if !decode(w, r, &body) {
		return
	}

	req := service.Request{
		Contacts:       contacts(body.Contacts),
		User:           body.User.info(),
		Location:       body.Location.snapshot(),
		Channel:        body.Channel,
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	}
	var (
		res *domain.AggregateResult
		dup bool
		err error
	)
	if kind == domain.KindEmergencyAlert {
		res, dup, err = h.svc.SendEmergencyAlert(r.Context(), req)
	} else {
		res, dup, err = h.svc.ShareLocation(r.Context(), req)
	}
	h.respondResult(w, r, res, dup, err)
}

// AlertOwnerContacts handles POST /api/v1/users/{owner}/alerts
//
// @Summary     Dispatch to every contact the user has registered
// @Tags        dispatches
// @Accept      json
// @Produce     json
// @Param       owner  path      string                true  "Owner ID"
// @Param       body   body      ownerDispatchRequest  true  "Sender, location and channel"
// @Success     201    {object}  domain.AggregateResult
// @Router      /api/v1/users/{owner}/alerts [post]
func (h *DispatchHandler) AlertOwnerContacts(w http.ResponseWriter, r *http.Request) {
	var body ownerDispatchRequest
	if !decode(w, r, &body) {
		return
	}
	kind := domain.KindEmergencyAlert
	if body.Kind != "" {
		kind = domain.DispatchKind(body.Kind)
	}

	res, dup, err := h.svc.ShareWithEmergencyContacts(r.Context(), kind, service.Request{
		OwnerID:        chi.URLParam(r, "owner"),
		User:           body.User.info(),
		Location:       body.Location.snapshot(),
		Channel:        body.Channel,
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	})
	h.respondResult(w, r, res, dup, err)
}

// GetDispatch handles GET /api/v1/dispatches/{id}
//
// @Summary  Get a stored dispatch
// @Tags     dispatches
// @Produce  json
// @Param    id   path      string  true  "Dispatch UUID"
// @Success  200  {object}  domain.DispatchRecord
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/dispatches/{id} [get]
func (h *DispatchHandler) GetDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		mapError(w, err)
		return
	}
	rec, err := h.svc.GetDispatch(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Retry handles POST /api/v1/dispatches/{id}/retry
//
// @Summary  Retry only the recipients that failed
// @Tags     dispatches
// @Produce  json
// @Param    id   path      string  true  "Dispatch UUID"
// @Success  200  {object}  domain.AggregateResult
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string
// @Router   /api/v1/dispatches/{id}/retry [post]
func (h *DispatchHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		mapError(w, err)
		return
	}
	res, err := h.svc.RetryFailed(r.Context(), id)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("retry failed", zap.Error(err))
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// respondResult writes 201 for a new dispatch and 200 for a duplicate or a
// request rejected before anything was sent.
func (h *DispatchHandler) respondResult(w http.ResponseWriter, r *http.Request, res *domain.AggregateResult, dup bool, err error) {
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("dispatch failed", zap.Error(err))
		mapError(w, err)
		return
	}
	status := http.StatusCreated
	if dup || res.ID == "" {
		status = http.StatusOK
	}
	respondJSON(w, status, res)
}
