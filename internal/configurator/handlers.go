package configurator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-plano/internal/common"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/session"
)

// Handler exposes configurator panels over HTTP.
type Handler struct {
	Svc       *Service
	Formatter money.Formatter
}

// Register mounts the panel routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/configurator", h.Create)
	r.Get("/configurator/{id}", h.Get)
	r.Post("/configurator/{id}/controls/{control}/increment", h.Increment)
	r.Post("/configurator/{id}/controls/{control}/decrement", h.Decrement)
	r.Put("/configurator/{id}/controls/{control}", h.Set)
	r.Put("/configurator/{id}/broadcast", h.SetBroadcast)
	r.Put("/configurator/{id}/billing", h.SetBilling)
}

// Create starts a panel, optionally from a posted state.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var initial *State
	if r.Body != nil {
		var in State
		err := json.NewDecoder(r.Body).Decode(&in)
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			common.WriteError(w, common.DecodeError(err))
			return
		default:
			if in.Billing == "" {
				in.Billing = pricing.Monthly
			}
			initial = &in
		}
	}
	id, p, err := h.Svc.Create(r.Context(), initial)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, NewView(id.String(), p, h.formatter()))
}

// Get renders a panel.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Get(r.Context(), id)
	h.respond(w, id, p, err)
}

// Increment adds one step to the control in the path.
func (h *Handler) Increment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Increment(r.Context(), id, chi.URLParam(r, "control"))
	h.respond(w, id, p, err)
}

// Decrement removes one step from the control in the path.
func (h *Handler) Decrement(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Decrement(r.Context(), id, chi.URLParam(r, "control"))
	h.respond(w, id, p, err)
}

type setInput struct {
	Value *int `json:"value"`
}

// Set assigns the control in the path, as a slider would.
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	var in setInput
	id, ok := parseBody(w, r, &in)
	if !ok {
		return
	}
	if in.Value == nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "value is required", nil)
		return
	}
	p, err := h.Svc.Set(r.Context(), id, chi.URLParam(r, "control"), *in.Value)
	h.respond(w, id, p, err)
}

type broadcastInput struct {
	Enabled *bool `json:"enabled"`
}

// SetBroadcast switches the add-on; omitting "enabled" toggles it.
func (h *Handler) SetBroadcast(w http.ResponseWriter, r *http.Request) {
	var in broadcastInput
	id, ok := parseBody(w, r, &in)
	if !ok {
		return
	}
	p, err := h.Svc.SetBroadcast(r.Context(), id, in.Enabled)
	h.respond(w, id, p, err)
}

type billingInput struct {
	Billing string `json:"billingMode"`
}

// SetBilling switches between monthly and annual billing.
func (h *Handler) SetBilling(w http.ResponseWriter, r *http.Request) {
	var in billingInput
	id, ok := parseBody(w, r, &in)
	if !ok {
		return
	}
	mode, err := pricing.ParseBillingMode(in.Billing)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, err := h.Svc.SetBilling(r.Context(), id, mode)
	h.respond(w, id, p, err)
}

func (h *Handler) respond(w http.ResponseWriter, id uuid.UUID, p *Panel, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(id.String(), p, h.formatter()))
}

func (h *Handler) formatter() money.Formatter {
	if h.Formatter == nil {
		return money.MustDefault()
	}
	return h.Formatter
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrUnknownControl):
		common.JSONError(w, http.StatusNotFound, "UNKNOWN_CONTROL", err.Error(), nil)
	case errors.Is(err, pricing.ErrUnknownBillingMode):
		common.JSONError(w, http.StatusBadRequest, "INVALID_BILLING_MODE", err.Error(), nil)
	case errors.Is(err, session.ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable, try again", nil)
	case errors.Is(err, context.DeadlineExceeded):
		common.JSONError(w, http.StatusServiceUnavailable, "BUSY", "configurator session is busy", nil)
	default:
		common.WriteError(w, err)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "unknown session id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func parseBody(w http.ResponseWriter, r *http.Request, dst any) (uuid.UUID, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return uuid.Nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.WriteError(w, common.DecodeError(err))
		return uuid.Nil, false
	}
	return id, true
}
