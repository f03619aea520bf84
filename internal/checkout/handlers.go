package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-plano/internal/common"
	"github.com/noah-isme/backend-plano/internal/configurator"
	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/session"
)

// SnapshotSource yields the plan snapshot of a configurator panel.
type SnapshotSource interface {
	Snapshot(ctx context.Context, panelID uuid.UUID) (pricing.Snapshot, error)
}

// Handler exposes the wizard over HTTP.
type Handler struct {
	Svc       *Service
	Snapshots SnapshotSource
	Formatter money.Formatter
	// Submit wraps the submit endpoint, e.g. with rate limiting or idempotency.
	Submit func(http.Handler) http.Handler
}

// Register mounts the wizard routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/configurator/{id}/checkout", h.Open)
	r.Route("/checkout/{id}", func(c chi.Router) {
		c.Get("/", h.Get)
		c.Delete("/", h.Cancel)
		c.Put("/personal", h.UpdatePersonal)
		c.Put("/company", h.UpdateCompany)
		c.Put("/address", h.UpdateAddress)
		c.Put("/billing", h.SetBilling)
		c.Post("/next", h.Next)
		c.Post("/back", h.Back)
		if h.Submit != nil {
			c.With(h.Submit).Post("/submit", h.SubmitOrder)
		} else {
			c.Post("/submit", h.SubmitOrder)
		}
	})
}

// Open snapshots a configurator panel and starts a wizard for it.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Snapshots == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	panelID, ok := parseID(w, r)
	if !ok {
		return
	}
	snap, err := h.Snapshots.Snapshot(r.Context(), panelID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	id, wiz, err := h.Svc.Open(r.Context(), snap)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, NewView(id.String(), wiz, h.formatter()))
}

// Get renders the wizard.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	wiz, err := h.Svc.Get(r.Context(), id)
	h.respond(w, id, wiz, err)
}

// UpdatePersonal replaces the step 1 form.
func (h *Handler) UpdatePersonal(w http.ResponseWriter, r *http.Request) {
	var in form.PersonalInfo
	id, ok := parseBody(w, r, &in)
	if !ok {
		return
	}
	wiz, err := h.Svc.UpdatePersonal(r.Context(), id, in)
	h.respond(w, id, wiz, err)
}

// UpdateCompany replaces the step 2 form.
func (h *Handler) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	var in form.CompanyInfo
	id, ok := parseBody(w, r, &in)
	if !ok {
		return
	}
	wiz, err := h.Svc.UpdateCompany(r.Context(), id, in)
	h.respond(w, id, wiz, err)
}

// UpdateAddress replaces the step 3 form.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var in form.AddressInfo
	id, ok := parseBody(w, r, &in)
	if !ok {
		return
	}
	wiz, err := h.Svc.UpdateAddress(r.Context(), id, in)
	h.respond(w, id, wiz, err)
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
	wiz, err := h.Svc.SetBilling(r.Context(), id, mode)
	h.respond(w, id, wiz, err)
}

// Next validates the current step and advances.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	wiz, err := h.Svc.Next(r.Context(), id)
	h.respond(w, id, wiz, err)
}

// Back returns to the previous step.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	wiz, err := h.Svc.Back(r.Context(), id)
	h.respond(w, id, wiz, err)
}

// SubmitOrder finishes the wizard.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	order, _, err := h.Svc.Submit(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, order)
}

// Cancel closes the wizard without submitting.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Cancel(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respond(w http.ResponseWriter, id uuid.UUID, wiz *Wizard, err error) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, NewView(id.String(), wiz, h.formatter()))
}

func (h *Handler) formatter() money.Formatter {
	if h.Formatter == nil {
		return money.MustDefault()
	}
	return h.Formatter
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "step has invalid fields", vErr.Fields)
	case errors.Is(err, ErrNotFound), errors.Is(err, configurator.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrClosed), errors.Is(err, ErrNotFinalStep):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, pricing.ErrUnknownBillingMode):
		common.JSONError(w, http.StatusBadRequest, "INVALID_BILLING_MODE", err.Error(), nil)
	case errors.Is(err, ErrSubmitFailed):
		common.JSONError(w, http.StatusBadGateway, "SUBMIT_FAILED", "order could not be delivered, try again", nil)
	case errors.Is(err, session.ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "session store unavailable, try again", nil)
	case errors.Is(err, context.DeadlineExceeded):
		common.JSONError(w, http.StatusServiceUnavailable, "BUSY", "checkout session is busy", nil)
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
