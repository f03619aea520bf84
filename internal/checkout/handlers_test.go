package checkout_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-plano/internal/checkout"
	"github.com/noah-isme/backend-plano/internal/configurator"
	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/lock"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
	"github.com/noah-isme/backend-plano/internal/session"
)

type apiFixture struct {
	router http.Handler
	sub    *recordingSubmitter
}

func newAPI(t *testing.T) apiFixture {
	t.Helper()
	store := session.NewMemoryStore()
	locker := lock.NewLocal()
	engine := pricing.NewEngine(pricing.DefaultRates())
	sub := &recordingSubmitter{}

	panels := &configurator.Service{Store: store, Locker: locker, Engine: engine}
	wizards := &checkout.Service{
		Store:     store,
		Locker:    locker,
		Engine:    engine,
		Validator: form.MustValidator(),
		Submitter: sub,
	}
	r := chi.NewRouter()
	(&configurator.Handler{Svc: panels, Formatter: money.MustDefault()}).Register(r)
	(&checkout.Handler{Svc: wizards, Snapshots: panels, Formatter: money.MustDefault()}).Register(r)
	return apiFixture{router: r, sub: sub}
}

func (f apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

type viewEnvelope struct {
	Data checkout.View `json:"data"`
}

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestCheckoutHTTPFlow(t *testing.T) {
	api := newAPI(t)

	rr := api.do(t, http.MethodPost, "/configurator", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	panel := decode[struct {
		Data configurator.View `json:"data"`
	}](t, rr)

	rr = api.do(t, http.MethodPost, "/configurator/"+panel.Data.ID+"/checkout", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	opened := decode[viewEnvelope](t, rr)
	id := opened.Data.ID
	require.Equal(t, form.StepPersonal, opened.Data.Step)
	require.Equal(t, "10 WhatsApp, 50 usuários, 15 redes, Disparo ativado", opened.Data.Plan.Description)

	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	failed := decode[errorEnvelope](t, rr)
	require.Equal(t, "VALIDATION_FAILED", failed.Error.Code)
	require.Equal(t, form.MsgInvalidEmail, failed.Error.Details["email"])

	rr = api.do(t, http.MethodGet, "/checkout/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, decode[viewEnvelope](t, rr).Data.FieldErrors, 4)

	rr = api.do(t, http.MethodPut, "/checkout/"+id+"/personal", validPersonal)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, form.StepCompany, decode[viewEnvelope](t, rr).Data.Step)

	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/submit", nil)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodPut, "/checkout/"+id+"/company", validCompany)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(t, http.MethodPut, "/checkout/"+id+"/address", validAddress)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = api.do(t, http.MethodPut, "/checkout/"+id+"/billing", map[string]string{"billingMode": "anual"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode[viewEnvelope](t, rr).Data.Options[1].Selected)

	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	order := decode[struct {
		Data checkout.Order `json:"data"`
	}](t, rr)
	require.Equal(t, pricing.Annual, order.Data.Plan.Billing)
	require.Equal(t, validAddress, order.Data.Address)
	require.Len(t, api.sub.orders, 1)

	rr = api.do(t, http.MethodGet, "/checkout/"+id, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckoutHTTPErrors(t *testing.T) {
	api := newAPI(t)

	rr := api.do(t, http.MethodPost, "/configurator/not-a-uuid/checkout", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPost, "/configurator/6f1c1b8e-3a53-4c1b-9a55-6f4d7f0b2c11/checkout", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPost, "/configurator", nil)
	panel := decode[struct {
		Data configurator.View `json:"data"`
	}](t, rr)
	rr = api.do(t, http.MethodPost, "/configurator/"+panel.Data.ID+"/checkout", nil)
	id := decode[viewEnvelope](t, rr).Data.ID

	rr = api.do(t, http.MethodPut, "/checkout/"+id+"/billing", map[string]string{"billingMode": "weekly"})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	api.router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/checkout/"+id+"/personal", bytes.NewBufferString("{")))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodDelete, "/checkout/"+id, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = api.do(t, http.MethodDelete, "/checkout/"+id, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCheckoutHTTPSubmitFailure(t *testing.T) {
	api := newAPI(t)
	api.sub.err = errors.New("crm offline")

	rr := api.do(t, http.MethodPost, "/configurator", nil)
	panel := decode[struct {
		Data configurator.View `json:"data"`
	}](t, rr)
	rr = api.do(t, http.MethodPost, "/configurator/"+panel.Data.ID+"/checkout", nil)
	id := decode[viewEnvelope](t, rr).Data.ID

	api.do(t, http.MethodPut, "/checkout/"+id+"/personal", validPersonal)
	api.do(t, http.MethodPost, "/checkout/"+id+"/next", nil)
	api.do(t, http.MethodPost, "/checkout/"+id+"/next", nil)
	api.do(t, http.MethodPut, "/checkout/"+id+"/address", validAddress)

	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/submit", nil)
	require.Equal(t, http.StatusBadGateway, rr.Code)
	require.Equal(t, "SUBMIT_FAILED", decode[errorEnvelope](t, rr).Error.Code)

	rr = api.do(t, http.MethodGet, "/checkout/"+id, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decode[viewEnvelope](t, rr).Data
	require.Equal(t, form.StepAddress, view.Step)
	require.False(t, view.Closed)

	api.sub.err = nil
	rr = api.do(t, http.MethodPost, "/checkout/"+id+"/submit", nil)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, api.sub.orders, 2)
}
