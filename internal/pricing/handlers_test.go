package pricing_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	h := &pricing.Handler{Engine: pricing.NewEngine(pricing.DefaultRates()), Formatter: money.MustDefault()}
	h.Register(r)
	return r
}

func TestRatesEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/rates", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data pricing.RateTable `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, pricing.DefaultRates(), body.Data)
}

func TestQuoteEndpoint(t *testing.T) {
	payload := `{"whatsappAccounts":10,"socialAccounts":15,"userSeats":50,"broadcastEnabled":true,"billingMode":"anual"}`
	rr := httptest.NewRecorder()
	newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(payload)))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data pricing.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, pricing.Annual, body.Data.Plan.Billing)
	require.Equal(t, pricing.Money(499700), body.Data.Breakdown.MonthlyTotal)
	require.Equal(t, pricing.Money(399760), body.Data.Breakdown.PayableMonthly)
	require.Zero(t, body.Data.Breakdown.SetupFee)
	require.Equal(t, "R$\u00a03.997,60", body.Data.Formatted.PayableMonthly)
}

func TestQuoteDefaultsToMonthly(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(`{"userSeats":1}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data pricing.Quote `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, pricing.Monthly, body.Data.Plan.Billing)
	require.Equal(t, pricing.Money(5000), body.Data.Breakdown.MonthlyTotal)
	require.Equal(t, pricing.Money(29700), body.Data.Breakdown.SetupFee)
}

func TestQuoteRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"INVALID_BILLING_MODE": `{"userSeats":1,"billingMode":"weekly"}`,
		"INVALID_BODY":         `{`,
		"INVALID_PLAN":         `{"whatsappAccounts":1000000000000000,"userSeats":1}`,
	}
	for code, payload := range cases {
		rr := httptest.NewRecorder()
		newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(payload)))
		require.Equal(t, http.StatusBadRequest, rr.Code, code)
		require.Contains(t, rr.Body.String(), code)
	}
}

func TestQuoteQuantityBounds(t *testing.T) {
	send := func(payload string) int {
		rr := httptest.NewRecorder()
		newRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/quote", strings.NewReader(payload)))
		return rr.Code
	}
	require.Equal(t, http.StatusOK, send(`{"whatsappAccounts":10000,"socialAccounts":10000,"userSeats":10000}`))
	require.Equal(t, http.StatusBadRequest, send(`{"socialAccounts":10001,"userSeats":1}`))
	require.Equal(t, http.StatusBadRequest, send(`{"userSeats":-1}`))
}
