package pricing

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-plano/internal/common"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/obs"
)

// Handler serves the rate table and stateless quotes.
type Handler struct {
	Engine    Engine
	Formatter money.Formatter
}

// Register mounts the pricing routes.
func (h *Handler) Register(r chi.Router) {
	r.Get("/rates", h.Rates)
	r.Post("/quote", h.Quote)
}

// FormattedBreakdown holds the display strings of a breakdown.
type FormattedBreakdown struct {
	MonthlyTotal       string `json:"monthlyTotal"`
	AnnualMonthlyTotal string `json:"annualMonthlyTotal"`
	PayableMonthly     string `json:"payableMonthly"`
	SetupFee           string `json:"setupFee"`
	YearlySavings      string `json:"yearlySavings"`
}

// Quote is the response of POST /quote.
type Quote struct {
	Plan      Plan               `json:"plan"`
	Breakdown Breakdown          `json:"breakdown"`
	Formatted FormattedBreakdown `json:"formatted"`
}

// Rates returns the active rate table.
func (h *Handler) Rates(w http.ResponseWriter, _ *http.Request) {
	common.Data(w, http.StatusOK, h.Engine.Rates())
}

// Quote prices a posted plan without storing anything.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Plan
		Billing string `json:"billingMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.WriteError(w, common.DecodeError(err))
		return
	}
	plan := in.Plan
	plan.Billing = Monthly
	if in.Billing != "" {
		mode, err := ParseBillingMode(in.Billing)
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_BILLING_MODE", err.Error(), nil)
			return
		}
		plan.Billing = mode
	}
	if err := plan.Validate(); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_PLAN", err.Error(), nil)
		return
	}
	b := h.Engine.Compute(plan)
	if obs.QuotesTotal != nil {
		obs.QuotesTotal.WithLabelValues(string(plan.Billing), "stateless").Inc()
	}
	f := h.Formatter
	if f == nil {
		f = money.MustDefault()
	}
	common.Data(w, http.StatusOK, Quote{
		Plan:      plan,
		Breakdown: b,
		Formatted: FormattedBreakdown{
			MonthlyTotal:       f.Format(b.MonthlyTotal),
			AnnualMonthlyTotal: f.Format(b.AnnualMonthlyTotal),
			PayableMonthly:     f.Format(b.PayableMonthly),
			SetupFee:           f.Format(b.SetupFee),
			YearlySavings:      f.Format(b.YearlySavings),
		},
	})
}
