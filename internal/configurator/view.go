package configurator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

// ControlView is a control together with its current value.
type ControlView struct {
	Control
	Value int    `json:"value"`
	Badge string `json:"badge"`
}

// AddonView describes the broadcast toggle.
type AddonView struct {
	Label   string `json:"label"`
	Hint    string `json:"hint"`
	Enabled bool   `json:"enabled"`
}

// BillingOption is one of the two billing buttons.
type BillingOption struct {
	Mode     pricing.BillingMode `json:"mode"`
	Label    string              `json:"label"`
	Price    string              `json:"price"`
	Period   string              `json:"period"`
	Badge    string              `json:"badge,omitempty"`
	Note     string              `json:"note,omitempty"`
	Selected bool                `json:"selected"`
}

// SummaryLine is a row of the plan summary.
type SummaryLine struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// Summary is the headline price card plus the itemised plan summary.
type Summary struct {
	Title   string        `json:"title"`
	Price   string        `json:"price"`
	Period  string        `json:"period"`
	Badge   string        `json:"badge,omitempty"`
	Savings string        `json:"savings,omitempty"`
	Lines   []SummaryLine `json:"lines"`
}

// View is everything a client needs to render the configurator.
type View struct {
	ID        string            `json:"id,omitempty"`
	State     State             `json:"state"`
	Breakdown pricing.Breakdown `json:"breakdown"`
	Controls  []ControlView     `json:"controls"`
	Broadcast AddonView         `json:"broadcast"`
	Options   []BillingOption   `json:"options"`
	Summary   Summary           `json:"summary"`
}

const (
	perMonth    = "por mês"
	notIncluded = "—"
)

// BillingLabel is the display name of a billing mode.
func BillingLabel(mode pricing.BillingMode) string {
	if mode == pricing.Annual {
		return "Plano Anual"
	}
	return "Plano Mensal"
}

// DiscountPercent renders basis points as a pt-BR percentage without trailing
// zeros: 2000 is "20", 1250 is "12,5", 1205 is "12,05".
func DiscountPercent(bps int) string {
	whole, frac := bps/100, bps%100
	if frac == 0 {
		return strconv.Itoa(whole)
	}
	return strings.TrimRight(fmt.Sprintf("%d,%02d", whole, frac), "0")
}

// BillingOptions renders both billing choices for a breakdown.
func BillingOptions(b pricing.Breakdown, rates pricing.RateTable, selected pricing.BillingMode, f money.Formatter) []BillingOption {
	return []BillingOption{
		{
			Mode:     pricing.Monthly,
			Label:    BillingLabel(pricing.Monthly),
			Price:    f.Format(b.MonthlyTotal),
			Period:   perMonth,
			Selected: selected != pricing.Annual,
		},
		{
			Mode:     pricing.Annual,
			Label:    BillingLabel(pricing.Annual),
			Price:    f.Format(b.AnnualMonthlyTotal),
			Period:   perMonth,
			Badge:    DiscountPercent(rates.AnnualDiscountBps) + "% OFF",
			Note:     "Setup grátis",
			Selected: selected == pricing.Annual,
		},
	}
}

// NewView renders the panel with the given formatter.
func NewView(id string, p *Panel, f money.Formatter) View {
	state := p.State()
	b := p.Breakdown()
	rates := p.engine.Rates()

	controls := make([]ControlView, 0, len(Controls))
	for _, c := range Controls {
		v := p.get(c.Name)
		controls = append(controls, ControlView{Control: c, Value: v, Badge: fmt.Sprintf("%d %s", v, c.Unit)})
	}

	summary := Summary{
		Title:  BillingLabel(state.Billing),
		Price:  f.Format(b.PayableMonthly),
		Period: perMonth,
	}
	if state.Billing == pricing.Annual {
		summary.Badge = DiscountPercent(rates.AnnualDiscountBps) + "% de desconto • Setup grátis"
		summary.Savings = "Economia estimada no ano: " + f.Format(b.YearlySavings)
	}
	broadcast := notIncluded
	if state.Broadcast {
		broadcast = f.Format(b.BroadcastCost)
	}
	summary.Lines = []SummaryLine{
		{Label: fmt.Sprintf("WhatsApp (%dx)", state.WhatsAppAccounts), Amount: f.Format(b.WhatsAppCost)},
		{Label: fmt.Sprintf("Redes Sociais (%dx)", state.SocialAccounts), Amount: f.Format(b.SocialCost)},
		{Label: fmt.Sprintf("Usuários (%dx)", state.UserSeats), Amount: f.Format(b.SeatsCost)},
		{Label: "Disparo de Mensagem", Amount: broadcast},
		{Label: "Setup (único)", Amount: f.Format(b.SetupFee)},
	}

	return View{
		ID:        id,
		State:     state,
		Breakdown: b,
		Controls:  controls,
		Broadcast: AddonView{
			Label:   "Módulo Disparo de Mensagem",
			Hint:    f.Format(rates.Broadcast) + "/mês – envio em massa e campanhas",
			Enabled: state.Broadcast,
		},
		Options: BillingOptions(b, rates, state.Billing, f),
		Summary: summary,
	}
}
