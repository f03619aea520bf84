package checkout

import (
	"fmt"

	"github.com/noah-isme/backend-plano/internal/configurator"
	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

// StepBadge is one of the numbered step markers in the wizard header.
type StepBadge struct {
	Number form.Step `json:"number"`
	Label  string    `json:"label"`
	Active bool      `json:"active"`
}

// PlanSummary describes the plan being bought.
type PlanSummary struct {
	Description string `json:"description"`
	TotalLabel  string `json:"totalLabel"`
	Total       string `json:"total"`
}

// View is everything a client needs to render the wizard.
type View struct {
	ID            string                       `json:"id,omitempty"`
	Step          form.Step                    `json:"step"`
	Steps         []StepBadge                  `json:"steps"`
	Plan          PlanSummary                  `json:"plan"`
	Options       []configurator.BillingOption `json:"options"`
	Breakdown     pricing.Breakdown            `json:"breakdown"`
	Forms         form.Forms                   `json:"forms"`
	FieldErrors   form.FieldErrors             `json:"fieldErrors"`
	PrimaryAction string                       `json:"primaryAction"`
	CanGoBack     bool                         `json:"canGoBack"`
	Closed        bool                         `json:"closed"`
}

var stepLabels = []struct {
	step  form.Step
	label string
}{
	{form.StepPersonal, "Dados Pessoais"},
	{form.StepCompany, "Dados da Empresa"},
	{form.StepAddress, "Endereço"},
}

// DescribePlan renders "10 WhatsApp, 50 usuários, 15 redes, Disparo ativado".
func DescribePlan(p pricing.Plan) string {
	broadcast := "desativado"
	if p.Broadcast {
		broadcast = "ativado"
	}
	return fmt.Sprintf("%d WhatsApp, %d usuários, %d redes, Disparo %s",
		p.WhatsAppAccounts, p.UserSeats, p.SocialAccounts, broadcast)
}

// NewView renders the wizard with the given formatter.
func NewView(id string, w *Wizard, f money.Formatter) View {
	state := w.State()
	b := w.Breakdown()

	steps := make([]StepBadge, 0, len(stepLabels))
	for _, s := range stepLabels {
		steps = append(steps, StepBadge{Number: s.step, Label: s.label, Active: s.step == state.Step})
	}

	action := "Próximo"
	if state.Step == form.StepAddress {
		action = "Finalizar Contratação"
	}

	return View{
		ID:    id,
		Step:  state.Step,
		Steps: steps,
		Plan: PlanSummary{
			Description: DescribePlan(state.Snapshot.Plan),
			TotalLabel:  "Total Mensal",
			Total:       f.Format(b.PayableMonthly),
		},
		Options:       configurator.BillingOptions(b, w.deps.Engine.Rates(), state.Billing, f),
		Breakdown:     b,
		Forms:         state.Forms,
		FieldErrors:   state.FieldErrors,
		PrimaryAction: action,
		CanGoBack:     state.Step > form.StepPersonal,
		Closed:        state.Closed,
	}
}
