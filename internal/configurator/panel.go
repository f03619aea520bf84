package configurator

import (
	"errors"
	"fmt"

	"github.com/noah-isme/backend-plano/internal/pricing"
)

// ErrUnknownControl is returned for a control name outside Controls.
var ErrUnknownControl = errors.New("configurator: unknown control")

// Control is a bounded integer quantity input.
type Control struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Unit  string `json:"unit"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Step  int    `json:"step"`
}

// Clamp bounds v to [Min, Max].
func (c Control) Clamp(v int) int {
	if v < c.Min {
		return c.Min
	}
	if v > c.Max {
		return c.Max
	}
	return v
}

func (c Control) step() int {
	if c.Step <= 0 {
		return 1
	}
	return c.Step
}

// Control names.
const (
	WhatsApp = "whatsapp"
	Social   = "social"
	Seats    = "seats"
)

// Controls lists the quantity inputs in display order.
var Controls = []Control{
	{Name: WhatsApp, Label: "Contas WhatsApp", Unit: "contas", Min: 0, Max: 50, Step: 1},
	{Name: Social, Label: "Contas Redes Sociais", Unit: "contas", Min: 0, Max: 50, Step: 1},
	{Name: Seats, Label: "Usuários", Unit: "usuários", Min: 1, Max: 250, Step: 1},
}

// LookupControl finds a control by name.
func LookupControl(name string) (Control, error) {
	for _, c := range Controls {
		if c.Name == name {
			return c, nil
		}
	}
	return Control{}, fmt.Errorf("%w: %q", ErrUnknownControl, name)
}

// State is the serialisable panel state.
type State struct {
	WhatsAppAccounts int                 `json:"whatsappAccounts"`
	SocialAccounts   int                 `json:"socialAccounts"`
	UserSeats        int                 `json:"userSeats"`
	Broadcast        bool                `json:"broadcastEnabled"`
	Billing          pricing.BillingMode `json:"billingMode"`
}

// DefaultState is what a freshly mounted panel shows.
func DefaultState() State {
	return State{
		WhatsAppAccounts: 10,
		SocialAccounts:   15,
		UserSeats:        50,
		Broadcast:        true,
		Billing:          pricing.Monthly,
	}
}

// Panel holds the configurator state and derives pricing from it.
type Panel struct {
	state  State
	engine pricing.Engine
}

// NewPanel wraps a state, clamping any out-of-range quantity.
func NewPanel(engine pricing.Engine, state State) *Panel {
	p := &Panel{state: state, engine: engine}
	for _, c := range Controls {
		p.set(c, p.get(c.Name))
	}
	if !p.state.Billing.Valid() {
		p.state.Billing = pricing.Monthly
	}
	return p
}

// State returns a copy of the current state.
func (p *Panel) State() State { return p.state }

// Plan converts the state to a pricing plan.
func (p *Panel) Plan() pricing.Plan {
	return pricing.Plan{
		WhatsAppAccounts: p.state.WhatsAppAccounts,
		SocialAccounts:   p.state.SocialAccounts,
		UserSeats:        p.state.UserSeats,
		Broadcast:        p.state.Broadcast,
		Billing:          p.state.Billing,
	}
}

// Breakdown recomputes the pricing of the current state.
func (p *Panel) Breakdown() pricing.Breakdown {
	return p.engine.Compute(p.Plan())
}

// Quantity returns the value of a control.
func (p *Panel) Quantity(name string) (int, error) {
	if _, err := LookupControl(name); err != nil {
		return 0, err
	}
	return p.get(name), nil
}

// Increment adds one step, clamped at Max.
func (p *Panel) Increment(name string) (int, error) {
	c, err := LookupControl(name)
	if err != nil {
		return 0, err
	}
	return p.set(c, p.get(name)+c.step()), nil
}

// Decrement removes one step, clamped at Min.
func (p *Panel) Decrement(name string) (int, error) {
	c, err := LookupControl(name)
	if err != nil {
		return 0, err
	}
	return p.set(c, p.get(name)-c.step()), nil
}

// Set assigns a value directly, as a slider would, clamped to the bounds.
func (p *Panel) Set(name string, v int) (int, error) {
	c, err := LookupControl(name)
	if err != nil {
		return 0, err
	}
	return p.set(c, v), nil
}

// SetBroadcast switches the broadcast add-on.
func (p *Panel) SetBroadcast(enabled bool) { p.state.Broadcast = enabled }

// ToggleBroadcast flips the broadcast add-on.
func (p *Panel) ToggleBroadcast() bool {
	p.state.Broadcast = !p.state.Broadcast
	return p.state.Broadcast
}

// SetBilling selects the billing mode shown in the summary.
func (p *Panel) SetBilling(mode pricing.BillingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", pricing.ErrUnknownBillingMode, mode)
	}
	p.state.Billing = mode
	return nil
}

// OpenCheckout snapshots the plan and its pricing by value.
func (p *Panel) OpenCheckout() pricing.Snapshot {
	return p.engine.Snapshot(p.Plan())
}

func (p *Panel) get(name string) int {
	switch name {
	case WhatsApp:
		return p.state.WhatsAppAccounts
	case Social:
		return p.state.SocialAccounts
	case Seats:
		return p.state.UserSeats
	}
	return 0
}

func (p *Panel) set(c Control, v int) int {
	v = c.Clamp(v)
	switch c.Name {
	case WhatsApp:
		p.state.WhatsAppAccounts = v
	case Social:
		p.state.SocialAccounts = v
	case Seats:
		p.state.UserSeats = v
	}
	return v
}
