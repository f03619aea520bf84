package pricing

import (
	"errors"
	"fmt"
	"strings"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// BillingMode is the subscription cadence.
type BillingMode string

const (
	Monthly BillingMode = "monthly"
	Annual  BillingMode = "annual"
)

// ErrUnknownBillingMode is returned when a billing mode cannot be parsed.
var ErrUnknownBillingMode = errors.New("pricing: unknown billing mode")

// ParseBillingMode accepts english and portuguese spellings.
func ParseBillingMode(value string) (BillingMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "monthly", "mensal":
		return Monthly, nil
	case "annual", "anual", "yearly":
		return Annual, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBillingMode, value)
	}
}

// Valid reports whether the mode is one of the known constants.
func (m BillingMode) Valid() bool {
	return m == Monthly || m == Annual
}

// RateTable holds the per-unit monthly rates and fixed fees.
type RateTable struct {
	WhatsApp          Money `json:"whatsapp"`
	Social            Money `json:"social"`
	Seat              Money `json:"seat"`
	Broadcast         Money `json:"broadcast"`
	Setup             Money `json:"setup"`
	AnnualDiscountBps int   `json:"annualDiscountBps"`
}

// DefaultRates returns the published rate table in BRL centavos.
func DefaultRates() RateTable {
	return RateTable{
		WhatsApp:          15000,
		Social:            6000,
		Seat:              5000,
		Broadcast:         9700,
		Setup:             29700,
		AnnualDiscountBps: 2000,
	}
}

// MaxRate bounds every rate so MaxQuantity units still price without overflow.
const MaxRate Money = 10_000_000_000

// Validate rejects rates outside [0, MaxRate] and discounts outside [0, 10000] bps.
func (r RateTable) Validate() error {
	for _, rate := range []Money{r.WhatsApp, r.Social, r.Seat, r.Broadcast, r.Setup} {
		if rate < 0 {
			return errors.New("pricing: rates must not be negative")
		}
		if rate > MaxRate {
			return fmt.Errorf("pricing: rate %d exceeds %d", rate, MaxRate)
		}
	}
	if r.AnnualDiscountBps < 0 || r.AnnualDiscountBps > 10000 {
		return fmt.Errorf("pricing: annual discount %d bps out of range", r.AnnualDiscountBps)
	}
	return nil
}

// Plan is the configuration a customer builds in the configurator.
type Plan struct {
	WhatsAppAccounts int         `json:"whatsappAccounts"`
	SocialAccounts   int         `json:"socialAccounts"`
	UserSeats        int         `json:"userSeats"`
	Broadcast        bool        `json:"broadcastEnabled"`
	Billing          BillingMode `json:"billingMode"`
}

// MaxQuantity caps each quantity accepted from outside the configurator, far
// above any control bound and low enough that no rate product overflows.
const MaxQuantity = 10_000

// ErrQuantityOutOfRange is returned by Plan.Validate.
var ErrQuantityOutOfRange = errors.New("pricing: quantity out of range")

// Validate checks every quantity lies in [0, MaxQuantity].
func (p Plan) Validate() error {
	for _, q := range []struct {
		field string
		value int
	}{
		{"whatsappAccounts", p.WhatsAppAccounts},
		{"socialAccounts", p.SocialAccounts},
		{"userSeats", p.UserSeats},
	} {
		if q.value < 0 || q.value > MaxQuantity {
			return fmt.Errorf("%w: %s=%d (max %d)", ErrQuantityOutOfRange, q.field, q.value, MaxQuantity)
		}
	}
	return nil
}

// Breakdown aggregates computed pricing components.
type Breakdown struct {
	WhatsAppCost       Money `json:"whatsappCost"`
	SocialCost         Money `json:"socialCost"`
	SeatsCost          Money `json:"seatsCost"`
	BroadcastCost      Money `json:"broadcastCost"`
	SetupFee           Money `json:"setupFee"`
	MonthlyTotal       Money `json:"monthlyTotal"`
	AnnualMonthlyTotal Money `json:"annualMonthlyTotal"`
	YearlySavings      Money `json:"yearlySavings"`
	PayableMonthly     Money `json:"payableMonthly"`
}

// Snapshot is a copy of a plan and its pricing taken when checkout opens.
type Snapshot struct {
	Plan      Plan      `json:"plan"`
	Breakdown Breakdown `json:"breakdown"`
}

// Engine computes plan prices against a fixed rate table.
type Engine struct {
	rates RateTable
}

// NewEngine returns an engine bound to a copy of rates.
func NewEngine(rates RateTable) Engine {
	return Engine{rates: rates}
}

// Rates returns the rate table the engine was built with.
func (e Engine) Rates() RateTable {
	return e.rates
}

// Compute calculates the plan breakdown.
func (e Engine) Compute(p Plan) Breakdown {
	r := e.rates
	b := Breakdown{
		WhatsAppCost: units(p.WhatsAppAccounts) * r.WhatsApp,
		SocialCost:   units(p.SocialAccounts) * r.Social,
		SeatsCost:    units(p.UserSeats) * r.Seat,
	}
	if p.Broadcast {
		b.BroadcastCost = r.Broadcast
	}
	b.MonthlyTotal = b.WhatsAppCost + b.SocialCost + b.SeatsCost + b.BroadcastCost
	b.AnnualMonthlyTotal = (b.MonthlyTotal * Money(10000-r.AnnualDiscountBps)) / 10000

	if p.Billing == Annual {
		b.YearlySavings = (b.MonthlyTotal - b.AnnualMonthlyTotal) * 12
		b.PayableMonthly = b.AnnualMonthlyTotal
	} else {
		b.SetupFee = r.Setup
		b.PayableMonthly = b.MonthlyTotal
	}
	return b
}

// Snapshot computes the breakdown and returns both as a value copy.
func (e Engine) Snapshot(p Plan) Snapshot {
	return Snapshot{Plan: p, Breakdown: e.Compute(p)}
}

func units(qty int) Money {
	if qty <= 0 {
		return 0
	}
	return Money(qty)
}
