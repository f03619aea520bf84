package configurator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-plano/internal/money"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

func newPanel() *Panel {
	return NewPanel(pricing.NewEngine(pricing.DefaultRates()), DefaultState())
}

func TestDefaultPanelPricing(t *testing.T) {
	p := newPanel()
	b := p.Breakdown()
	require.Equal(t, pricing.Money(499700), b.MonthlyTotal)
	require.Equal(t, pricing.Money(399760), b.AnnualMonthlyTotal)
	require.Equal(t, pricing.Money(29700), b.SetupFee)
}

func TestIncrementDecrementClampAtBounds(t *testing.T) {
	p := newPanel()

	v, err := p.Set(WhatsApp, 49)
	require.NoError(t, err)
	require.Equal(t, 49, v)
	v, _ = p.Increment(WhatsApp)
	require.Equal(t, 50, v)
	v, _ = p.Increment(WhatsApp)
	require.Equal(t, 50, v)

	v, _ = p.Set(Seats, 1)
	require.Equal(t, 1, v)
	v, _ = p.Decrement(Seats)
	require.Equal(t, 1, v)

	v, _ = p.Set(Social, -20)
	require.Zero(t, v)
	v, _ = p.Set(Seats, 1000)
	require.Equal(t, 250, v)
}

func TestBreakdownFollowsMutations(t *testing.T) {
	p := newPanel()
	before := p.Breakdown().MonthlyTotal
	_, err := p.Increment(Seats)
	require.NoError(t, err)
	require.Equal(t, before+5000, p.Breakdown().MonthlyTotal)

	p.ToggleBroadcast()
	require.Equal(t, before+5000-9700, p.Breakdown().MonthlyTotal)

	require.NoError(t, p.SetBilling(pricing.Annual))
	require.Zero(t, p.Breakdown().SetupFee)
}

func TestUnknownControl(t *testing.T) {
	p := newPanel()
	_, err := p.Increment("fax")
	require.True(t, errors.Is(err, ErrUnknownControl))
	_, err = p.Quantity("fax")
	require.Error(t, err)
}

func TestSetBillingRejectsUnknownMode(t *testing.T) {
	p := newPanel()
	err := p.SetBilling(pricing.BillingMode("weekly"))
	require.True(t, errors.Is(err, pricing.ErrUnknownBillingMode))
	require.Equal(t, pricing.Monthly, p.State().Billing)
}

func TestNewPanelClampsLoadedState(t *testing.T) {
	p := NewPanel(pricing.NewEngine(pricing.DefaultRates()), State{WhatsAppAccounts: 99, UserSeats: 0})
	require.Equal(t, 50, p.State().WhatsAppAccounts)
	require.Equal(t, 1, p.State().UserSeats)
	require.Equal(t, pricing.Monthly, p.State().Billing)
}

func TestOpenCheckoutSnapshotIsDetached(t *testing.T) {
	p := newPanel()
	snap := p.OpenCheckout()
	_, _ = p.Set(WhatsApp, 0)
	p.SetBroadcast(false)

	require.Equal(t, 10, snap.Plan.WhatsAppAccounts)
	require.True(t, snap.Plan.Broadcast)
	require.Equal(t, pricing.Money(499700), snap.Breakdown.MonthlyTotal)
}

func TestControlsStayWithinBoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("no sequence of operations leaves the bounds", prop.ForAll(
		func(ops []int, values []int) bool {
			p := newPanel()
			for i, op := range ops {
				c := Controls[op%len(Controls)]
				switch (op / len(Controls)) % 3 {
				case 0:
					_, _ = p.Increment(c.Name)
				case 1:
					_, _ = p.Decrement(c.Name)
				default:
					v := 0
					if len(values) > 0 {
						v = values[i%len(values)]
					}
					_, _ = p.Set(c.Name, v)
				}
				for _, check := range Controls {
					q, _ := p.Quantity(check.Name)
					if q < check.Min || q > check.Max {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
		gen.SliceOf(gen.IntRange(-500, 500)),
	))

	properties.Property("clamping is idempotent", prop.ForAll(
		func(v int) bool {
			for _, c := range Controls {
				if c.Clamp(c.Clamp(v)) != c.Clamp(v) {
					return false
				}
			}
			return true
		},
		gen.Int(),
	))

	properties.TestingRun(t)
}

func TestViewDefaultMonthly(t *testing.T) {
	f := money.FormatterFunc(func(minor int64) string { return fmt.Sprintf("%d", minor) })
	v := NewView("abc", newPanel(), f)

	require.Equal(t, "abc", v.ID)
	require.Equal(t, "Plano Mensal", v.Summary.Title)
	require.Equal(t, "499700", v.Summary.Price)
	require.Empty(t, v.Summary.Badge)
	require.Empty(t, v.Summary.Savings)
	require.Len(t, v.Summary.Lines, 5)
	require.Equal(t, "WhatsApp (10x)", v.Summary.Lines[0].Label)
	require.Equal(t, "150000", v.Summary.Lines[0].Amount)
	require.Equal(t, "9700", v.Summary.Lines[3].Amount)
	require.Equal(t, "29700", v.Summary.Lines[4].Amount)
	require.Equal(t, "10 contas", v.Controls[0].Badge)
	require.Equal(t, "50 usuários", v.Controls[2].Badge)
	require.True(t, v.Options[0].Selected)
	require.Equal(t, "20% OFF", v.Options[1].Badge)
}

func TestViewAnnualWithoutBroadcast(t *testing.T) {
	p := newPanel()
	p.SetBroadcast(false)
	require.NoError(t, p.SetBilling(pricing.Annual))
	v := NewView("", p, money.MustDefault())

	require.Equal(t, "Plano Anual", v.Summary.Title)
	require.Equal(t, "20% de desconto • Setup grátis", v.Summary.Badge)
	require.NotEmpty(t, v.Summary.Savings)
	require.Equal(t, "—", v.Summary.Lines[3].Amount)
	require.True(t, v.Options[1].Selected)
	require.False(t, v.Broadcast.Enabled)
}

func TestDiscountPercent(t *testing.T) {
	cases := map[int]string{0: "0", 2000: "20", 1250: "12,5", 1205: "12,05", 10000: "100", 5: "0,05"}
	for bps, want := range cases {
		require.Equal(t, want, DiscountPercent(bps), bps)
	}
}

func TestViewFractionalDiscount(t *testing.T) {
	rates := pricing.DefaultRates()
	rates.AnnualDiscountBps = 1250
	p := NewPanel(pricing.NewEngine(rates), DefaultState())
	require.NoError(t, p.SetBilling(pricing.Annual))
	v := NewView("", p, money.MustDefault())

	require.Equal(t, "12,5% OFF", v.Options[1].Badge)
	require.Equal(t, "12,5% de desconto • Setup grátis", v.Summary.Badge)
}
