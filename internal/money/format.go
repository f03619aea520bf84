package money

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders minor-unit amounts as display strings.
type Formatter interface {
	Format(minor int64) string
}

// FormatterFunc adapts a plain function to Formatter.
type FormatterFunc func(minor int64) string

// Format implements Formatter.
func (f FormatterFunc) Format(minor int64) string { return f(minor) }

// Options selects the locale and currency of a LocaleFormatter.
type Options struct {
	Locale   string
	Currency string
	// Symbol overrides the prefix; the ISO code is used when empty.
	Symbol string
}

// DefaultOptions is the Brazilian real as shown on the pricing page.
func DefaultOptions() Options {
	return Options{Locale: "pt-BR", Currency: "BRL", Symbol: "R$"}
}

// LocaleFormatter formats amounts using CLDR number conventions for a locale.
type LocaleFormatter struct {
	printer *message.Printer
	symbol  string
	scale   int
}

// NewFormatter builds a formatter for the given options.
func NewFormatter(opts Options) (*LocaleFormatter, error) {
	tag, err := language.Parse(strings.TrimSpace(opts.Locale))
	if err != nil {
		return nil, fmt.Errorf("money: parse locale %q: %w", opts.Locale, err)
	}
	unit, err := currency.ParseISO(strings.TrimSpace(opts.Currency))
	if err != nil {
		return nil, fmt.Errorf("money: parse currency %q: %w", opts.Currency, err)
	}
	scale, _ := currency.Standard.Rounding(unit)
	symbol := strings.TrimSpace(opts.Symbol)
	if symbol == "" {
		symbol = unit.String()
	}
	return &LocaleFormatter{
		printer: message.NewPrinter(tag),
		symbol:  symbol,
		scale:   scale,
	}, nil
}

// MustDefault returns the BRL formatter and panics if x/text rejects it.
func MustDefault() *LocaleFormatter {
	f, err := NewFormatter(DefaultOptions())
	if err != nil {
		panic(err)
	}
	return f
}

// Format renders e.g. 499700 as "R$ 4.997,00" (no-break space after the symbol).
func (f *LocaleFormatter) Format(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	value := float64(minor) / math.Pow10(f.scale)
	digits := f.printer.Sprint(number.Decimal(value, number.Scale(f.scale)))
	return sign + f.symbol + "\u00a0" + digits
}
