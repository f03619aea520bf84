package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultFormatterBRL(t *testing.T) {
	f := MustDefault()
	require.Equal(t, "R$\u00a04.997,00", f.Format(499700))
	require.Equal(t, "R$\u00a03.997,60", f.Format(399760))
	require.Equal(t, "R$\u00a00,00", f.Format(0))
	require.Equal(t, "R$\u00a097,00", f.Format(9700))
}

func TestFormatterNegative(t *testing.T) {
	require.Equal(t, "-R$\u00a012,50", MustDefault().Format(-1250))
}

func TestFormatterFallsBackToISOCode(t *testing.T) {
	f, err := NewFormatter(Options{Locale: "en-US", Currency: "USD"})
	require.NoError(t, err)
	require.Equal(t, "USD\u00a01,234.50", f.Format(123450))
}

func TestNewFormatterRejectsUnknownCurrency(t *testing.T) {
	_, err := NewFormatter(Options{Locale: "pt-BR", Currency: "XXY"})
	require.Error(t, err)

	_, err = NewFormatter(Options{Locale: "not a locale!", Currency: "BRL"})
	require.Error(t, err)
}

func TestFormatterFunc(t *testing.T) {
	var f Formatter = FormatterFunc(func(minor int64) string { return "stub" })
	require.Equal(t, "stub", f.Format(1))
}
