// Package format renders money and quantity values for display, using
// locale-aware formatting from golang.org/x/text.
package format

import (
	"fmt"
	"strconv"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Formatter renders amounts for one display locale.
type Formatter struct {
	printer *message.Printer
}

// New creates a Formatter for the given BCP 47 language tag, e.g. "en-US".
// An unparseable tag falls back to English.
func New(tag string) *Formatter {
	lang, err := language.Parse(tag)
	if err != nil {
		lang = language.English
	}
	return &Formatter{printer: message.NewPrinter(lang)}
}

// Money renders an amount string (decimal, as the backend sends it) in the
// given ISO 4217 currency, e.g. ("1234.5", "USD") -> "USD 1,234.50".
func (f *Formatter) Money(amount, code string) (string, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", fmt.Errorf("parsing currency %q: %w", code, err)
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return "", fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	scale, _ := currency.Cash.Rounding(unit)
	return f.printer.Sprintf("%v %.*f", unit, scale, value), nil
}

// Quantity renders a plain decimal with locale grouping,
// e.g. 1234567.25 -> "1,234,567.25" for en-US.
func (f *Formatter) Quantity(value float64) string {
	return f.printer.Sprintf("%v", value)
}
