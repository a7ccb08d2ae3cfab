package order

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatPKR renders an amount the way the storefront shows prices: whole
// rupees, thousands grouped, e.g. "PKR 4,500".
func FormatPKR(amount decimal.Decimal) string {
	return printer.Sprintf("PKR %d", amount.Round(0).IntPart())
}

// FormatRs is the short form used on product cards.
func FormatRs(amount decimal.Decimal) string {
	return printer.Sprintf("Rs %d", amount.Round(0).IntPart())
}
