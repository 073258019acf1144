// Package format renders amounts and dates for display and printed reports.
// It never fails: unknown currencies and locales fall back to defaults.
package format

import (
	"strings"
	"time"

	"estate/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	DefaultCurrency = "USD"
	DefaultDecimals = 2
	DefaultLocale   = "en"
	maxDecimals     = 4
)

var dateLayouts = map[string]string{
	"en":    "Jan 2, 2006",
	"en-GB": "02/01/2006",
	"it":    "02/01/2006",
	"fr":    "02/01/2006",
	"es":    "02/01/2006",
	"de":    "02.01.2006",
	"ar":    "02/01/2006",
}

type Config struct {
	Currency string
	Decimals int
	Locale   string
}

type Formatter struct {
	code       string
	decimals   int
	tag        language.Tag
	printer    *message.Printer
	dateLayout string
}

// New builds a Formatter. A currency code that is not a valid ISO 4217
// code falls back to USD, a negative decimal count to 2 and an unparsable
// locale to English.
func New(cfg Config) *Formatter {
	code := DefaultCurrency
	if unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(cfg.Currency))); err == nil {
		code = unit.String()
	}

	decimals := cfg.Decimals
	if decimals < 0 {
		decimals = DefaultDecimals
	}
	if decimals > maxDecimals {
		decimals = maxDecimals
	}

	tag, err := language.Parse(strings.TrimSpace(cfg.Locale))
	if err != nil || cfg.Locale == "" {
		tag = language.English
	}

	return &Formatter{
		code:       code,
		decimals:   decimals,
		tag:        tag,
		printer:    message.NewPrinter(tag),
		dateLayout: layoutFor(tag),
	}
}

func (f *Formatter) CurrencyCode() string { return f.code }
func (f *Formatter) Decimals() int        { return f.decimals }
func (f *Formatter) Locale() string       { return f.tag.String() }

// Number formats v with locale grouping and a fixed number of decimals,
// rounding half away from zero. Non-finite values render as zero.
func (f *Formatter) Number(v float64) string {
	if !core.IsFinite(v) {
		v = 0
	}
	rounded := decimal.NewFromFloat(v).Round(int32(f.decimals)).InexactFloat64()
	return f.printer.Sprintf("%v", number.Decimal(rounded, number.Scale(f.decimals)))
}

// Currency formats v prefixed by the currency code, e.g. "USD 1,234.50".
func (f *Formatter) Currency(v float64) string {
	return f.code + " " + f.Number(v)
}

// Percent formats a share in [0,1] as a percentage with one decimal.
func (f *Formatter) Percent(share float64) string {
	if !core.IsFinite(share) {
		share = 0
	}
	return f.printer.Sprintf("%v", number.Decimal(share*100, number.Scale(1))) + "%"
}

// Date formats t with the locale's layout; the zero time renders empty.
func (f *Formatter) Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(f.dateLayout)
}

func layoutFor(tag language.Tag) string {
	if l, ok := dateLayouts[tag.String()]; ok {
		return l
	}
	base, _ := tag.Base()
	if l, ok := dateLayouts[base.String()]; ok {
		return l
	}
	return "2006-01-02"
}
