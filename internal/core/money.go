// Package core provides the money model, categories and domain entities.
//
// This file holds the single conversion implementation shared by the HTTP
// layer, the metrics engine and the services. Amounts are exact decimals;
// the exchange rate is a static value, not market data.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	USD Currency = "USD"
	KHR Currency = "KHR"
)

// DefaultRate is the number of riel per US dollar used when no rate is configured.
// It is a static demo value.
const DefaultRate = 4100

// ErrInvalidAmount is returned when an amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// CurrencyInfo describes a supported currency for display.
type CurrencyInfo struct {
	Code     Currency `json:"code"`
	Symbol   string   `json:"symbol"`
	Name     string   `json:"name"`
	Decimals int32    `json:"decimals"`
	// SymbolAfter places the symbol after the amount (4,100៛).
	SymbolAfter bool `json:"-"`
}

var currencies = map[Currency]CurrencyInfo{
	USD: {Code: USD, Symbol: "$", Name: "US Dollar", Decimals: 2},
	KHR: {Code: KHR, Symbol: "៛", Name: "Cambodian Riel", Decimals: 0, SymbolAfter: true},
}

// SupportedCurrencies returns the supported currencies in a stable order.
func SupportedCurrencies() []CurrencyInfo {
	return []CurrencyInfo{currencies[USD], currencies[KHR]}
}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	_, ok := currencies[c]
	return ok
}

// Info returns display metadata for c.
func (c Currency) Info() (CurrencyInfo, error) {
	info, ok := currencies[c]
	if !ok {
		return CurrencyInfo{}, &UnsupportedCurrencyError{Currency: string(c)}
	}
	return info, nil
}

// ParseCurrency normalises and validates a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", &UnsupportedCurrencyError{Currency: s}
	}
	return c, nil
}

// Money is an immutable amount in a currency. The sign carries no meaning;
// direction belongs to the owning transaction.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney builds a Money from a float amount.
func NewMoney(amount float64, c Currency) Money {
	return Money{Amount: decimal.NewFromFloat(amount), Currency: c}
}

// Zero returns a zero amount in c.
func Zero(c Currency) Money {
	return Money{Amount: decimal.Zero, Currency: c}
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// Float returns the amount as a float64 for display and JSON.
func (m Money) Float() float64 { return m.Amount.InexactFloat64() }

// Round rounds the amount to the currency's display precision.
func (m Money) Round() Money {
	info, ok := currencies[m.Currency]
	if !ok {
		return m
	}
	return Money{Amount: m.Amount.Round(info.Decimals), Currency: m.Currency}
}

// Validate checks the currency is supported.
func (m Money) Validate() error {
	if !m.Currency.Valid() {
		return &UnsupportedCurrencyError{Currency: string(m.Currency)}
	}
	return nil
}

func (m Money) String() string {
	return m.Amount.String() + " " + string(m.Currency)
}

type moneyJSON struct {
	Amount   json.Number `json:"amount"`
	Currency Currency    `json:"currency"`
}

// MarshalJSON encodes the amount as a JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: json.Number(m.Amount.String()), Currency: m.Currency})
}

// UnmarshalJSON accepts the amount as a JSON number or numeric string.
func (m *Money) UnmarshalJSON(data []byte) error {
	var raw struct {
		Amount   json.RawMessage `json:"amount"`
		Currency Currency        `json:"currency"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount := strings.Trim(string(raw.Amount), `"`)
	if amount == "" || amount == "null" {
		amount = "0"
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	m.Amount = d
	m.Currency = raw.Currency
	return nil
}

// Converter converts between USD and KHR at a fixed rate (riel per dollar).
type Converter struct {
	Rate decimal.Decimal
}

// DefaultConverter uses DefaultRate.
var DefaultConverter = Converter{Rate: decimal.NewFromInt(DefaultRate)}

// NewConverter returns a converter for rate, falling back to DefaultRate
// when rate is not positive.
func NewConverter(rate float64) Converter {
	if rate <= 0 {
		return DefaultConverter
	}
	return Converter{Rate: decimal.NewFromFloat(rate)}
}

func (c Converter) rate() decimal.Decimal {
	if c.Rate.IsPositive() {
		return c.Rate
	}
	return DefaultConverter.Rate
}

// RateBetween returns the multiplier that converts from into to.
func (c Converter) RateBetween(from, to Currency) (decimal.Decimal, error) {
	if !from.Valid() {
		return decimal.Zero, &UnsupportedCurrencyError{Currency: string(from)}
	}
	if !to.Valid() {
		return decimal.Zero, &UnsupportedCurrencyError{Currency: string(to)}
	}
	switch {
	case from == to:
		return decimal.NewFromInt(1), nil
	case from == USD && to == KHR:
		return c.rate(), nil
	default:
		return decimal.NewFromInt(1).Div(c.rate()), nil
	}
}

// Convert returns m expressed in target. Identity when the currencies match.
func (c Converter) Convert(m Money, target Currency) (Money, error) {
	if !m.Currency.Valid() {
		return Money{}, &UnsupportedCurrencyError{Currency: string(m.Currency)}
	}
	if !target.Valid() {
		return Money{}, &UnsupportedCurrencyError{Currency: string(target)}
	}
	switch {
	case m.Currency == target:
		return m, nil
	case m.Currency == USD && target == KHR:
		return Money{Amount: m.Amount.Mul(c.rate()), Currency: KHR}, nil
	default:
		return Money{Amount: m.Amount.Div(c.rate()), Currency: USD}, nil
	}
}

// Add converts both operands to target (a's currency when empty) and sums them.
func (c Converter) Add(a, b Money, target Currency) (Money, error) {
	return c.combine(a, b, target, decimal.Decimal.Add)
}

// Subtract converts both operands to target (a's currency when empty) and
// returns a - b.
func (c Converter) Subtract(a, b Money, target Currency) (Money, error) {
	return c.combine(a, b, target, decimal.Decimal.Sub)
}

// Sum adds every amount after converting it to target.
func (c Converter) Sum(target Currency, ms ...Money) (Money, error) {
	total := Zero(target)
	for _, m := range ms {
		next, err := c.Add(total, m, target)
		if err != nil {
			return Money{}, err
		}
		total = next
	}
	return total, nil
}

func (c Converter) combine(a, b Money, target Currency, op func(decimal.Decimal, decimal.Decimal) decimal.Decimal) (Money, error) {
	if target == "" {
		target = a.Currency
	}
	ca, err := c.Convert(a, target)
	if err != nil {
		return Money{}, err
	}
	cb, err := c.Convert(b, target)
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: op(ca.Amount, cb.Amount), Currency: target}, nil
}

// Convert uses DefaultConverter.
func Convert(m Money, target Currency) (Money, error) {
	return DefaultConverter.Convert(m, target)
}

// Format renders m for locale with grouping. USD keeps two decimals and a
// leading symbol, KHR has no decimals and a trailing symbol.
func Format(m Money, locale string) string {
	info, ok := currencies[m.Currency]
	if !ok {
		return m.String()
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	amount := m.Amount.Round(info.Decimals)
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Abs()
	}
	digits := int(info.Decimals)
	p := message.NewPrinter(tag)
	body := p.Sprint(number.Decimal(amount.InexactFloat64(),
		number.MinFractionDigits(digits), number.MaxFractionDigits(digits)))
	if info.SymbolAfter {
		return sign + body + info.Symbol
	}
	return sign + info.Symbol + body
}

// ParseAmount parses a decimal string into an exact amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators, an
// optional leading sign and thousands separators when both separators are
// present ("1,234.50"). Spreadsheet cells come back in either form.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,34")    -> 12.34
//	ParseAmount("1,234.50") -> 1234.5
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ",", "")
	} else {
		s = strings.ReplaceAll(s, ",", ".")
	}
	body := strings.TrimLeft(s, "+-")
	if body == "" || strings.Count(body, ".") > 1 {
		return decimal.Zero, ErrInvalidAmount
	}
	for _, r := range body {
		if r != '.' && !unicode.IsDigit(r) {
			return decimal.Zero, ErrInvalidAmount
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
