package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
)

type convertRequest struct {
	Amount       *decimal.Decimal `json:"amount"`
	FromCurrency string           `json:"fromCurrency"`
	ToCurrency   string           `json:"toCurrency"`
}

type supportedCurrency struct {
	Code   core.Currency `json:"code"`
	Name   string        `json:"name"`
	Symbol string        `json:"symbol"`
}

func (s *Server) handleCurrencyRates(w http.ResponseWriter, r *http.Request) {
	conv := s.svcDeps.Converter
	usdToKHR, _ := conv.RateBetween(core.USD, core.KHR)
	khrToUSD, _ := conv.RateBetween(core.KHR, core.USD)
	writeJSON(w, http.StatusOK, map[string]any{
		"rates": map[string]json.Number{
			"USD_TO_KHR": number(usdToKHR),
			"KHR_TO_USD": number(khrToUSD.Round(8)),
		},
		"lastUpdated": s.svcDeps.Clock().UTC(),
		"source":      "static demo rate",
	})
}

func (s *Server) handleCurrencyConvert(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Amount == nil || req.FromCurrency == "" || req.ToCurrency == "" {
		writeError(w, r, core.Invalid("", "Amount, fromCurrency, and toCurrency are required"))
		return
	}
	from, err := core.ParseCurrency(req.FromCurrency)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := core.ParseCurrency(req.ToCurrency)
	if err != nil {
		writeError(w, r, err)
		return
	}

	conv := s.svcDeps.Converter
	converted, err := conv.Convert(core.Money{Amount: *req.Amount, Currency: from}, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rate, err := conv.RateBetween(from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	converted.Amount = converted.Amount.Round(2)
	writeJSON(w, http.StatusOK, map[string]any{
		"originalAmount":  number(*req.Amount),
		"convertedAmount": number(converted.Amount),
		"fromCurrency":    from,
		"toCurrency":      to,
		"rate":            number(rate.Round(8)),
		"formatted":       core.Format(converted, localeOf(r)),
	})
}

func (s *Server) handleSupportedCurrencies(w http.ResponseWriter, r *http.Request) {
	infos := core.SupportedCurrencies()
	out := make([]supportedCurrency, 0, len(infos))
	for _, info := range infos {
		out = append(out, supportedCurrency{Code: info.Code, Name: info.Name, Symbol: info.Symbol})
	}
	writeJSON(w, http.StatusOK, map[string]any{"currencies": out})
}

// localeOf picks the first Accept-Language tag, en-US otherwise.
func localeOf(r *http.Request) string {
	first, _, _ := strings.Cut(r.Header.Get("Accept-Language"), ",")
	first, _, _ = strings.Cut(strings.TrimSpace(first), ";")
	if first == "" || first == "*" {
		return "en-US"
	}
	return first
}

// number renders d as a JSON number rather than a quoted string.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
