package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"mmms/internal/core"
	"mmms/internal/export"
	"mmms/internal/insights"
	"mmms/internal/services"
)

type recurringRequest struct {
	Frequency string     `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Interval  int        `json:"interval" validate:"omitempty,gte=1,lte=365"`
	EndDate   *core.Date `json:"endDate"`
}

type transactionRequest struct {
	Date        core.Date         `json:"date"`
	Description string            `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency" validate:"required,currency"`
	CategoryID  string            `json:"categoryId" validate:"max=100"`
	Category    string            `json:"category" validate:"max=100"`
	Type        string            `json:"type" validate:"required,txtype"`
	Recurring   *recurringRequest `json:"recurring"`
	Tags        []string          `json:"tags" validate:"max=10,dive,max=30"`
}

func (req transactionRequest) input(today core.Date) services.TransactionInput {
	in := services.TransactionInput{
		Date:        req.Date,
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Amount: req.Amount, Currency: core.Currency(strings.ToUpper(req.Currency))},
		CategoryID:  req.CategoryID,
		Type:        core.TransactionType(req.Type),
		Tags:        req.Tags,
	}
	if in.Date.IsZero() {
		in.Date = today
	}
	if in.CategoryID == "" {
		in.CategoryID = req.Category
	}
	if req.Recurring != nil {
		interval := req.Recurring.Interval
		if interval == 0 {
			interval = 1
		}
		in.Recurring = &core.RecurringConfig{
			Frequency: core.Frequency(req.Recurring.Frequency),
			Interval:  interval,
			EndDate:   dateOrNil(req.Recurring.EndDate),
		}
	}
	return in
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := services.TransactionFilter{
		Month:      strings.TrimSpace(q.Get("month")),
		Type:       core.TransactionType(q.Get("type")),
		CategoryID: q.Get("categoryId"),
	}
	if f.Month != "" {
		if _, _, err := services.ParseMonth(f.Month); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if f.Type != "" && !f.Type.Valid() {
		writeError(w, r, core.Invalid("type", "must be income or expense"))
		return
	}
	var err error
	if f.Start, err = dateQuery(r, "start"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.End, err = dateQuery(r, "end"); err != nil {
		writeError(w, r, err)
		return
	}

	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := ws.Transactions.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := ws.Transactions.Create(r.Context(), req.input(ws.Today()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.transactionsCreated, 1)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := ws.Transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	currency, err := currencyQuery(r, core.USD)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_, year, month, err := monthQuery(r, ws.Today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := ws.Transactions.All(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	summary, err := insights.MonthlySummary(txs, year, month, currency, ws.Converter())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleExportTransactions streams the month's transactions as a workbook.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	ws, err := s.workspace(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, _, _, err := monthQuery(r, ws.Today())
	if err != nil {
		writeError(w, r, err)
		return
	}
	txs, err := ws.Transactions.List(r.Context(), services.TransactionFilter{Month: month})
	if err != nil {
		writeError(w, r, err)
		return
	}

	// Buffer so a failed render still gets a JSON error.
	var buf bytes.Buffer
	if err := export.TransactionsXLSX(&buf, txs); err != nil {
		writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.exports, 1)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(month)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
