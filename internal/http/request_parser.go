// Package http serves the JSON API.
//
// This file implements request decoding and validation shared by all
// handlers: bodies are size limited, unknown fields are rejected and
// struct tags are checked with go-playground/validator.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"mmms/internal/core"
	"mmms/internal/services"
)

// MaxBodyBytes bounds every request body.
const MaxBodyBytes = 1 << 20

// newValidator returns a validator reporting json field names and knowing
// the domain tags currency, month and txtype.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return core.Currency(strings.ToUpper(fl.Field().String())).Valid()
	})
	_ = v.RegisterValidation("month", func(fl validator.FieldLevel) bool {
		_, _, err := services.ParseMonth(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		return core.TransactionType(fl.Field().String()).Valid()
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		m := sl.Current().Interface().(core.Money)
		if !m.Currency.Valid() {
			sl.ReportError(m.Currency, "currency", "Currency", "currency", "")
		}
		if m.Amount.IsNegative() {
			sl.ReportError(m.Amount, "amount", "Amount", "gte", "0")
		}
	}, core.Money{})
	return v
}

// decodeJSON reads a JSON body into dst and validates it.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return core.Invalid("", "body must contain a single JSON object")
	}
	return s.validateStruct(dst)
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		maxErr    *http.MaxBytesError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return core.Invalid("", fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset))
	case errors.As(err, &typeErr):
		return core.Invalid(typeErr.Field, "has the wrong type")
	case errors.As(err, &maxErr):
		return core.Invalid("", fmt.Sprintf("body larger than %d bytes", maxErr.Limit))
	case errors.Is(err, io.EOF):
		return core.Invalid("", "body is required")
	case errors.Is(err, core.ErrInvalidAmount):
		return core.Invalid("amount", "must be a number")
	case errors.Is(err, core.ErrInvalidDate):
		return core.Invalid("date", "must be YYYY-MM-DD")
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return core.Invalid(strings.Trim(strings.TrimPrefix(err.Error(), "json: unknown field "), `"`), "is not allowed")
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return core.Invalid("", "malformed JSON")
}

// validateStruct turns the first validator failure into a ValidationError.
// Unsupported currencies keep their own error type.
func (s *Server) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return core.Invalid("", err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	if fe.Tag() == "currency" {
		return &core.UnsupportedCurrencyError{Currency: fmt.Sprint(fe.Value())}
	}
	return core.Invalid(field, reason(fe))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "min":
		return "must be at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must not be negative"
	case "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "month":
		return "must be YYYY-MM"
	case "txtype":
		return "must be income or expense"
	case "hexcolor":
		return "must be a hex color"
	case "dive":
		return "is invalid"
	}
	return "is invalid (" + fe.Tag() + ")"
}

// monthQuery returns the month query parameter or the current month.
func monthQuery(r *http.Request, today core.Date) (string, int, int, error) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		return fmt.Sprintf("%04d-%02d", today.Year(), int(today.Month())), today.Year(), int(today.Month()), nil
	}
	y, m, err := services.ParseMonth(month)
	if err != nil {
		return "", 0, 0, err
	}
	return month, y, m, nil
}

// currencyQuery parses an optional currency query parameter.
func currencyQuery(r *http.Request, fallback core.Currency) (core.Currency, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("currency"))
	if raw == "" {
		return fallback, nil
	}
	return core.ParseCurrency(raw)
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, name string) (*core.Date, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return nil, core.Invalid(name, "must be YYYY-MM-DD")
	}
	return &d, nil
}

// rowIndexPath parses a non-negative integer path value.
func rowIndexPath(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n < 0 {
		return 0, core.Invalid(name, "must be a non-negative integer")
	}
	return n, nil
}
