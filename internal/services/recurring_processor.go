package services

import (
	"context"
	"fmt"
	"strings"

	"mmms/internal/core"
	"mmms/internal/log"
)

// RecurringTagPrefix marks transactions generated from a recurring template.
// The full tag is the prefix followed by the template id.
const RecurringTagPrefix = "recurring:"

// RecurringTag returns the tag carried by instances of templateID.
func RecurringTag(templateID string) string { return RecurringTagPrefix + templateID }

// RecurringProcessor materialises the occurrences of recurring transactions.
type RecurringProcessor struct {
	transactions *TransactionService
	logger       *log.Logger
}

// NewRecurringProcessor creates a processor over the workspace transactions.
func NewRecurringProcessor(w *Workspace) *RecurringProcessor {
	return &RecurringProcessor{
		transactions: w.Transactions,
		logger:       w.deps.Logger.WithComponent(log.ComponentRecurring),
	}
}

// ProcessDue creates every missed occurrence up to today for each template
// and returns how many transactions were created. A failing template is
// logged and skipped.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, today core.Date) (int, error) {
	if p.transactions == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}
	all, err := p.transactions.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}

	// Latest generated day per template.
	last := make(map[string]core.Date)
	var templates []core.Transaction
	for _, tx := range all {
		if id := templateOf(tx); id != "" {
			if d, ok := last[id]; !ok || tx.Date.After(d) {
				last[id] = tx.Date
			}
			continue
		}
		if tx.Recurring != nil {
			templates = append(templates, tx)
		}
	}

	p.logger.InfoContext(ctx, "Processing recurring transactions",
		log.FieldCount, len(templates),
		"processing_date", today.String())

	created := 0
	for _, tpl := range templates {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		since := tpl.Date
		if d, ok := last[tpl.ID]; ok && d.After(since) {
			since = d
		}
		due, err := DueOccurrences(*tpl.Recurring, tpl.Date, since, today)
		if err != nil {
			p.logger.ErrorContext(ctx, "Invalid recurring template", log.FieldEntityID, tpl.ID, log.FieldError, err)
			continue
		}
		for _, day := range due {
			_, err := p.transactions.Create(ctx, TransactionInput{
				Date:        day,
				Description: tpl.Description,
				Amount:      tpl.Amount,
				CategoryID:  tpl.Category.ID,
				Type:        tpl.Type,
				Tags:        append(withoutRecurringTags(tpl.Tags), RecurringTag(tpl.ID)),
			})
			if err != nil {
				p.logger.ErrorContext(ctx, "Failed to create recurring occurrence",
					log.FieldEntityID, tpl.ID, "date", day.String(), log.FieldError, err)
				break
			}
			created++
		}
		if len(due) > 0 {
			p.logger.InfoContext(ctx, "Recurring occurrences created",
				log.FieldEntityID, tpl.ID,
				log.FieldCount, len(due),
				"frequency", string(tpl.Recurring.Frequency))
		}
	}

	p.logger.InfoContext(ctx, "Recurring processing complete",
		"created", created,
		"templates", len(templates))
	return created, nil
}

func templateOf(tx core.Transaction) string {
	for _, tag := range tx.Tags {
		if strings.HasPrefix(tag, RecurringTagPrefix) {
			return strings.TrimPrefix(tag, RecurringTagPrefix)
		}
	}
	return ""
}

func withoutRecurringTags(tags []string) []string {
	out := make([]string, 0, len(tags)+1)
	for _, t := range tags {
		if !strings.HasPrefix(t, RecurringTagPrefix) {
			out = append(out, t)
		}
	}
	return out
}
