// Package services holds the application use cases. A Workspace binds them to
// one user's gateway for the duration of a request or a worker run.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mmms/internal/cache"
	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/notify"
	"mmms/internal/sheets"
)

// CategoryCacheTTL bounds how long a user's custom categories are reused.
const CategoryCacheTTL = 5 * time.Minute

// Deps are the process-wide collaborators shared by every workspace.
type Deps struct {
	Converter     core.Converter
	Clock         func() time.Time
	Notifier      notify.Notifier
	CategoryCache *cache.LRUCache[[]core.Category]
	Logger        *log.Logger
	// DefaultChatID receives budget alerts for users without their own chat.
	DefaultChatID string
}

// NewCategoryCache sizes the shared custom category cache.
func NewCategoryCache(maxUsers int) *cache.LRUCache[[]core.Category] {
	return cache.NewLRUCache[[]core.Category](maxUsers, CategoryCacheTTL)
}

// WithDefaults fills unset dependencies. Long-lived callers apply it once so
// every workspace shares the same cache and notifier.
func (d Deps) WithDefaults() Deps {
	if !d.Converter.Rate.IsPositive() {
		d.Converter = core.DefaultConverter
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Logger == nil {
		d.Logger = log.New(log.DefaultConfig())
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Logger)
	}
	if d.CategoryCache == nil {
		d.CategoryCache = NewCategoryCache(256)
	}
	return d
}

// Workspace groups the services of one user.
type Workspace struct {
	User          core.User
	Categories    *CategoryRegistry
	Transactions  *TransactionService
	BudgetGoals   *BudgetGoalService
	SavingsGoals  *SavingsGoalService
	BudgetEntries *BudgetEntryService

	deps Deps
}

// NewWorkspace wires the services of user over gw.
func NewWorkspace(user core.User, gw sheets.Gateway, deps Deps) *Workspace {
	deps = deps.WithDefaults()
	base := &base{
		gw:     gw,
		owner:  user.Email,
		deps:   deps,
		logger: deps.Logger,
	}

	w := &Workspace{User: user, deps: deps}
	w.Categories = &CategoryRegistry{base: base.component(log.ComponentCategories)}
	w.BudgetGoals = &BudgetGoalService{base: base.component(log.ComponentBudget), categories: w.Categories}
	w.Transactions = &TransactionService{base: base.component(log.ComponentTransactions), categories: w.Categories, budgets: w.BudgetGoals}
	w.BudgetGoals.transactions = w.Transactions
	w.SavingsGoals = &SavingsGoalService{base: base.component(log.ComponentSavings)}
	w.BudgetEntries = &BudgetEntryService{base: base.component(log.ComponentBudget)}
	return w
}

// Converter returns the shared currency converter.
func (w *Workspace) Converter() core.Converter { return w.deps.Converter }

// Today returns the current calendar day.
func (w *Workspace) Today() core.Date { return core.DateOf(w.deps.Clock()) }

// Provision creates every container of the user concurrently. Failures are
// collected so one slow or failing spreadsheet does not hide the others.
func (w *Workspace) Provision(ctx context.Context) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(3)
	for _, kind := range sheets.Kinds() {
		g.Go(func() error {
			if _, err := w.Categories.gw.EnsureContainer(ctx, kind); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// base carries what every service of a workspace needs.
type base struct {
	gw     sheets.Gateway
	owner  string
	deps   Deps
	logger *log.Logger
}

func (b *base) component(name string) *base {
	c := *b
	c.logger = b.logger.WithComponent(name)
	return &c
}

func (b *base) today() core.Date { return core.DateOf(b.deps.Clock()) }

func (b *base) conv() core.Converter { return b.deps.Converter }

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// notFound maps an out-of-range row to NotFoundError.
func notFound(err error, kind, id string) error {
	if errors.Is(err, sheets.ErrRowOutOfRange) {
		return &core.NotFoundError{Kind: kind, ID: id}
	}
	return err
}
