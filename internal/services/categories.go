package services

import (
	"context"
	"strings"

	"mmms/internal/core"
	"mmms/internal/log"
	"mmms/internal/sheets"
)

// CategoryRegistry merges the built-in categories with the user's custom ones.
type CategoryRegistry struct {
	*base
}

// CategoryInput carries the fields of a new custom category.
type CategoryInput struct {
	Name        string
	Icon        string
	Color       string
	BudgetLimit *core.Money
}

// CategoryUpdate lists the fields to change; nil fields are kept.
type CategoryUpdate struct {
	Name             *string
	Icon             *string
	Color            *string
	BudgetLimit      *core.Money
	ClearBudgetLimit bool
}

const (
	defaultCategoryIcon  = "🏷️"
	defaultCategoryColor = "#747D8C"
)

func (r *CategoryRegistry) cacheKey() string { return r.owner + "|categories" }

func (r *CategoryRegistry) invalidate() { r.deps.CategoryCache.Delete(r.cacheKey()) }

// custom returns the user's custom categories in row order.
func (r *CategoryRegistry) custom(ctx context.Context) ([]core.Category, error) {
	if cached, ok := r.deps.CategoryCache.Get(r.cacheKey()); ok {
		return cached, nil
	}
	_, cats, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.deps.CategoryCache.Set(r.cacheKey(), cats)
	return cats, nil
}

// load reads the categories container. rows[i] holds cats' row index.
func (r *CategoryRegistry) load(ctx context.Context) ([]int, []core.Category, error) {
	rows, err := r.gw.List(ctx, sheets.KindCategories)
	if err != nil {
		return nil, nil, err
	}
	var (
		index []int
		cats  []core.Category
	)
	for i, row := range rows {
		c, err := sheets.ParseCategory(row)
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable category row", "row", i, log.FieldError, err)
			continue
		}
		index = append(index, i)
		cats = append(cats, c)
	}
	return index, cats, nil
}

// ListAll returns the built-in categories followed by the custom ones in
// creation order.
func (r *CategoryRegistry) ListAll(ctx context.Context) ([]core.Category, error) {
	custom, err := r.custom(ctx)
	if err != nil {
		return nil, err
	}
	return append(core.BuiltinCategories(), custom...), nil
}

// GetByID resolves id, falling back to the Other category. It never fails:
// a storage failure is logged and answered with the fallback.
func (r *CategoryRegistry) GetByID(ctx context.Context, id string) core.Category {
	if c, ok := core.BuiltinCategory(id); ok {
		return c
	}
	custom, err := r.custom(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Custom categories unavailable, using fallback",
			log.FieldCategory, id, log.FieldError, err)
		return core.OtherCategory()
	}
	return core.ResolveCategory(id, custom)
}

// Lookup resolves id strictly.
func (r *CategoryRegistry) Lookup(ctx context.Context, id string) (core.Category, error) {
	if c, ok := core.BuiltinCategory(id); ok {
		return c, nil
	}
	custom, err := r.custom(ctx)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range custom {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, &core.NotFoundError{Kind: "category", ID: id}
}

// Resolver loads the custom categories once and returns a lookup over them
// for decoding many rows.
func (r *CategoryRegistry) Resolver(ctx context.Context) sheets.CategoryResolver {
	custom, err := r.custom(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "Custom categories unavailable, unknown ids resolve to other", log.FieldError, err)
	}
	return func(id string) core.Category { return core.ResolveCategory(id, custom) }
}

// Create stores a new custom category.
func (r *CategoryRegistry) Create(ctx context.Context, in CategoryInput) (core.Category, error) {
	c := core.Category{
		ID:          newID(strings.TrimSuffix(core.CustomCategoryPrefix, "_")),
		Name:        strings.TrimSpace(in.Name),
		Icon:        in.Icon,
		Color:       in.Color,
		BudgetLimit: in.BudgetLimit,
		IsCustom:    true,
		CreatedDate: r.today(),
	}
	if c.Icon == "" {
		c.Icon = defaultCategoryIcon
	}
	if c.Color == "" {
		c.Color = defaultCategoryColor
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := r.gw.Append(ctx, sheets.KindCategories, sheets.CategoryRow(c)); err != nil {
		return core.Category{}, err
	}
	r.invalidate()
	r.logger.InfoContext(ctx, "Category created", log.FieldUser, r.owner, log.FieldEntityID, c.ID, "name", c.Name)
	return c, nil
}

// Update changes a custom category. Built-in categories cannot be changed.
func (r *CategoryRegistry) Update(ctx context.Context, id string, upd CategoryUpdate) (core.Category, error) {
	if core.IsBuiltinCategory(id) {
		return core.Category{}, &core.ProtectedCategoryError{ID: id}
	}
	rowIndex, c, err := r.find(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	if upd.Name != nil {
		c.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Icon != nil {
		c.Icon = *upd.Icon
	}
	if upd.Color != nil {
		c.Color = *upd.Color
	}
	if upd.ClearBudgetLimit {
		c.BudgetLimit = nil
	} else if upd.BudgetLimit != nil {
		c.BudgetLimit = upd.BudgetLimit
	}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	row := sheets.CategoryRow(c)
	err = r.gw.UpdateCell(ctx, sheets.KindCategories, rowIndex, sheets.ColCategoryName, row[sheets.ColCategoryName-1:]...)
	r.invalidate()
	if err != nil {
		return core.Category{}, notFound(err, "category", id)
	}
	return c, nil
}

// Delete removes a custom category. Transactions that used it resolve to
// Other from then on.
func (r *CategoryRegistry) Delete(ctx context.Context, id string) error {
	if core.IsBuiltinCategory(id) {
		return &core.ProtectedCategoryError{ID: id}
	}
	rowIndex, _, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	err = r.gw.DeleteRow(ctx, sheets.KindCategories, rowIndex)
	r.invalidate()
	if err != nil {
		return notFound(err, "category", id)
	}
	r.logger.InfoContext(ctx, "Category deleted", log.FieldUser, r.owner, log.FieldEntityID, id)
	return nil
}

// find reads the container directly: row indexes must not come from cache.
func (r *CategoryRegistry) find(ctx context.Context, id string) (int, core.Category, error) {
	index, cats, err := r.load(ctx)
	if err != nil {
		return 0, core.Category{}, err
	}
	for i, c := range cats {
		if c.ID == id {
			return index[i], c, nil
		}
	}
	return 0, core.Category{}, &core.NotFoundError{Kind: "category", ID: id}
}
