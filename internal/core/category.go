package core

import "strings"

// CustomCategoryPrefix marks user-created category ids.
const CustomCategoryPrefix = "custom_"

// OtherCategoryID is the fallback for unknown category ids.
const OtherCategoryID = "other"

// Category classifies transactions and budget goals.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	BudgetLimit *Money `json:"budgetLimit,omitempty"`
	IsCustom    bool   `json:"isCustom"`
	CreatedDate Date   `json:"createdDate"`
}

var builtinCategories = []Category{
	{ID: "food", Name: "Food & Dining", Icon: "🍽️", Color: "#FF6B6B"},
	{ID: "transport", Name: "Transportation", Icon: "🚗", Color: "#4ECDC4"},
	{ID: "entertainment", Name: "Entertainment", Icon: "🎬", Color: "#45B7D1"},
	{ID: "shopping", Name: "Shopping", Icon: "🛍️", Color: "#96CEB4"},
	{ID: "bills", Name: "Bills & Utilities", Icon: "📋", Color: "#FECA57"},
	{ID: "healthcare", Name: "Healthcare", Icon: "⚕️", Color: "#FF9FF3"},
	{ID: "education", Name: "Education", Icon: "📚", Color: "#54A0FF"},
	{ID: "travel", Name: "Travel", Icon: "✈️", Color: "#5F27CD"},
	{ID: "income", Name: "Income", Icon: "💰", Color: "#00D2D3"},
	{ID: OtherCategoryID, Name: "Other", Icon: "📦", Color: "#747D8C"},
}

// BuiltinCategories returns a copy of the built-in categories in display order.
func BuiltinCategories() []Category {
	out := make([]Category, len(builtinCategories))
	copy(out, builtinCategories)
	return out
}

// IsBuiltinCategory reports whether id names a built-in category.
func IsBuiltinCategory(id string) bool {
	_, ok := BuiltinCategory(id)
	return ok
}

// BuiltinCategory looks up a built-in category by id.
func BuiltinCategory(id string) (Category, bool) {
	for _, c := range builtinCategories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// OtherCategory is the fallback category.
func OtherCategory() Category {
	c, _ := BuiltinCategory(OtherCategoryID)
	return c
}

// IsCustomCategoryID reports whether id carries the custom prefix.
func IsCustomCategoryID(id string) bool {
	return strings.HasPrefix(id, CustomCategoryPrefix)
}

// ResolveCategory finds id among the built-ins and custom, falling back to Other.
func ResolveCategory(id string, custom []Category) Category {
	if c, ok := BuiltinCategory(id); ok {
		return c
	}
	for _, c := range custom {
		if c.ID == id {
			return c
		}
	}
	return OtherCategory()
}

// Validate checks the user-editable fields.
func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return Invalid("name", "is required")
	}
	if len(c.Name) > 60 {
		return Invalid("name", "must be at most 60 characters")
	}
	if c.BudgetLimit != nil {
		if err := c.BudgetLimit.Validate(); err != nil {
			return err
		}
		if c.BudgetLimit.Amount.IsNegative() {
			return Invalid("budgetLimit", "must not be negative")
		}
	}
	return nil
}
