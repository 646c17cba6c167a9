package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Freshness describes how soon a pantry item should be used
type Freshness string

const (
	FreshnessFresh        Freshness = "fresh"
	FreshnessGood         Freshness = "good"
	FreshnessNeedsUseSoon Freshness = "needs_use_soon"
	FreshnessExpired      Freshness = "expired"
)

// Valid reports whether f is one of the known freshness values
func (f Freshness) Valid() bool {
	switch f {
	case FreshnessFresh, FreshnessGood, FreshnessNeedsUseSoon, FreshnessExpired:
		return true
	}
	return false
}

// Priority ranks grocery items
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// FlexString accepts both JSON strings and numbers. The AI backend is not
// consistent about quoting values like servings or quantities.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = FlexString(str)
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*s = FlexString(strconv.FormatFloat(num, 'f', -1, 64))
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = FlexString(strconv.FormatBool(b))
		return nil
	}

	return fmt.Errorf("invalid value %s", string(data))
}

func (s FlexString) String() string {
	return string(s)
}

// PantryItem is an ingredient the user has on hand
type PantryItem struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Quantity   string    `json:"quantity"`
	Category   string    `json:"category"`
	Freshness  Freshness `json:"freshness"`
	DetectedAt string    `json:"detected_at"`
}

// Key returns the deduplication key for the item
func (p PantryItem) Key() string {
	return NormalizeName(p.Name)
}

// GroceryItem is a line on the shopping list
type GroceryItem struct {
	Item      string   `json:"item"`
	Category  string   `json:"category"`
	NeededFor string   `json:"needed_for"`
	Priority  Priority `json:"priority"`
	Checked   bool     `json:"checked"`
}

// RecipeIngredient is one ingredient line of a recipe
type RecipeIngredient struct {
	Name      string     `json:"name"`
	Amount    FlexString `json:"amount"`
	Available bool       `json:"available"`
}

// Recipe is a recipe suggested by the assistant
type Recipe struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	CookingTime       FlexString         `json:"cooking_time"`
	Difficulty        string             `json:"difficulty"`
	Servings          FlexString         `json:"servings"`
	IngredientsNeeded []RecipeIngredient `json:"ingredients_needed"`
	Instructions      []string           `json:"instructions"`
	Tips              string             `json:"tips"`
}

// Key returns the deduplication key for the recipe
func (r Recipe) Key() string {
	return NormalizeName(r.Name)
}

// DetectedIngredient is an ingredient as extracted by the assistant, before
// defaults are applied
type DetectedIngredient struct {
	Name      string     `json:"name"`
	Quantity  FlexString `json:"quantity"`
	Category  string     `json:"category"`
	Freshness Freshness  `json:"freshness"`
}

// StructuredData is the payload of a structured assistant reply. A nil slice
// means the field was absent.
type StructuredData struct {
	Ingredients []DetectedIngredient `json:"ingredients"`
	Recipes     []Recipe             `json:"recipes"`
	GroceryList []GroceryItem        `json:"grocery_list"`
}

// Empty reports whether no collection is present
func (d *StructuredData) Empty() bool {
	return d == nil || (d.Ingredients == nil && d.Recipes == nil && d.GroceryList == nil)
}

// Snapshot is the full state of the three collections
type Snapshot struct {
	Pantry  []PantryItem  `json:"pantry"`
	Grocery []GroceryItem `json:"grocery"`
	Recipes []Recipe      `json:"recipes"`
}

// NormalizeName lower-cases a name for identity comparison
func NormalizeName(name string) string {
	return strings.ToLower(name)
}
