package service

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pageza/chopchop/backend/internal/models"
)

// Tab is the view the user is looking at
type Tab string

const (
	TabChat    Tab = "chat"
	TabPantry  Tab = "pantry"
	TabGrocery Tab = "grocery"
	TabRecipes Tab = "recipes"
)

// Valid reports whether t is a known tab
func (t Tab) Valid() bool {
	switch t {
	case TabChat, TabPantry, TabGrocery, TabRecipes:
		return true
	}
	return false
}

// Defaults applied to detected ingredients and manual additions
const (
	DefaultQuantity         = "Unknown quantity"
	DefaultPantryCategory   = "other"
	DefaultFreshness        = models.FreshnessGood
	DefaultManualFreshness  = models.FreshnessFresh
	DefaultGroceryCategory  = "general"
	DefaultGroceryNeededFor = "Manual addition"
	DefaultGroceryPriority  = models.PriorityMedium
)

// MergeResult summarizes what a structured reply changed
type MergeResult struct {
	GroceryReplaced bool `json:"grocery_replaced"`
	GroceryCount    int  `json:"grocery_count"`
	RecipesAdded    int  `json:"recipes_added"`
	PantryAdded     int  `json:"pantry_added"`
	SwitchedTab     bool `json:"switched_tab"`
}

// Changed reports whether any collection was touched
func (r MergeResult) Changed() bool {
	return r.GroceryReplaced || r.RecipesAdded > 0 || r.PantryAdded > 0
}

// PantryItemPatch holds the fields of a pantry edit; nil fields are left alone
type PantryItemPatch struct {
	Name      *string           `json:"name"`
	Quantity  *string           `json:"quantity"`
	Category  *string           `json:"category"`
	Freshness *models.Freshness `json:"freshness"`
}

// GroceryItemPatch holds the fields of a grocery edit; nil fields are left alone
type GroceryItemPatch struct {
	Item      *string          `json:"item"`
	Category  *string          `json:"category"`
	NeededFor *string          `json:"needed_for"`
	Priority  *models.Priority `json:"priority"`
	Checked   *bool            `json:"checked"`
}

// Kitchen holds the pantry, grocery list and recipes of one user and merges
// assistant output into them. Every mutation calls the change hook, outside
// the lock.
type Kitchen struct {
	mu       sync.RWMutex
	pantry   []models.PantryItem
	grocery  []models.GroceryItem
	recipes  []models.Recipe
	tab      Tab
	onChange func()

	now   func() time.Time
	newID func() string
}

// NewKitchen creates an empty kitchen showing the chat tab
func NewKitchen() *Kitchen {
	return &Kitchen{
		tab:   TabChat,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// OnChange registers the hook called after each mutation
func (k *Kitchen) OnChange(fn func()) {
	k.mu.Lock()
	k.onChange = fn
	k.mu.Unlock()
}

func (k *Kitchen) notify() {
	k.mu.RLock()
	fn := k.onChange
	k.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// ApplyStructured merges a structured reply. A grocery list replaces the
// current one; recipes and ingredients are appended when their lower-cased
// name is new. Ingredients switch the active tab to the pantry.
func (k *Kitchen) ApplyStructured(data *models.StructuredData) MergeResult {
	var res MergeResult
	if data.Empty() {
		return res
	}

	k.mu.Lock()
	if data.GroceryList != nil {
		k.grocery = append([]models.GroceryItem{}, data.GroceryList...)
		res.GroceryReplaced = true
		res.GroceryCount = len(k.grocery)
	}
	if data.Recipes != nil {
		res.RecipesAdded = k.mergeRecipesLocked(data.Recipes)
	}
	if data.Ingredients != nil {
		res.PantryAdded = k.mergeIngredientsLocked(data.Ingredients)
		if len(data.Ingredients) > 0 {
			res.SwitchedTab = k.tab != TabPantry
			k.tab = TabPantry
		}
	}
	k.mu.Unlock()

	if res.Changed() {
		k.notify()
	}
	return res
}

// AddRecipes appends recipes whose name is not already present and returns
// how many were added.
func (k *Kitchen) AddRecipes(recipes []models.Recipe) int {
	k.mu.Lock()
	added := k.mergeRecipesLocked(recipes)
	k.mu.Unlock()

	if added > 0 {
		k.notify()
	}
	return added
}

func (k *Kitchen) mergeRecipesLocked(incoming []models.Recipe) int {
	seen := make(map[string]struct{}, len(k.recipes)+len(incoming))
	for _, r := range k.recipes {
		seen[r.Key()] = struct{}{}
	}

	added := 0
	for _, r := range incoming {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		key := r.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		k.recipes = append(k.recipes, r)
		added++
	}
	return added
}

func (k *Kitchen) mergeIngredientsLocked(incoming []models.DetectedIngredient) int {
	seen := make(map[string]struct{}, len(k.pantry)+len(incoming))
	for _, p := range k.pantry {
		seen[p.Key()] = struct{}{}
	}

	detectedAt := k.now().UTC().Format(time.RFC3339)
	added := 0
	for _, ing := range incoming {
		if strings.TrimSpace(ing.Name) == "" {
			continue
		}
		item := k.pantryItemFrom(ing, detectedAt)
		key := item.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		k.pantry = append(k.pantry, item)
		added++
	}
	return added
}

func (k *Kitchen) pantryItemFrom(ing models.DetectedIngredient, detectedAt string) models.PantryItem {
	item := models.PantryItem{
		ID:         k.newID(),
		Name:       ing.Name,
		Quantity:   ing.Quantity.String(),
		Category:   ing.Category,
		Freshness:  ing.Freshness,
		DetectedAt: detectedAt,
	}
	if item.Quantity == "" {
		item.Quantity = DefaultQuantity
	}
	if item.Category == "" {
		item.Category = DefaultPantryCategory
	}
	if !item.Freshness.Valid() {
		item.Freshness = DefaultFreshness
	}
	return item
}

// AddPantryItem appends a manual entry without deduplication
func (k *Kitchen) AddPantryItem(item models.PantryItem) (models.PantryItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" {
		return models.PantryItem{}, &ValidationError{Field: "name", Message: "Item name is required"}
	}
	if item.Freshness == "" {
		item.Freshness = DefaultManualFreshness
	}
	if !item.Freshness.Valid() {
		return models.PantryItem{}, &ValidationError{Field: "freshness", Message: "Unknown freshness value"}
	}

	k.mu.Lock()
	if item.ID == "" {
		item.ID = k.newID()
	}
	if item.DetectedAt == "" {
		item.DetectedAt = k.now().UTC().Format(time.RFC3339)
	}
	k.pantry = append(k.pantry, item)
	k.mu.Unlock()

	k.notify()
	return item, nil
}

// UpdatePantryItem edits the item at index
func (k *Kitchen) UpdatePantryItem(index int, patch PantryItemPatch) (models.PantryItem, error) {
	if patch.Freshness != nil && !patch.Freshness.Valid() {
		return models.PantryItem{}, &ValidationError{Field: "freshness", Message: "Unknown freshness value"}
	}

	k.mu.Lock()
	if index < 0 || index >= len(k.pantry) {
		k.mu.Unlock()
		return models.PantryItem{}, ErrItemNotFound
	}
	item := &k.pantry[index]
	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.Freshness != nil {
		item.Freshness = *patch.Freshness
	}
	updated := *item
	k.mu.Unlock()

	k.notify()
	return updated, nil
}

// RemovePantryItem deletes the item at index
func (k *Kitchen) RemovePantryItem(index int) error {
	k.mu.Lock()
	if index < 0 || index >= len(k.pantry) {
		k.mu.Unlock()
		return ErrItemNotFound
	}
	k.pantry = append(k.pantry[:index:index], k.pantry[index+1:]...)
	k.mu.Unlock()

	k.notify()
	return nil
}

// AddGroceryItem appends a manual grocery entry
func (k *Kitchen) AddGroceryItem(name, category string) (models.GroceryItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.GroceryItem{}, &ValidationError{Field: "item", Message: "Item name is required"}
	}
	if category == "" {
		category = DefaultGroceryCategory
	}
	item := models.GroceryItem{
		Item:      name,
		Category:  category,
		NeededFor: DefaultGroceryNeededFor,
		Priority:  DefaultGroceryPriority,
	}

	k.mu.Lock()
	k.grocery = append(k.grocery, item)
	k.mu.Unlock()

	k.notify()
	return item, nil
}

// ToggleGroceryItem flips the checked flag of the item at index
func (k *Kitchen) ToggleGroceryItem(index int) (models.GroceryItem, error) {
	k.mu.Lock()
	if index < 0 || index >= len(k.grocery) {
		k.mu.Unlock()
		return models.GroceryItem{}, ErrItemNotFound
	}
	k.grocery[index].Checked = !k.grocery[index].Checked
	item := k.grocery[index]
	k.mu.Unlock()

	k.notify()
	return item, nil
}

// UpdateGroceryItem edits the item at index
func (k *Kitchen) UpdateGroceryItem(index int, patch GroceryItemPatch) (models.GroceryItem, error) {
	if patch.Priority != nil && !patch.Priority.Valid() {
		return models.GroceryItem{}, &ValidationError{Field: "priority", Message: "Unknown priority value"}
	}

	k.mu.Lock()
	if index < 0 || index >= len(k.grocery) {
		k.mu.Unlock()
		return models.GroceryItem{}, ErrItemNotFound
	}
	item := &k.grocery[index]
	if patch.Item != nil {
		item.Item = *patch.Item
	}
	if patch.Category != nil {
		item.Category = *patch.Category
	}
	if patch.NeededFor != nil {
		item.NeededFor = *patch.NeededFor
	}
	if patch.Priority != nil {
		item.Priority = *patch.Priority
	}
	if patch.Checked != nil {
		item.Checked = *patch.Checked
	}
	updated := *item
	k.mu.Unlock()

	k.notify()
	return updated, nil
}

// RemoveGroceryItem deletes the item at index
func (k *Kitchen) RemoveGroceryItem(index int) error {
	k.mu.Lock()
	if index < 0 || index >= len(k.grocery) {
		k.mu.Unlock()
		return ErrItemNotFound
	}
	k.grocery = append(k.grocery[:index:index], k.grocery[index+1:]...)
	k.mu.Unlock()

	k.notify()
	return nil
}

// Snapshot returns a copy of all three collections
func (k *Kitchen) Snapshot() models.Snapshot {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return models.Snapshot{
		Pantry:  append([]models.PantryItem{}, k.pantry...),
		Grocery: append([]models.GroceryItem{}, k.grocery...),
		Recipes: append([]models.Recipe{}, k.recipes...),
	}
}

// PantryNames returns the names of all pantry items
func (k *Kitchen) PantryNames() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	names := make([]string, 0, len(k.pantry))
	for _, p := range k.pantry {
		names = append(names, p.Name)
	}
	return names
}

// Tab returns the active view
func (k *Kitchen) Tab() Tab {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.tab
}

// SetTab changes the active view
func (k *Kitchen) SetTab(t Tab) error {
	if !t.Valid() {
		return &ValidationError{Field: "tab", Message: "Unknown tab"}
	}
	k.mu.Lock()
	k.tab = t
	k.mu.Unlock()
	return nil
}

// Hydrate replaces the collections with stored state. It does not call the
// change hook.
func (k *Kitchen) Hydrate(snap models.Snapshot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pantry = append([]models.PantryItem{}, snap.Pantry...)
	k.grocery = append([]models.GroceryItem{}, snap.Grocery...)
	k.recipes = append([]models.Recipe{}, snap.Recipes...)
}

// Reset clears all collections and returns to the chat tab
func (k *Kitchen) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pantry = nil
	k.grocery = nil
	k.recipes = nil
	k.tab = TabChat
}
