package pantry

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"pantry/internal/records"
	"pantry/internal/services"
)

// Item is an inventory entry as seen by callers of the manager.
type Item = records.Item

// Draft is the raw user input for an add or edit. Price and Quantity are kept
// as text so an empty field can be told apart from zero.
type Draft struct {
	Name     string
	Price    string
	Quantity string
	ImageURL string
}

// Outcome reports what a mutation did. Skipped is set when a required field
// was empty and nothing was written.
type Outcome struct {
	Skipped bool    `json:"skipped"`
	Item    Item    `json:"item"`
	Cleanup Cleanup `json:"cleanup"`
}

// Cleanup describes the best-effort removal of a previously stored photo.
// Attempted is false when there was nothing to remove or another item still
// references the key.
type Cleanup struct {
	Key       string `json:"key,omitempty"`
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Err       error  `json:"-"`
}

// validDraft is a Draft with parsed fields.
type validDraft struct {
	name     string
	price    decimal.Decimal
	quantity int64
	imageURL string
}

// parseDraft returns ok=false when a required field is blank. Malformed
// numbers are validation errors.
func parseDraft(op string, d Draft) (validDraft, bool, error) {
	name := NormalizeName(d.Name)
	priceRaw := strings.TrimSpace(d.Price)
	quantityRaw := strings.TrimSpace(d.Quantity)
	if name == "" || priceRaw == "" || quantityRaw == "" {
		return validDraft{}, false, nil
	}

	price, err := decimal.NewFromString(priceRaw)
	if err != nil {
		return validDraft{}, false, services.Wrap(services.ErrValidation, "pantry", op, "price "+strconv.Quote(priceRaw)+" is not a number", err)
	}
	quantity, err := strconv.ParseInt(quantityRaw, 10, 64)
	if err != nil {
		return validDraft{}, false, services.Wrap(services.ErrValidation, "pantry", op, "quantity "+strconv.Quote(quantityRaw)+" is not an integer", err)
	}
	return validDraft{
		name:     name,
		price:    price,
		quantity: quantity,
		imageURL: strings.TrimSpace(d.ImageURL),
	}, true, nil
}

// NormalizeName trims surrounding whitespace and composes the name to NFC so
// visually identical names map to the same photo key.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// Filter returns the items whose name contains query, ignoring case. An empty
// query returns items unchanged.
func Filter(items []Item, query string) []Item {
	query = strings.TrimSpace(query)
	if query == "" {
		return items
	}
	fold := cases.Fold()
	needle := fold.String(NormalizeName(query))
	matched := make([]Item, 0, len(items))
	for _, item := range items {
		if strings.Contains(fold.String(item.Name), needle) {
			matched = append(matched, item)
		}
	}
	return matched
}

// Names lists item names in snapshot order.
func Names(items []Item) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}
