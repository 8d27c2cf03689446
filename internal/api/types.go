package api

import (
	"time"

	"pantry/internal/pantry"
	"pantry/internal/recipe"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Item is the transport form of an inventory entry.
type Item struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Quantity  int64  `json:"quantity"`
	ImageURL  string `json:"imageURL"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Cleanup reports the photo removal performed by an edit or delete.
type Cleanup struct {
	Key       string `json:"key,omitempty"`
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// MutationResponse is returned by edit and delete.
type MutationResponse struct {
	Item    Item    `json:"item"`
	Cleanup Cleanup `json:"cleanup"`
}

// InventoryResponse lists inventory items.
type InventoryResponse struct {
	Items []Item `json:"items"`
}

// StreamMessage is one WebSocket frame on the inventory stream.
type StreamMessage struct {
	Type  string `json:"type"`
	Items []Item `json:"items"`
}

// RecipeResponse carries a generated recipe. Text is the rendered form.
type RecipeResponse struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
	Text  string   `json:"text"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// FromItem converts a manager item into its transport form.
func FromItem(item pantry.Item) Item {
	return Item{
		ID:        item.ID,
		Name:      item.Name,
		Price:     item.Price.String(),
		Quantity:  item.Quantity,
		ImageURL:  item.ImageURL,
		CreatedAt: formatTime(item.CreatedAt),
		UpdatedAt: formatTime(item.UpdatedAt),
	}
}

// FromItems converts a snapshot, never returning nil.
func FromItems(items []pantry.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

// FromOutcome converts a manager outcome.
func FromOutcome(outcome pantry.Outcome) MutationResponse {
	cleanup := Cleanup{
		Key:       outcome.Cleanup.Key,
		Attempted: outcome.Cleanup.Attempted,
		Succeeded: outcome.Cleanup.Succeeded,
	}
	if outcome.Cleanup.Err != nil {
		cleanup.Error = outcome.Cleanup.Err.Error()
	}
	return MutationResponse{Item: FromItem(outcome.Item), Cleanup: cleanup}
}

// FromRecipe converts a parsed recipe.
func FromRecipe(result recipe.Result) RecipeResponse {
	steps := result.Steps
	if steps == nil {
		steps = []string{}
	}
	return RecipeResponse{Title: result.Title, Steps: steps, Text: result.String()}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
