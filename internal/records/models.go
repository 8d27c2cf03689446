package records

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection is the name of the inventory collection.
const Collection = "inventory"

// Item is one document in the inventory collection.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	ImageURL string          `json:"imageURL"`
	// ImageKey is the asset key ImageURL resolves to, empty without a photo.
	ImageKey  string    `json:"imageKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields holds the writable document fields used by Create and Put.
type Fields struct {
	Name     string
	Price    decimal.Decimal
	Quantity int64
	ImageURL string
	ImageKey string
}

// Fields returns the writable portion of the item.
func (i Item) Fields() Fields {
	return Fields{
		Name:     i.Name,
		Price:    i.Price,
		Quantity: i.Quantity,
		ImageURL: i.ImageURL,
		ImageKey: i.ImageKey,
	}
}
