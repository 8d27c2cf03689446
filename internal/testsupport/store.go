package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pantry/internal/config"
	"pantry/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...records.Option) *records.Store {
	t.Helper()

	store, err := records.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem creates an inventory document for tests using the provided store.
func NewItem(t testing.TB, store *records.Store, name, price string, quantity int64) *records.Item {
	t.Helper()

	item, err := store.Create(context.Background(), records.Fields{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return item
}

// NextSnapshot waits for the next snapshot on sub or fails the test.
func NextSnapshot(t testing.TB, sub *records.Subscription) []records.Item {
	t.Helper()

	select {
	case snapshot, ok := <-sub.Snapshots():
		if !ok {
			t.Fatal("subscription closed before snapshot arrived")
		}
		return snapshot
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return nil
}
