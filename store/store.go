package store

import (
	"context"

	"github.com/amasijo/bakery_backend/utils"
)

// Store is the persistence port for the ledger engine. Each collection key is
// an independent unit of read/write: the backend offers no transaction across
// keys, so callers must read everything they need, compute the full result in
// memory, and only then issue writes.
type Store interface {
	// Load returns the raw JSON payload for a collection key. A key that was
	// never written returns (nil, nil).
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the whole payload for a collection key.
	Save(ctx context.Context, key string, value []byte) error
}

// Collection gives typed whole-collection access over a Store.
type Collection[T any] struct {
	Key   string
	Store Store
}

func NewCollection[T any](s Store, key string) Collection[T] {
	return Collection[T]{Key: key, Store: s}
}

func (c Collection[T]) LoadAll(ctx context.Context) ([]T, error) {
	raw, err := c.Store.Load(ctx, c.Key)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := utils.UnmarshalFromJSON(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c Collection[T]) SaveAll(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := utils.MarshalToJSON(items)
	if err != nil {
		return err
	}
	return c.Store.Save(ctx, c.Key, raw)
}
