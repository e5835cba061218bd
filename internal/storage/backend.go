package storage

import (
	"context"

	"github.com/canvaslab/mention-core/pkg/canvas"
)

// EntityStore provides access to canvas items. Lookups that find nothing
// return (nil, nil) so callers can treat absence as policy, not failure.
type EntityStore interface {
	// GetItem retrieves an item by ID within a scope. Returns (nil, nil)
	// when the item does not exist or belongs to a different scope.
	GetItem(ctx context.Context, scopeID, id string) (*canvas.Item, error)

	// FindItemByTitle retrieves an item by case-insensitive title match
	// within a scope. Returns (nil, nil) when no item matches.
	FindItemByTitle(ctx context.Context, scopeID, title string) (*canvas.Item, error)

	// CreateItem inserts a new item. When another item with the same
	// folded title already exists in the scope, the existing item is
	// returned instead of a duplicate being created.
	CreateItem(ctx context.Context, item canvas.Item) (*canvas.Item, error)

	// DeleteItem removes an item and cascades to every link touching it.
	DeleteItem(ctx context.Context, scopeID, id string) error

	// ListItems returns all items in a scope.
	ListItems(ctx context.Context, scopeID string) ([]canvas.Item, error)

	// GetStatistics returns counts of stored items and links.
	GetStatistics(ctx context.Context) (map[string]int, error)
}

// LinkStore provides access to the directed links between items.
type LinkStore interface {
	// ListOutgoing returns every link whose source is the given item.
	ListOutgoing(ctx context.Context, sourceID string) ([]canvas.Link, error)

	// UpsertLink inserts the (source, target) link or refreshes its
	// snippet if the pair already exists. The original created_at is
	// preserved on update.
	UpsertLink(ctx context.Context, sourceID, targetID, snippet string) error

	// DeleteLink removes the (source, target) link. Deleting a link that
	// does not exist is not an error.
	DeleteLink(ctx context.Context, sourceID, targetID string) error
}

// Backend is the full storage surface the linker is wired against.
type Backend interface {
	EntityStore
	LinkStore

	// Close releases any resources held by the backend.
	Close() error
}
