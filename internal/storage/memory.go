package storage

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/errors"
	"github.com/canvaslab/mention-core/pkg/logging"
)

// MemoryBackend is a simple in-memory storage backend for testing
type MemoryBackend struct {
	mu     sync.RWMutex
	items  map[string]canvas.Item            // item ID -> item
	titles map[string]map[string]string      // scope ID -> folded title -> item ID
	links  map[string]map[string]canvas.Link // source ID -> target ID -> link
	logger *slog.Logger
}

// NewMemoryBackend creates a new memory-based storage backend
func NewMemoryBackend() *MemoryBackend {
	logger := logging.GetGlobalLogger("storage.memory")

	logger.Info("Creating memory backend")

	return &MemoryBackend{
		items:  make(map[string]canvas.Item),
		titles: make(map[string]map[string]string),
		links:  make(map[string]map[string]canvas.Link),
		logger: logger,
	}
}

// GetItem retrieves an item by ID from memory
func (m *MemoryBackend) GetItem(ctx context.Context, scopeID, id string) (*canvas.Item, error) {
	timer := logging.StartTimer(ctx, m.logger, "getItem")
	defer timer.End()

	m.logger.DebugContext(ctx, "Getting item from memory",
		slog.String("item_id", id),
		slog.String("scope_id", scopeID),
	)

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Get item operation canceled")
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item, exists := m.items[id]
	if !exists || item.ScopeID != scopeID {
		m.logger.DebugContext(ctx, "Item not found in memory",
			slog.String("item_id", id),
			slog.String("scope_id", scopeID),
		)
		return nil, nil // Not found returns nil, not error (consistent with SQLite backend)
	}

	return &item, nil
}

// FindItemByTitle retrieves an item by case-insensitive title match
func (m *MemoryBackend) FindItemByTitle(ctx context.Context, scopeID, title string) (*canvas.Item, error) {
	timer := logging.StartTimer(ctx, m.logger, "findItemByTitle")
	defer timer.End()

	m.logger.DebugContext(ctx, "Finding item by title in memory",
		slog.String("title", title),
		slog.String("scope_id", scopeID),
	)

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Find item operation canceled")
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.titles[scopeID][strings.ToLower(title)]
	if !ok {
		return nil, nil
	}

	item := m.items[id]
	return &item, nil
}

// CreateItem inserts a new item, returning the existing item when one with
// the same folded title is already present in the scope
func (m *MemoryBackend) CreateItem(ctx context.Context, item canvas.Item) (*canvas.Item, error) {
	timer := logging.StartTimer(ctx, m.logger, "createItem")
	defer timer.End()

	m.logger.InfoContext(ctx, "Creating item in memory",
		slog.String("item_id", item.ID),
		slog.String("title", item.Title),
		slog.String("scope_id", item.ScopeID),
	)

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Create item operation canceled")
		return nil, ctx.Err()
	default:
	}

	if strings.TrimSpace(item.ID) == "" {
		return nil, errors.ValidationRequired("item ID")
	}
	if strings.TrimSpace(item.Title) == "" {
		return nil, errors.ValidationRequired("item title")
	}
	if !item.Kind.Valid() {
		return nil, errors.ValidationInvalid("kind", string(item.Kind))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	folded := strings.ToLower(item.Title)
	if existingID, ok := m.titles[item.ScopeID][folded]; ok {
		existing := m.items[existingID]
		m.logger.DebugContext(ctx, "Item with same title already exists, returning existing",
			slog.String("item_id", existingID),
			slog.String("title", existing.Title),
		)
		return &existing, nil
	}

	if _, exists := m.items[item.ID]; exists {
		return nil, errors.Newf(errors.ErrCodeItemAlreadyExists, "item with ID '%s' already exists", item.ID)
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	m.items[item.ID] = item
	if m.titles[item.ScopeID] == nil {
		m.titles[item.ScopeID] = make(map[string]string)
	}
	m.titles[item.ScopeID][folded] = item.ID

	return &item, nil
}

// DeleteItem removes an item and every link touching it
func (m *MemoryBackend) DeleteItem(ctx context.Context, scopeID, id string) error {
	timer := logging.StartTimer(ctx, m.logger, "deleteItem")
	defer timer.End()

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Delete item operation canceled")
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, exists := m.items[id]
	if !exists || item.ScopeID != scopeID {
		return errors.NotFound("item")
	}

	delete(m.items, id)
	delete(m.titles[scopeID], strings.ToLower(item.Title))
	delete(m.links, id)
	for _, targets := range m.links {
		delete(targets, id)
	}

	m.logger.InfoContext(ctx, "Item deleted from memory",
		slog.String("item_id", id),
		slog.String("scope_id", scopeID),
	)

	return nil
}

// ListItems returns all items in a scope ordered by creation time
func (m *MemoryBackend) ListItems(ctx context.Context, scopeID string) ([]canvas.Item, error) {
	timer := logging.StartTimer(ctx, m.logger, "listItems")
	defer timer.End()

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "List items operation canceled")
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []canvas.Item
	for _, item := range m.items {
		if item.ScopeID == scopeID {
			items = append(items, item)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	return items, nil
}

// GetStatistics returns statistics about the memory storage
func (m *MemoryBackend) GetStatistics(ctx context.Context) (map[string]int, error) {
	timer := logging.StartTimer(ctx, m.logger, "getStatistics")
	defer timer.End()

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Get statistics operation canceled")
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	linkCount := 0
	for _, targets := range m.links {
		linkCount += len(targets)
	}

	stats := map[string]int{
		"items": len(m.items),
		"links": linkCount,
	}

	for _, item := range m.items {
		if item.Kind != "" {
			stats["kind_"+string(item.Kind)]++
		}
	}

	return stats, nil
}

// ListOutgoing returns every link whose source is the given item
func (m *MemoryBackend) ListOutgoing(ctx context.Context, sourceID string) ([]canvas.Link, error) {
	timer := logging.StartTimer(ctx, m.logger, "listOutgoing")
	defer timer.End()

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "List outgoing operation canceled")
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var links []canvas.Link
	for _, link := range m.links[sourceID] {
		links = append(links, link)
	}

	sort.Slice(links, func(i, j int) bool {
		return links[i].TargetID < links[j].TargetID
	})

	return links, nil
}

// UpsertLink inserts the link or refreshes its snippet, preserving the
// original creation time on update
func (m *MemoryBackend) UpsertLink(ctx context.Context, sourceID, targetID, snippet string) error {
	timer := logging.StartTimer(ctx, m.logger, "upsertLink")
	defer timer.End()

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Upsert link operation canceled")
		return ctx.Err()
	default:
	}

	if sourceID == targetID {
		return errors.New(errors.ErrCodeInvalidOperation, "link source and target cannot be the same item")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.links[sourceID] == nil {
		m.links[sourceID] = make(map[string]canvas.Link)
	}

	createdAt := time.Now().UTC()
	if existing, ok := m.links[sourceID][targetID]; ok {
		createdAt = existing.CreatedAt
	}

	m.links[sourceID][targetID] = canvas.Link{
		SourceID:  sourceID,
		TargetID:  targetID,
		Snippet:   snippet,
		CreatedAt: createdAt,
	}

	m.logger.DebugContext(ctx, "Link upserted in memory",
		slog.String("source_id", sourceID),
		slog.String("target_id", targetID),
	)

	return nil
}

// DeleteLink removes the link; deleting an absent link is a no-op
func (m *MemoryBackend) DeleteLink(ctx context.Context, sourceID, targetID string) error {
	timer := logging.StartTimer(ctx, m.logger, "deleteLink")
	defer timer.End()

	// Check context cancellation early
	select {
	case <-ctx.Done():
		m.logger.WarnContext(ctx, "Delete link operation canceled")
		return ctx.Err()
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.links[sourceID], targetID)

	return nil
}

// Close closes the memory backend (no-op)
func (m *MemoryBackend) Close() error {
	return nil
}
