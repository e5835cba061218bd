package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/errors"
	_ "github.com/mattn/go-sqlite3"
)

type SqliteBackend struct {
	db *sql.DB
}

// NewSqliteBackend creates a new SQLite backend with the specified database path and WAL mode setting
func NewSqliteBackend(dbPath string, walMode bool) (Backend, error) {
	// Configure connection string with appropriate settings
	connStr := dbPath
	if walMode {
		connStr += "?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=true"
	} else {
		connStr += "?_synchronous=FULL&_cache_size=1000&_foreign_keys=true"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	backend := &SqliteBackend{db: db}

	// Initialize the database schema
	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

// initSchema creates the necessary tables for the database
func (s *SqliteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		title TEXT NOT NULL,
		title_folded TEXT NOT NULL,
		kind TEXT NOT NULL,
		pos_x REAL NOT NULL DEFAULT 0,
		pos_y REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- One item per folded title per scope; title mentions resolve through
	-- this. Folding happens in Go (SQLite's lower() is ASCII-only).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_scope_title ON items(scope_id, title_folded);
	CREATE INDEX IF NOT EXISTS idx_items_scope ON items(scope_id);
	CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);

	CREATE TABLE IF NOT EXISTS links (
		source_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		snippet TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		PRIMARY KEY (source_id, target_id)
	);

	CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetItem retrieves a single item by ID within a scope
func (s *SqliteBackend) GetItem(ctx context.Context, scopeID, id string) (*canvas.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scope_id, title, kind, pos_x, pos_y, created_at, updated_at
		FROM items
		WHERE id = ? AND scope_id = ?
	`, id, scopeID)

	return scanItem(row)
}

// FindItemByTitle retrieves an item by case-insensitive title match within a scope
func (s *SqliteBackend) FindItemByTitle(ctx context.Context, scopeID, title string) (*canvas.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, scope_id, title, kind, pos_x, pos_y, created_at, updated_at
		FROM items
		WHERE scope_id = ? AND title_folded = ?
	`, scopeID, strings.ToLower(title))

	return scanItem(row)
}

// CreateItem inserts a new item. If another item with the same folded title
// already exists in the scope, that item is returned instead.
func (s *SqliteBackend) CreateItem(ctx context.Context, item canvas.Item) (*canvas.Item, error) {
	if strings.TrimSpace(item.ID) == "" {
		return nil, errors.ValidationRequired("item ID")
	}
	if strings.TrimSpace(item.Title) == "" {
		return nil, errors.ValidationRequired("item title")
	}
	if !item.Kind.Valid() {
		return nil, errors.ValidationInvalid("kind", string(item.Kind))
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = now
	}

	// INSERT OR IGNORE + re-select keeps concurrent stub creation from
	// producing duplicate rows for the same folded title
	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO items (id, scope_id, title, title_folded, kind, pos_x, pos_y, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.ID,
		item.ScopeID,
		item.Title,
		strings.ToLower(item.Title),
		string(item.Kind),
		item.Position.X,
		item.Position.Y,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item %s: %w", item.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows > 0 {
		return &item, nil
	}

	existing, err := s.FindItemByTitle(ctx, item.ScopeID, item.Title)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.Newf(errors.ErrCodeItemAlreadyExists, "item with ID '%s' already exists", item.ID)
	}
	return existing, nil
}

// DeleteItem removes an item; foreign keys cascade to its links
func (s *SqliteBackend) DeleteItem(ctx context.Context, scopeID, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE id = ? AND scope_id = ?
	`, id, scopeID)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("item")
	}
	return nil
}

// ListItems returns all items in a scope ordered by creation time
func (s *SqliteBackend) ListItems(ctx context.Context, scopeID string) ([]canvas.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope_id, title, kind, pos_x, pos_y, created_at, updated_at
		FROM items
		WHERE scope_id = ?
		ORDER BY created_at, id
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []canvas.Item
	for rows.Next() {
		var item canvas.Item
		var kind string
		err := rows.Scan(
			&item.ID,
			&item.ScopeID,
			&item.Title,
			&kind,
			&item.Position.X,
			&item.Position.Y,
			&item.CreatedAt,
			&item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Kind = canvas.ItemKind(kind)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return items, nil
}

// GetStatistics returns counts of items and links in the database
func (s *SqliteBackend) GetStatistics(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	var itemCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&itemCount); err != nil {
		return nil, fmt.Errorf("failed to get item count: %w", err)
	}
	stats["items"] = itemCount

	var linkCount int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM links").Scan(&linkCount); err != nil {
		return nil, fmt.Errorf("failed to get link count: %w", err)
	}
	stats["links"] = linkCount

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM items
		GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query item counts by kind: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		if kind != "" {
			stats["kind_"+kind] = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over kind rows: %w", err)
	}

	return stats, nil
}

// ListOutgoing returns every link whose source is the given item
func (s *SqliteBackend) ListOutgoing(ctx context.Context, sourceID string) ([]canvas.Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, target_id, snippet, created_at
		FROM links
		WHERE source_id = ?
		ORDER BY target_id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []canvas.Link
	for rows.Next() {
		var link canvas.Link
		err := rows.Scan(&link.SourceID, &link.TargetID, &link.Snippet, &link.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return links, nil
}

// UpsertLink inserts the link or refreshes its snippet
func (s *SqliteBackend) UpsertLink(ctx context.Context, sourceID, targetID, snippet string) error {
	if sourceID == targetID {
		return errors.New(errors.ErrCodeInvalidOperation, "link source and target cannot be the same item")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO links (source_id, target_id, snippet, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id) DO UPDATE SET
			snippet = excluded.snippet
			-- created_at is NOT updated, preserving original creation time
	`, sourceID, targetID, snippet, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert link %s -> %s: %w", sourceID, targetID, err)
	}
	return nil
}

// DeleteLink removes the link; deleting an absent link is not an error
func (s *SqliteBackend) DeleteLink(ctx context.Context, sourceID, targetID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM links WHERE source_id = ? AND target_id = ?
	`, sourceID, targetID)
	if err != nil {
		return fmt.Errorf("failed to delete link %s -> %s: %w", sourceID, targetID, err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteBackend) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanItem scans a single item row, returning (nil, nil) when absent
func scanItem(row *sql.Row) (*canvas.Item, error) {
	var item canvas.Item
	var kind string

	err := row.Scan(
		&item.ID,
		&item.ScopeID,
		&item.Title,
		&kind,
		&item.Position.X,
		&item.Position.Y,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Item not found
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Kind = canvas.ItemKind(kind)
	return &item, nil
}
