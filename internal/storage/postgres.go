package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/errors"
)

type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgresBackend connects to PostgreSQL with the given DSN and ensures
// the schema exists
func NewPostgresBackend(ctx context.Context, dsn string) (Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	backend := &PostgresBackend{pool: pool}

	if err := backend.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return backend, nil
}

func (p *PostgresBackend) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		scope_id TEXT NOT NULL,
		title TEXT NOT NULL,
		title_folded TEXT NOT NULL,
		kind TEXT NOT NULL,
		pos_x DOUBLE PRECISION NOT NULL DEFAULT 0,
		pos_y DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	-- Folding happens in Go so all backends agree on Unicode titles
	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_scope_title ON items(scope_id, title_folded);
	CREATE INDEX IF NOT EXISTS idx_items_scope ON items(scope_id);

	CREATE TABLE IF NOT EXISTS links (
		source_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		snippet TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (source_id, target_id)
	);

	CREATE INDEX IF NOT EXISTS idx_links_target ON links(target_id);
	`

	_, err := p.pool.Exec(ctx, schema)
	return err
}

// GetItem retrieves a single item by ID within a scope
func (p *PostgresBackend) GetItem(ctx context.Context, scopeID, id string) (*canvas.Item, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, scope_id, title, kind, pos_x, pos_y, created_at, updated_at
		FROM items
		WHERE id = $1 AND scope_id = $2
	`, id, scopeID)

	return scanPgItem(row)
}

// FindItemByTitle retrieves an item by case-insensitive title match within a scope
func (p *PostgresBackend) FindItemByTitle(ctx context.Context, scopeID, title string) (*canvas.Item, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, scope_id, title, kind, pos_x, pos_y, created_at, updated_at
		FROM items
		WHERE scope_id = $1 AND title_folded = $2
	`, scopeID, strings.ToLower(title))

	return scanPgItem(row)
}

// CreateItem inserts a new item. If another item with the same folded title
// already exists in the scope, that item is returned instead.
func (p *PostgresBackend) CreateItem(ctx context.Context, item canvas.Item) (*canvas.Item, error) {
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

	// Conflict-tolerant insert + re-select: the second of two concurrent
	// stub creators gets the first one's row
	tag, err := p.pool.Exec(ctx, `
		INSERT INTO items (id, scope_id, title, title_folded, kind, pos_x, pos_y, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT DO NOTHING
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

	if tag.RowsAffected() > 0 {
		return &item, nil
	}

	existing, err := p.FindItemByTitle(ctx, item.ScopeID, item.Title)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, errors.Newf(errors.ErrCodeItemAlreadyExists, "item with ID '%s' already exists", item.ID)
	}
	return existing, nil
}

// DeleteItem removes an item; foreign keys cascade to its links
func (p *PostgresBackend) DeleteItem(ctx context.Context, scopeID, id string) error {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM items WHERE id = $1 AND scope_id = $2
	`, id, scopeID)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("item")
	}
	return nil
}

// ListItems returns all items in a scope ordered by creation time
func (p *PostgresBackend) ListItems(ctx context.Context, scopeID string) ([]canvas.Item, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, scope_id, title, kind, pos_x, pos_y, created_at, updated_at
		FROM items
		WHERE scope_id = $1
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
func (p *PostgresBackend) GetStatistics(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)

	var itemCount int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM items").Scan(&itemCount); err != nil {
		return nil, fmt.Errorf("failed to get item count: %w", err)
	}
	stats["items"] = itemCount

	var linkCount int
	if err := p.pool.QueryRow(ctx, "SELECT COUNT(*) FROM links").Scan(&linkCount); err != nil {
		return nil, fmt.Errorf("failed to get link count: %w", err)
	}
	stats["links"] = linkCount

	rows, err := p.pool.Query(ctx, `
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
func (p *PostgresBackend) ListOutgoing(ctx context.Context, sourceID string) ([]canvas.Link, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT source_id, target_id, snippet, created_at
		FROM links
		WHERE source_id = $1
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
func (p *PostgresBackend) UpsertLink(ctx context.Context, sourceID, targetID, snippet string) error {
	if sourceID == targetID {
		return errors.New(errors.ErrCodeInvalidOperation, "link source and target cannot be the same item")
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO links (source_id, target_id, snippet, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, target_id) DO UPDATE SET
			snippet = EXCLUDED.snippet
	`, sourceID, targetID, snippet, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert link %s -> %s: %w", sourceID, targetID, err)
	}
	return nil
}

// DeleteLink removes the link; deleting an absent link is not an error
func (p *PostgresBackend) DeleteLink(ctx context.Context, sourceID, targetID string) error {
	_, err := p.pool.Exec(ctx, `
		DELETE FROM links WHERE source_id = $1 AND target_id = $2
	`, sourceID, targetID)
	if err != nil {
		return fmt.Errorf("failed to delete link %s -> %s: %w", sourceID, targetID, err)
	}
	return nil
}

// Close closes the connection pool
func (p *PostgresBackend) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

func scanPgItem(row pgx.Row) (*canvas.Item, error) {
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
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Item not found
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Kind = canvas.ItemKind(kind)
	return &item, nil
}
