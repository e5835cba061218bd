// Package linker turns @mention references inside note content into persisted
// links between canvas items, keeping the stored link set consistent with the
// current text on every pass.
package linker

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/canvaslab/mention-core/internal/storage"
	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/logging"
)

// Stub items are placed relative to the mentioning item. The hint index fans
// successive stubs out vertically so they do not stack at one point.
const (
	stubOffsetX = 260.0
	stubOffsetY = 48.0
)

// Resolver maps a parsed mention to a canonical item, creating a stub item on
// demand for title mentions that match nothing.
type Resolver struct {
	entities storage.EntityStore
	logger   *slog.Logger
}

// NewResolver creates a Resolver backed by the given entity store
func NewResolver(entities storage.EntityStore) *Resolver {
	return &Resolver{
		entities: entities,
		logger:   logging.GetGlobalLogger("linker.resolver"),
	}
}

// Resolve maps one mention to its target item within the source item's scope.
// Returns (nil, nil) for id mentions that match nothing; unresolvable ids are
// a policy outcome, not an error. Title mentions that match nothing create a
// stub item with the mention's exact title and the default kind. hint is the
// mention's index in the distinct-mention sequence and spreads stub positions.
func (r *Resolver) Resolve(ctx context.Context, m canvas.Mention, source *canvas.Item, hint int) (*canvas.ResolutionResult, error) {
	switch m.Kind {
	case canvas.MentionByID:
		item, err := r.entities.GetItem(ctx, source.ScopeID, m.Value)
		if err != nil {
			return nil, err
		}
		if item == nil {
			r.logger.DebugContext(ctx, "Id mention resolved to nothing",
				slog.String("mention_id", m.Value),
				slog.String("scope_id", source.ScopeID),
			)
			return nil, nil
		}
		return &canvas.ResolutionResult{
			TargetID: item.ID,
			Title:    item.Title,
			Created:  false,
		}, nil

	case canvas.MentionByTitle:
		item, err := r.entities.FindItemByTitle(ctx, source.ScopeID, m.Value)
		if err != nil {
			return nil, err
		}
		if item != nil {
			return &canvas.ResolutionResult{
				TargetID: item.ID,
				Title:    item.Title,
				Created:  false,
			}, nil
		}

		stub := canvas.Item{
			ID:      uuid.New().String(),
			ScopeID: source.ScopeID,
			Title:   m.Value,
			Kind:    canvas.DefaultKind,
			Position: canvas.Position{
				X: source.Position.X + stubOffsetX,
				Y: source.Position.Y + stubOffsetY*float64(hint),
			},
		}

		created, err := r.entities.CreateItem(ctx, stub)
		if err != nil {
			return nil, err
		}

		// The store resolves duplicate-title races by returning the row
		// that won; only report created=true when our stub is that row.
		wasCreated := created.ID == stub.ID
		if wasCreated {
			r.logger.InfoContext(ctx, "Created stub item for unresolved title mention",
				slog.String("item_id", created.ID),
				slog.String("title", created.Title),
				slog.String("scope_id", source.ScopeID),
			)
		}

		return &canvas.ResolutionResult{
			TargetID: created.ID,
			Title:    created.Title,
			Created:  wasCreated,
		}, nil
	}

	return nil, nil
}
