package linker

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/canvaslab/mention-core/internal/storage"
	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/config"
	"github.com/canvaslab/mention-core/pkg/errors"
	"github.com/canvaslab/mention-core/pkg/logging"
	"github.com/canvaslab/mention-core/pkg/mention"
)

// Reconciler makes the persisted outgoing link set of an item match exactly
// the mentions found in its current content. Stateless between calls; the
// link store is the only persisted state.
type Reconciler struct {
	entities    storage.EntityStore
	links       storage.LinkStore
	resolver    *Resolver
	wordsAround int
	logger      *slog.Logger

	// Overlapping reconciles on one source would interleave their insert
	// and stale-delete phases, so calls are serialized per source item.
	// Striped so the lock set stays bounded however many items exist.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// NewReconciler creates a Reconciler over the given stores. wordsAround is
// the snippet context window; values below 1 fall back to the default.
func NewReconciler(entities storage.EntityStore, links storage.LinkStore, wordsAround int) *Reconciler {
	if wordsAround < 1 {
		wordsAround = config.DefaultSnippetWordsAround
	}
	return &Reconciler{
		entities:    entities,
		links:       links,
		resolver:    NewResolver(entities),
		wordsAround: wordsAround,
		logger:      logging.GetGlobalLogger("linker.reconciler"),
	}
}

// Reconcile parses content, resolves every distinct mention within the source
// item's scope, upserts one link per resolved target, and deletes links whose
// target is no longer mentioned. Returns one result per distinct resolved
// mention in first-occurrence order. Calling it twice with unchanged content
// yields the same link set both times.
func (r *Reconciler) Reconcile(ctx context.Context, scopeID, sourceID, content string) ([]canvas.ResolutionResult, error) {
	timer := logging.StartTimer(ctx, r.logger, "reconcile")

	lock := r.sourceLock(sourceID)
	lock.Lock()
	defer lock.Unlock()

	results, err := r.reconcileLocked(ctx, scopeID, sourceID, content)
	if err != nil {
		timer.EndWithError(err)
		return nil, err
	}
	timer.End()
	return results, nil
}

func (r *Reconciler) reconcileLocked(ctx context.Context, scopeID, sourceID, content string) ([]canvas.ResolutionResult, error) {
	source, err := r.entities.GetItem(ctx, scopeID, sourceID)
	if err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.Newf(errors.ErrCodeItemNotFound, "source item '%s' not found in scope '%s'", sourceID, scopeID)
	}

	// Dedupe keeps the first occurrence's position, anchoring each snippet
	// on the earliest usage in the text.
	distinct := mention.Dedupe(mention.ParseWithPositions(content))

	r.logger.DebugContext(ctx, "Reconciling mentions",
		slog.String("source_id", sourceID),
		slog.String("scope_id", scopeID),
		slog.Int("distinct_mentions", len(distinct)),
	)

	results := make([]canvas.ResolutionResult, 0, len(distinct))
	currentTargets := make(map[string]struct{}, len(distinct))

	for i, m := range distinct {
		resolved, err := r.resolver.Resolve(ctx, m, source, i)
		if err != nil {
			return nil, err
		}
		if resolved == nil || resolved.TargetID == sourceID {
			continue
		}

		snippet := mention.ExtractSnippet(content, m.Start, m.End, r.wordsAround)
		if err := r.links.UpsertLink(ctx, sourceID, resolved.TargetID, snippet); err != nil {
			return nil, err
		}

		currentTargets[resolved.TargetID] = struct{}{}
		results = append(results, *resolved)
	}

	// Stale-link removal: delete only rows whose target fell out of the
	// text, never the whole edge set.
	existing, err := r.links.ListOutgoing(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	for _, link := range existing {
		if _, ok := currentTargets[link.TargetID]; ok {
			continue
		}
		if err := r.links.DeleteLink(ctx, sourceID, link.TargetID); err != nil {
			return nil, err
		}
		r.logger.DebugContext(ctx, "Deleted stale link",
			slog.String("source_id", sourceID),
			slog.String("target_id", link.TargetID),
		)
	}

	return results, nil
}

func (r *Reconciler) sourceLock(sourceID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sourceID))
	return &r.locks[h.Sum32()%lockStripes]
}
