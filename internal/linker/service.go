package linker

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/canvaslab/mention-core/internal/storage"
	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/mention"
)

// Operation describes one callable engine operation with its metadata
type Operation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Service exposes the engine's operations over loosely-typed arguments, the
// seam the surrounding CRUD layer calls into.
type Service struct {
	storage    storage.Backend
	reconciler *Reconciler
}

// NewService creates a Service over the given storage backend. wordsAround
// is the snippet context window passed through to the reconciler.
func NewService(backend storage.Backend, wordsAround int) *Service {
	return &Service{
		storage:    backend,
		reconciler: NewReconciler(backend, backend, wordsAround),
	}
}

// ListOperations returns the list of available operations
func (s *Service) ListOperations() []Operation {
	return []Operation{
		{
			Name:        "links__reconcile",
			Description: "Reconcile an item's outgoing links against its current content",
		},
		{
			Name:        "links__parse",
			Description: "Parse @mention references out of text",
		},
		{
			Name:        "links__extract_snippet",
			Description: "Extract the words surrounding a span of text",
		},
		{
			Name:        "canvas__get_item",
			Description: "Get a specific item by ID from a canvas",
		},
		{
			Name:        "canvas__statistics",
			Description: "Get statistics about stored items and links",
		},
	}
}

// HandleCall dispatches an operation call to its handler
func (s *Service) HandleCall(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	switch name {
	case "links__reconcile":
		return s.handleReconcile(ctx, args)
	case "links__parse":
		return s.handleParse(ctx, args)
	case "links__extract_snippet":
		return s.handleExtractSnippet(ctx, args)
	case "canvas__get_item":
		return s.handleGetItem(ctx, args)
	case "canvas__statistics":
		return s.handleStatistics(ctx)
	default:
		return nil, fmt.Errorf("unknown operation: %s", name)
	}
}

type reconcileArgs struct {
	ScopeID  string `mapstructure:"scopeId"`
	SourceID string `mapstructure:"sourceId"`
	Content  string `mapstructure:"content"`
}

func (s *Service) handleReconcile(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	// Check context cancellation early
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var req reconcileArgs
	if err := mapstructure.Decode(args, &req); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	if req.ScopeID == "" {
		return nil, fmt.Errorf("scopeId parameter is required")
	}
	if req.SourceID == "" {
		return nil, fmt.Errorf("sourceId parameter is required")
	}

	results, err := s.reconciler.Reconcile(ctx, req.ScopeID, req.SourceID, req.Content)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"results": results,
		"count":   len(results),
	}, nil
}

type parseArgs struct {
	Text          string `mapstructure:"text"`
	WithPositions bool   `mapstructure:"withPositions"`
}

func (s *Service) handleParse(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var req parseArgs
	if err := mapstructure.Decode(args, &req); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}

	var mentions []canvas.Mention
	if req.WithPositions {
		mentions = mention.ParseWithPositions(req.Text)
	} else {
		mentions = mention.Parse(req.Text)
	}

	return map[string]interface{}{
		"mentions": mentions,
		"count":    len(mentions),
	}, nil
}

type extractSnippetArgs struct {
	Content     string `mapstructure:"content"`
	StartIndex  int    `mapstructure:"startIndex"`
	EndIndex    int    `mapstructure:"endIndex"`
	WordsAround int    `mapstructure:"wordsAround"`
}

func (s *Service) handleExtractSnippet(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var req extractSnippetArgs
	if err := mapstructure.Decode(args, &req); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}

	return map[string]interface{}{
		"snippet": mention.ExtractSnippet(req.Content, req.StartIndex, req.EndIndex, req.WordsAround),
	}, nil
}

type getItemArgs struct {
	ScopeID string `mapstructure:"scopeId"`
	ID      string `mapstructure:"id"`
}

func (s *Service) handleGetItem(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var req getItemArgs
	if err := mapstructure.Decode(args, &req); err != nil {
		return nil, fmt.Errorf("failed to decode arguments: %w", err)
	}
	if req.ScopeID == "" {
		return nil, fmt.Errorf("scopeId parameter is required")
	}
	if req.ID == "" {
		return nil, fmt.Errorf("id parameter is required")
	}

	item, err := s.storage.GetItem(ctx, req.ScopeID, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

func (s *Service) handleStatistics(ctx context.Context) (interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	stats, err := s.storage.GetStatistics(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get statistics: %w", err)
	}

	return stats, nil
}
