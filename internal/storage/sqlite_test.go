package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvaslab/mention-core/pkg/canvas"
	"github.com/canvaslab/mention-core/pkg/errors"
)

func newTestSqliteBackend(t *testing.T) Backend {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	backend, err := NewSqliteBackend(dbPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestSqliteBackend_CreateAndGetItem(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	item := testItem("a-1", "canvas-1", "Alice")
	item.Kind = canvas.KindPerson
	item.Position = canvas.Position{X: 120.5, Y: -42}

	created, err := backend.CreateItem(ctx, item)
	require.NoError(t, err)
	require.NotNil(t, created)

	got, err := backend.GetItem(ctx, "canvas-1", "a-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Title)
	assert.Equal(t, canvas.KindPerson, got.Kind)
	assert.Equal(t, 120.5, got.Position.X)
	assert.Equal(t, -42.0, got.Position.Y)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSqliteBackend_GetItem_NotFound(t *testing.T) {
	backend := newTestSqliteBackend(t)

	got, err := backend.GetItem(context.Background(), "canvas-1", "missing")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSqliteBackend_GetItem_WrongScope(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	_, err := backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Alice"))
	require.NoError(t, err)

	got, err := backend.GetItem(ctx, "canvas-2", "a-1")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSqliteBackend_FindItemByTitle_CaseInsensitive(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	_, err := backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Coffee Machine"))
	require.NoError(t, err)

	for _, title := range []string{"Coffee Machine", "coffee machine", "COFFEE MACHINE"} {
		got, err := backend.FindItemByTitle(ctx, "canvas-1", title)
		require.NoError(t, err)
		require.NotNil(t, got, "title %q should match", title)
		assert.Equal(t, "a-1", got.ID)
	}

	got, err := backend.FindItemByTitle(ctx, "canvas-1", "Tea Machine")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSqliteBackend_TitleFoldingIsUnicodeAware(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	first, err := backend.CreateItem(ctx, testItem("e-1", "canvas-1", "Éowyn"))
	require.NoError(t, err)

	got, err := backend.FindItemByTitle(ctx, "canvas-1", "éowyn")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "e-1", got.ID)

	// Creating the lowercase variant must return the winner, not a new row
	second, err := backend.CreateItem(ctx, testItem("e-2", "canvas-1", "éowyn"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	items, err := backend.ListItems(ctx, "canvas-1")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSqliteBackend_CreateItem_DuplicateTitleReturnsExisting(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	first, err := backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Alice"))
	require.NoError(t, err)

	second, err := backend.CreateItem(ctx, testItem("a-2", "canvas-1", "ALICE"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := backend.CreateItem(ctx, testItem("a-3", "canvas-2", "Alice"))
	require.NoError(t, err)
	assert.Equal(t, "a-3", other.ID)
}

func TestSqliteBackend_CreateItem_Validation(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	_, err := backend.CreateItem(ctx, testItem("", "canvas-1", "Alice"))
	assert.True(t, errors.Is(err, errors.ErrCodeValidationRequired))

	_, err = backend.CreateItem(ctx, testItem("a-1", "canvas-1", ""))
	assert.True(t, errors.Is(err, errors.ErrCodeValidationRequired))

	bad := testItem("a-1", "canvas-1", "Alice")
	bad.Kind = "gadget"
	_, err = backend.CreateItem(ctx, bad)
	assert.True(t, errors.Is(err, errors.ErrCodeValidationInvalid))
}

func TestSqliteBackend_DeleteItem_CascadesToLinks(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	for _, it := range []canvas.Item{
		testItem("a-1", "canvas-1", "Alice"),
		testItem("b-1", "canvas-1", "Bob"),
		testItem("c-1", "canvas-1", "Carol"),
	} {
		_, err := backend.CreateItem(ctx, it)
		require.NoError(t, err)
	}

	require.NoError(t, backend.UpsertLink(ctx, "a-1", "b-1", ""))
	require.NoError(t, backend.UpsertLink(ctx, "b-1", "c-1", ""))

	require.NoError(t, backend.DeleteItem(ctx, "canvas-1", "b-1"))

	out, err := backend.ListOutgoing(ctx, "a-1")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = backend.ListOutgoing(ctx, "b-1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSqliteBackend_DeleteItem_NotFound(t *testing.T) {
	backend := newTestSqliteBackend(t)
	err := backend.DeleteItem(context.Background(), "canvas-1", "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeItemNotFound))
}

func TestSqliteBackend_ListItems(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	_, err := backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Alice"))
	require.NoError(t, err)
	_, err = backend.CreateItem(ctx, testItem("b-1", "canvas-1", "Bob"))
	require.NoError(t, err)
	_, err = backend.CreateItem(ctx, testItem("x-1", "canvas-2", "Elsewhere"))
	require.NoError(t, err)

	items, err := backend.ListItems(ctx, "canvas-1")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestSqliteBackend_UpsertLink_PreservesCreatedAt(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	_, err := backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Alice"))
	require.NoError(t, err)
	_, err = backend.CreateItem(ctx, testItem("b-1", "canvas-1", "Bob"))
	require.NoError(t, err)

	require.NoError(t, backend.UpsertLink(ctx, "a-1", "b-1", "first"))

	links, err := backend.ListOutgoing(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	createdAt := links[0].CreatedAt

	require.NoError(t, backend.UpsertLink(ctx, "a-1", "b-1", "second"))

	links, err = backend.ListOutgoing(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "second", links[0].Snippet)
	assert.True(t, links[0].CreatedAt.Equal(createdAt))
}

func TestSqliteBackend_UpsertLink_SelfLink(t *testing.T) {
	backend := newTestSqliteBackend(t)
	err := backend.UpsertLink(context.Background(), "a-1", "a-1", "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidOperation))
}

func TestSqliteBackend_DeleteLink_AbsentIsNoop(t *testing.T) {
	backend := newTestSqliteBackend(t)
	assert.NoError(t, backend.DeleteLink(context.Background(), "a-1", "b-1"))
}

func TestSqliteBackend_GetStatistics(t *testing.T) {
	backend := newTestSqliteBackend(t)
	ctx := context.Background()

	_, err := backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Alice"))
	require.NoError(t, err)
	person := testItem("p-1", "canvas-1", "Bob")
	person.Kind = canvas.KindPerson
	_, err = backend.CreateItem(ctx, person)
	require.NoError(t, err)
	require.NoError(t, backend.UpsertLink(ctx, "a-1", "p-1", ""))

	stats, err := backend.GetStatistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["items"])
	assert.Equal(t, 1, stats["links"])
	assert.Equal(t, 1, stats["kind_note"])
	assert.Equal(t, 1, stats["kind_person"])
}

func TestSqliteBackend_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	backend, err := NewSqliteBackend(dbPath, true)
	require.NoError(t, err)

	_, err = backend.CreateItem(ctx, testItem("a-1", "canvas-1", "Alice"))
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	reopened, err := NewSqliteBackend(dbPath, true)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetItem(ctx, "canvas-1", "a-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Title)
}
