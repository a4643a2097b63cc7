package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/vibecoding/internal/apperror"
	"github.com/sakif/vibecoding/internal/model"
	"github.com/sakif/vibecoding/internal/repository"
)

// newTestDB returns a fresh in-memory database closed at the end of the test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestTab(t *testing.T, db *DB, title, code string) *model.Tab {
	t.Helper()
	tab := &model.Tab{Title: title, Code: code}
	require.NoError(t, db.Create(context.Background(), tab))
	return tab
}

func TestCreate_AssignsIDAndTimestamps(t *testing.T) {
	db := newTestDB(t)

	tab := createTestTab(t, db, "Tab 1", `Console.WriteLine("hi");`)

	assert.NotEmpty(t, tab.ID)
	assert.False(t, tab.CreatedAt.IsZero())
	assert.Equal(t, tab.CreatedAt, tab.UpdatedAt)
}

func TestGetByID(t *testing.T) {
	db := newTestDB(t)
	original := createTestTab(t, db, "Tab 1", "code")

	got, err := db.GetByID(context.Background(), original.ID)
	require.NoError(t, err)

	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, "Tab 1", got.Title)
	assert.Equal(t, "code", got.Code)
	assert.Empty(t, got.Output)
	assert.True(t, original.CreatedAt.Equal(got.CreatedAt))
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "missing")

	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestList_CreationOrder(t *testing.T) {
	db := newTestDB(t)
	for i := 1; i <= 3; i++ {
		createTestTab(t, db, fmt.Sprintf("Tab %d", i), "")
	}

	tabs, err := db.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)

	require.Len(t, tabs, 3)
	assert.Equal(t, "Tab 1", tabs[0].Title)
	assert.Equal(t, "Tab 2", tabs[1].Title)
	assert.Equal(t, "Tab 3", tabs[2].Title)
}

func TestList_Paging(t *testing.T) {
	db := newTestDB(t)
	for i := 1; i <= 5; i++ {
		createTestTab(t, db, fmt.Sprintf("Tab %d", i), "")
	}

	tabs, err := db.List(context.Background(), repository.ListOptions{Limit: 2, Offset: 3})
	require.NoError(t, err)

	require.Len(t, tabs, 2)
	assert.Equal(t, "Tab 4", tabs[0].Title)
	assert.Equal(t, "Tab 5", tabs[1].Title)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)

	tabs, err := db.List(context.Background(), repository.ListOptions{})
	require.NoError(t, err)
	assert.NotNil(t, tabs)
	assert.Empty(t, tabs)
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	tab := createTestTab(t, db, "Tab 1", "old")
	created := tab.UpdatedAt

	tab.Title = "Renamed"
	tab.Code = "new"
	tab.Output = "=== Execution Result ===\nhi\n"
	require.NoError(t, db.Update(context.Background(), tab))

	got, err := db.GetByID(context.Background(), tab.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "new", got.Code)
	assert.Equal(t, "=== Execution Result ===\nhi\n", got.Output)
	assert.False(t, got.UpdatedAt.Before(created))
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), &model.Tab{ID: "missing", Title: "x"})

	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestDelete(t *testing.T) {
	db := newTestDB(t)
	first := createTestTab(t, db, "Tab 1", "")
	second := createTestTab(t, db, "Tab 2", "")

	require.NoError(t, db.Delete(context.Background(), second.ID))

	n, err := db.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = db.GetByID(context.Background(), second.ID)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	t.Run("last tab is kept", func(t *testing.T) {
		err := db.Delete(context.Background(), first.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrConflict))
		assert.Equal(t, MsgLastTab, err.Error())

		_, err = db.GetByID(context.Background(), first.ID)
		assert.NoError(t, err)
	})

	t.Run("missing tab", func(t *testing.T) {
		err := db.Delete(context.Background(), "missing")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tabs.db")

	db, err := New(path)
	require.NoError(t, err)
	tab := createTestTab(t, db, "Tab 1", "kept")
	require.NoError(t, db.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetByID(context.Background(), tab.ID)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Code)
}
