// Package repository defines the storage interfaces the service layer depends on.
// Implementations live in subpackages (repository/sqlite); services only see the
// interfaces, so tests can swap in in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/vibecoding/internal/model"
)

// ListOptions pages through results.
type ListOptions struct {
	Limit  int // Max rows; zero or negative means the default, capped at the maximum
	Offset int // Rows to skip
}

// TabRepository stores editor tabs in creation order.
type TabRepository interface {
	// Create assigns ID and timestamps and stores the tab.
	Create(ctx context.Context, tab *model.Tab) error
	GetByID(ctx context.Context, id string) (*model.Tab, error)
	// List returns tabs oldest first.
	List(ctx context.Context, opts ListOptions) ([]model.Tab, error)
	// Update overwrites title, code and output and refreshes UpdatedAt.
	Update(ctx context.Context, tab *model.Tab) error
	// Delete removes a tab but refuses to remove the last one (apperror.ErrConflict).
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
