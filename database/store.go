package database

import (
	"context"

	"github.com/taohansen/blog-backend/models"
)

// PostStore is the revision-guarded document store the post service runs
// against. Implementations translate their native failures into errs kinds:
// a missing document is errs.ErrNotFound, a stale or clashing revision is
// errs.ErrRevisionConflict, and everything else is errs.ErrStore with the
// cause attached.
type PostStore interface {
	Get(ctx context.Context, id string) (*models.Post, error)
	// SlugHolders returns every post currently using slug. More than one
	// holder is possible because slugs are not unique at the store level.
	SlugHolders(ctx context.Context, slug string) ([]models.SlugHolder, error)
	// Put creates the post when expected is zero, otherwise it replaces the
	// stored document only if its revision still equals expected.
	Put(ctx context.Context, post *models.Post, expected models.Revision) (models.Revision, error)
	Delete(ctx context.Context, id string, expected models.Revision) error
	// List returns metadata only, newest first.
	List(ctx context.Context, req models.PageRequest) (*models.PagedPosts, error)
	ListAll(ctx context.Context) ([]*models.Post, error)
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}
