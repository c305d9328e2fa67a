package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/database"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/models"
	"github.com/taohansen/blog-backend/slug"
)

// PostService runs every post mutation as one read-then-conditionally-write
// pass against the store. It holds no per-post state; two callers racing on
// the same post are settled by the store's revision check, and the loser gets
// errs.ErrRevisionConflict back without a retry.
type PostService struct {
	store              database.PostStore
	allocator          *slug.Allocator
	validate           *validator.Validate
	now                func() time.Time
	newID              func() string
	autoSuffixExplicit bool
	logger             zerolog.Logger
}

// WithAutoSuffixExplicit lets a taken, explicitly requested slug be treated
// as a base candidate instead of failing with errs.ErrSlugTaken.
func WithAutoSuffixExplicit(enabled bool) func(*PostService) {
	return func(s *PostService) {
		s.autoSuffixExplicit = enabled
	}
}

func WithClock(now func() time.Time) func(*PostService) {
	return func(s *PostService) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) func(*PostService) {
	return func(s *PostService) {
		s.newID = newID
	}
}

func NewPostService(store database.PostStore, opts ...func(*PostService)) *PostService {
	s := &PostService{
		store:    store,
		validate: newValidator(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   log.With().Str("component", "postService").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.allocator = slug.NewAllocator(store, slug.WithClock(s.now))
	return s
}

func (s *PostService) Create(ctx context.Context, caller models.Caller, in models.CreatePostInput) (*models.Post, error) {
	if err := requireMutate(caller, "create posts"); err != nil {
		return nil, err
	}
	in = cleanInput(in)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	id := s.newID()
	var (
		postSlug string
		err      error
	)
	if in.Slug != "" {
		postSlug, err = s.explicitSlug(ctx, in.Slug, "")
	} else {
		postSlug, err = s.allocator.AllocateFromTitle(ctx, in.Title, "")
	}
	if err != nil {
		return nil, err
	}

	date := in.Date
	if date == "" {
		date = s.now().Format(models.DateLayout)
	}

	post := &models.Post{
		ID:      id,
		Slug:    postSlug,
		Title:   in.Title,
		Date:    date,
		Tags:    in.Tags,
		Summary: in.Summary,
		Content: in.Content,
	}
	rev, err := s.store.Put(ctx, post, "")
	if err != nil {
		return nil, err
	}
	post.Revision = rev

	s.logger.Info().Str("postID", id).Str("slug", postSlug).Str("caller", caller.Subject).Msg("post created")
	return post, nil
}

func (s *PostService) Update(ctx context.Context, caller models.Caller, id string, in models.UpdatePostInput) (*models.Post, error) {
	if err := requireMutate(caller, "update posts"); err != nil {
		return nil, err
	}
	in.CreatePostInput = cleanInput(in.CreatePostInput)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !in.ExpectedRevision.IsZero() && in.ExpectedRevision != current.Revision {
		return nil, errs.NewRevisionConflictError("post", id)
	}

	postSlug := current.Slug
	switch {
	case in.Slug != "":
		postSlug, err = s.explicitSlug(ctx, in.Slug, id)
	case in.Title != current.Title:
		postSlug, err = s.allocator.AllocateFromTitle(ctx, in.Title, id)
	}
	if err != nil {
		return nil, err
	}

	merged := *current
	merged.Slug = postSlug
	merged.Title = in.Title
	merged.Tags = in.Tags
	merged.Summary = in.Summary
	merged.Content = in.Content
	if in.Date != "" {
		merged.Date = in.Date
	}

	rev, err := s.store.Put(ctx, &merged, current.Revision)
	if err != nil {
		return nil, err
	}
	merged.Revision = rev

	s.logger.Info().Str("postID", id).Str("slug", postSlug).Str("caller", caller.Subject).Msg("post updated")
	return &merged, nil
}

// Delete removes a post. A non-zero expected revision must match the stored
// one; otherwise the freshly fetched revision guards the delete.
func (s *PostService) Delete(ctx context.Context, caller models.Caller, id string, expected models.Revision) error {
	if err := requireMutate(caller, "delete posts"); err != nil {
		return err
	}

	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Revision.IsZero() {
		return errs.NewNotFound("post")
	}
	if !expected.IsZero() && expected != current.Revision {
		return errs.NewRevisionConflictError("post", id)
	}

	if err := s.store.Delete(ctx, id, current.Revision); err != nil {
		return err
	}
	s.logger.Info().Str("postID", id).Str("slug", current.Slug).Str("caller", caller.Subject).Msg("post deleted")
	return nil
}

func (s *PostService) GetByID(ctx context.Context, id string) (*models.Post, error) {
	return s.store.Get(ctx, id)
}

func (s *PostService) GetBySlug(ctx context.Context, postSlug string) (*models.Post, error) {
	if !slug.IsValid(postSlug) {
		return nil, errs.NewNotFound("post")
	}
	holders, err := s.store.SlugHolders(ctx, postSlug)
	if err != nil {
		return nil, err
	}
	if len(holders) == 0 {
		return nil, errs.NewNotFound("post")
	}
	if len(holders) > 1 {
		s.logger.Warn().Str("slug", postSlug).Int("holders", len(holders)).Msg("slug shared by several posts")
	}
	return s.store.Get(ctx, holders[0].ID)
}

func (s *PostService) List(ctx context.Context, req models.PageRequest) (*models.PagedPosts, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	return s.store.List(ctx, req)
}

func (s *PostService) ListAll(ctx context.Context) ([]*models.Post, error) {
	return s.store.ListAll(ctx)
}

func (s *PostService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// explicitSlug honors a caller-chosen slug. It is used verbatim when free;
// when taken it either fails or becomes the allocator's base candidate.
func (s *PostService) explicitSlug(ctx context.Context, requested, excludeID string) (string, error) {
	if s.autoSuffixExplicit {
		return s.allocator.Allocate(ctx, requested, excludeID)
	}
	inUse, err := s.allocator.SlugInUse(ctx, requested, excludeID)
	if err != nil {
		return "", err
	}
	if inUse {
		return "", errs.NewSlugTakenError(requested)
	}
	return requested, nil
}

func requireMutate(caller models.Caller, action string) error {
	if !caller.CanMutate {
		return errs.NewForbiddenError("caller is not allowed to " + action)
	}
	return nil
}

func cleanInput(in models.CreatePostInput) models.CreatePostInput {
	in.Title = strings.TrimSpace(in.Title)
	in.Slug = strings.TrimSpace(in.Slug)
	in.Date = strings.TrimSpace(in.Date)
	in.Summary = strings.TrimSpace(in.Summary)

	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		tags = append(tags, strings.TrimSpace(t))
	}
	in.Tags = tags
	return in
}
