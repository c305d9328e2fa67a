package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/models"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// postRecord is the relational row behind a post. Slug is indexed but not
// unique, same as the CouchDB backend: uniqueness is the allocator's job.
type postRecord struct {
	ID        string                      `gorm:"primaryKey;type:varchar(64)"`
	Rev       string                      `gorm:"type:varchar(64);not null"`
	Seq       int64                       `gorm:"not null"`
	Type      string                      `gorm:"type:varchar(32);not null;index:idx_posts_type_slug,priority:1"`
	Title     string                      `gorm:"type:varchar(500);not null"`
	Slug      string                      `gorm:"type:varchar(200);not null;index:idx_posts_type_slug,priority:2"`
	Date      datatypes.Date              `gorm:"not null;index:idx_posts_date"`
	Tags      datatypes.JSONSlice[string] `gorm:"not null"`
	Summary   string                      `gorm:"type:text"`
	Content   string                      `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (postRecord) TableName() string {
	return "posts"
}

var metadataColumns = []string{"id", "rev", "slug", "title", "date", "tags", "summary"}

// GormStore implements PostStore on Postgres or SQLite. The revision column
// plays the role of CouchDB's _rev: every write is a conditional statement
// on (id, rev) and stamps a fresh token.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:     db,
		logger: log.With().Str("component", "gormStore").Str("dialect", db.Dialector.Name()).Logger(),
	}
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Post, error) {
	var rec postRecord
	err := s.primary(ctx).
		Where("id = ? AND type = ?", id, models.DocumentType).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NewNotFound("post")
	}
	if err != nil {
		return nil, errs.NewStoreError("get", "post", err)
	}
	return rec.toModel(), nil
}

func (s *GormStore) SlugHolders(ctx context.Context, slug string) ([]models.SlugHolder, error) {
	var recs []postRecord
	err := s.primary(ctx).
		Select("id", "slug").
		Where("type = ? AND slug = ?", models.DocumentType, slug).
		Find(&recs).Error
	if err != nil {
		return nil, errs.NewStoreError("query", "slug", err)
	}

	holders := make([]models.SlugHolder, 0, len(recs))
	for _, r := range recs {
		holders = append(holders, models.SlugHolder{ID: r.ID, Slug: r.Slug})
	}
	return holders, nil
}

func (s *GormStore) Put(ctx context.Context, post *models.Post, expected models.Revision) (models.Revision, error) {
	date, err := parseDate(post.Date)
	if err != nil {
		return "", err
	}
	tags := post.Tags
	if tags == nil {
		tags = []string{}
	}

	if expected.IsZero() {
		rec := postRecord{
			ID:      post.ID,
			Rev:     newRevision(1),
			Seq:     1,
			Type:    models.DocumentType,
			Title:   post.Title,
			Slug:    post.Slug,
			Date:    date,
			Tags:    datatypes.JSONSlice[string](tags),
			Summary: post.Summary,
			Content: post.Content,
		}
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return "", errs.NewStoreError("create", "post", res.Error)
		}
		if res.RowsAffected == 0 {
			return "", errs.NewRevisionConflictError("post", post.ID)
		}
		return models.Revision(rec.Rev), nil
	}

	seq := revisionSeq(expected) + 1
	rev := newRevision(seq)
	res := s.db.WithContext(ctx).
		Model(&postRecord{}).
		Where("id = ? AND rev = ?", post.ID, expected.String()).
		Updates(map[string]any{
			"rev":     rev,
			"seq":     gorm.Expr("seq + 1"),
			"title":   post.Title,
			"slug":    post.Slug,
			"date":    date,
			"tags":    datatypes.JSONSlice[string](tags),
			"summary": post.Summary,
			"content": post.Content,
		})
	if res.Error != nil {
		return "", errs.NewStoreError("update", "post", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", s.classifyMiss(ctx, post.ID)
	}
	return models.Revision(rev), nil
}

func (s *GormStore) Delete(ctx context.Context, id string, expected models.Revision) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND rev = ?", id, expected.String()).
		Delete(&postRecord{})
	if res.Error != nil {
		return errs.NewStoreError("delete", "post", res.Error)
	}
	if res.RowsAffected == 0 {
		return s.classifyMiss(ctx, id)
	}
	return nil
}

// classifyMiss explains why a guarded write touched no rows.
func (s *GormStore) classifyMiss(ctx context.Context, id string) error {
	var count int64
	err := s.primary(ctx).Model(&postRecord{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return errs.NewStoreError("get", "post", err)
	}
	if count == 0 {
		return errs.NewNotFound("post")
	}
	return errs.NewRevisionConflictError("post", id)
}

// List runs the count and the page query side by side; replicas may serve
// both.
func (s *GormStore) List(ctx context.Context, req models.PageRequest) (*models.PagedPosts, error) {
	var (
		total int64
		recs  []postRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Model(&postRecord{}).
			Where("type = ?", models.DocumentType).
			Count(&total).Error
	})
	g.Go(func() error {
		return s.db.WithContext(gctx).
			Select(metadataColumns).
			Where("type = ?", models.DocumentType).
			Order("date DESC").Order("id DESC").
			Offset(req.Page * req.Size).
			Limit(req.Size).
			Find(&recs).Error
	})
	if err := g.Wait(); err != nil {
		return nil, errs.NewStoreError("list", "posts", err)
	}

	posts := make([]models.PostMetadata, 0, len(recs))
	for i := range recs {
		posts = append(posts, recs[i].toModel().Metadata())
	}
	return models.NewPagedPosts(posts, req, total), nil
}

func (s *GormStore) ListAll(ctx context.Context) ([]*models.Post, error) {
	var recs []postRecord
	err := s.db.WithContext(ctx).
		Where("type = ?", models.DocumentType).
		Order("date DESC").Order("id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, errs.NewStoreError("list", "posts", err)
	}

	posts := make([]*models.Post, 0, len(recs))
	for i := range recs {
		posts = append(posts, recs[i].toModel())
	}
	return posts, nil
}

func (s *GormStore) EnsureSchema(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&postRecord{}); err != nil {
		return errs.NewStoreError("migrate", "posts table", err)
	}
	s.logger.Info().Msg("posts table ready")
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errs.NewStoreError("ping", "database", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return errs.NewStoreError("ping", "database", err)
	}
	return nil
}

// primary pins a read to the write source. Reads that decide a write must
// not see a lagging replica.
func (s *GormStore) primary(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Clauses(dbresolver.Write)
}

func (r *postRecord) toModel() *models.Post {
	tags := []string(r.Tags)
	if tags == nil {
		tags = []string{}
	}
	return &models.Post{
		ID:       r.ID,
		Revision: models.Revision(r.Rev),
		Slug:     r.Slug,
		Title:    r.Title,
		Date:     time.Time(r.Date).Format(models.DateLayout),
		Tags:     tags,
		Summary:  r.Summary,
		Content:  r.Content,
	}
}

func parseDate(value string) (datatypes.Date, error) {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return datatypes.Date{}, errs.NewValidationError("date", fmt.Sprintf("expected %s, got %q", models.DateLayout, value))
	}
	return datatypes.Date(t), nil
}

func newRevision(seq int64) string {
	return strconv.FormatInt(seq, 10) + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func revisionSeq(rev models.Revision) int64 {
	prefix, _, _ := strings.Cut(rev.String(), "-")
	seq, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0
	}
	return seq
}
