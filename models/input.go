package models

// CreatePostInput is the payload for creating a post. Slug and Date are
// optional; an empty slug is derived from the title.
type CreatePostInput struct {
	Title   string   `json:"title" validate:"required,notblank,max=500"`
	Slug    string   `json:"slug,omitempty" validate:"omitempty,max=200,slug"`
	Date    string   `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Tags    []string `json:"tags,omitempty" validate:"dive,required,notblank,max=50"`
	Summary string   `json:"summary,omitempty" validate:"max=1000"`
	Content string   `json:"content" validate:"required,notblank,max=100000"`
}

// UpdatePostInput has the same shape as CreatePostInput. ExpectedRevision is
// filled from the If-Match header, never from the body.
type UpdatePostInput struct {
	CreatePostInput
	ExpectedRevision Revision `json:"-" validate:"-"`
}

// Caller is the already-authenticated principal behind a mutation.
// CanMutate is decided upstream (admin gate); the services only read it.
type Caller struct {
	Subject   string
	CanMutate bool
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// PageRequest is zero-indexed.
type PageRequest struct {
	Page int `validate:"min=0"`
	Size int `validate:"min=1,max=50"`
}

// PagedPosts is one page of post metadata, newest first.
type PagedPosts struct {
	Posts      []PostMetadata `json:"posts"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"totalPages"`
	HasNext    bool           `json:"hasNext"`
}

// NewPagedPosts derives the page arithmetic from the total row count.
func NewPagedPosts(posts []PostMetadata, req PageRequest, total int64) *PagedPosts {
	if posts == nil {
		posts = []PostMetadata{}
	}
	paged := &PagedPosts{
		Posts: posts,
		Page:  req.Page,
		Size:  req.Size,
		Total: total,
	}
	if req.Size > 0 {
		paged.TotalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
		paged.HasNext = int64(req.Page+1)*int64(req.Size) < total
	}
	return paged
}
