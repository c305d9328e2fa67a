package models

// DocumentType marks blog post documents in a shared database.
const DocumentType = "blog_post"

// DateLayout is the wire and storage format of Post.Date.
const DateLayout = "2006-01-02"

// Revision is the store's opaque version token for one persisted document.
// It is only ever compared for equality.
type Revision string

func (r Revision) IsZero() bool {
	return r == ""
}

func (r Revision) String() string {
	return string(r)
}

// Post represents a complete blog post.
// Revision is never serialized to API clients; it travels as an ETag.
type Post struct {
	ID       string   `json:"id"`
	Revision Revision `json:"-"`
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Date     string   `json:"date"`
	Tags     []string `json:"tags"`
	Summary  string   `json:"summary,omitempty"`
	Content  string   `json:"content"`
}

// Metadata strips the content for list views.
func (p *Post) Metadata() PostMetadata {
	return PostMetadata{
		ID:      p.ID,
		Slug:    p.Slug,
		Title:   p.Title,
		Date:    p.Date,
		Tags:    p.Tags,
		Summary: p.Summary,
	}
}

// PostMetadata is a Post without its content.
type PostMetadata struct {
	ID      string   `json:"id"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary,omitempty"`
}

// SlugHolder is one result of a uniqueness query.
type SlugHolder struct {
	ID   string
	Slug string
}
