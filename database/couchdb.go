package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/models"
)

const (
	DefaultCouchDatabase = "blog"
	DefaultCouchTimeout  = 30 * time.Second

	designDocID    = "_design/posts"
	byDateView     = "by_date"
	slugIndexName  = "type-slug-index"
	slugQueryLimit = 1000
)

// CouchConfig holds the connection settings for a CouchDB server.
type CouchConfig struct {
	URI      string
	Username string
	Password string
	Database string
	Timeout  time.Duration
}

// CouchStore keeps posts as CouchDB documents and relies on CouchDB's own
// _rev for the compare-and-swap on every write.
type CouchStore struct {
	client   *http.Client
	base     *url.URL
	db       string
	username string
	password string
	timeout  time.Duration
	logger   zerolog.Logger
}

func WithHTTPClient(client *http.Client) func(*CouchStore) {
	return func(s *CouchStore) {
		s.client = client
	}
}

func NewCouchStore(cfg CouchConfig, opts ...func(*CouchStore)) (*CouchStore, error) {
	if cfg.URI == "" {
		return nil, errs.NewMissingRequiredFieldError("COUCHDB_URI")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URI, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing couchdb uri: %w", err)
	}

	// credentials embedded in the URI are moved to the basic auth header
	if base.User != nil {
		if cfg.Username == "" {
			cfg.Username = base.User.Username()
		}
		if pw, ok := base.User.Password(); ok && cfg.Password == "" {
			cfg.Password = pw
		}
		base.User = nil
	}
	if cfg.Database == "" {
		cfg.Database = DefaultCouchDatabase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCouchTimeout
	}

	s := &CouchStore{
		client:   &http.Client{},
		base:     base,
		db:       cfg.Database,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  cfg.Timeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With().
		Str("component", "couchStore").
		Str("uri", base.String()).
		Str("database", s.db).
		Str("username", s.username).
		Str("password", maskSecret(s.password)).
		Logger()
	return s, nil
}

// couchPost is the stored document shape. The post id is kept twice, as the
// CouchDB _id and as a plain field.
type couchPost struct {
	DocID   string   `json:"_id"`
	Rev     string   `json:"_rev,omitempty"`
	Type    string   `json:"type"`
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Slug    string   `json:"slug"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary,omitempty"`
	Content string   `json:"content"`
}

func toCouchPost(p *models.Post) couchPost {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return couchPost{
		DocID:   p.ID,
		Rev:     p.Revision.String(),
		Type:    models.DocumentType,
		ID:      p.ID,
		Title:   p.Title,
		Slug:    p.Slug,
		Date:    p.Date,
		Tags:    tags,
		Summary: p.Summary,
		Content: p.Content,
	}
}

func (d couchPost) toModel() *models.Post {
	id := d.ID
	if id == "" {
		id = d.DocID
	}
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.Post{
		ID:       id,
		Revision: models.Revision(d.Rev),
		Slug:     d.Slug,
		Title:    d.Title,
		Date:     d.Date,
		Tags:     tags,
		Summary:  d.Summary,
		Content:  d.Content,
	}
}

type couchError struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type couchWriteResult struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

type couchFindResult struct {
	Docs []struct {
		ID   string `json:"_id"`
		Slug string `json:"slug"`
	} `json:"docs"`
	Warning string `json:"warning,omitempty"`
}

type couchViewResult struct {
	TotalRows int64 `json:"total_rows"`
	Offset    int64 `json:"offset"`
	Rows      []struct {
		ID  string     `json:"id"`
		Doc *couchPost `json:"doc"`
	} `json:"rows"`
}

func (s *CouchStore) Get(ctx context.Context, id string) (*models.Post, error) {
	var doc couchPost
	status, err := s.do(ctx, http.MethodGet, s.docPath(id), nil, nil, &doc)
	if err != nil {
		return nil, errs.NewStoreError("get", "post", err)
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errs.NewNotFound("post")
	default:
		return nil, errs.NewStoreError("get", "post", statusError(status))
	}
	if doc.Type != models.DocumentType {
		return nil, errs.NewNotFound("post")
	}
	return doc.toModel(), nil
}

func (s *CouchStore) SlugHolders(ctx context.Context, slug string) ([]models.SlugHolder, error) {
	query := map[string]any{
		"selector": map[string]any{
			"type": models.DocumentType,
			"slug": slug,
		},
		"fields": []string{"_id", "slug"},
		"limit":  slugQueryLimit,
	}

	var found couchFindResult
	status, err := s.do(ctx, http.MethodPost, s.dbPath("_find"), nil, query, &found)
	if err != nil {
		return nil, errs.NewStoreError("query", "slug", err)
	}
	if status != http.StatusOK {
		return nil, errs.NewStoreError("query", "slug", statusError(status))
	}
	if found.Warning != "" {
		s.logger.Debug().Str("warning", found.Warning).Msg("couchdb _find warning")
	}

	holders := make([]models.SlugHolder, 0, len(found.Docs))
	for _, d := range found.Docs {
		holders = append(holders, models.SlugHolder{ID: d.ID, Slug: d.Slug})
	}
	return holders, nil
}

func (s *CouchStore) Put(ctx context.Context, post *models.Post, expected models.Revision) (models.Revision, error) {
	doc := toCouchPost(post)
	doc.Rev = expected.String()

	var res couchWriteResult
	status, err := s.do(ctx, http.MethodPut, s.docPath(post.ID), nil, doc, &res)
	if err != nil {
		return "", errs.NewStoreError("put", "post", err)
	}
	switch status {
	case http.StatusCreated, http.StatusAccepted:
		return models.Revision(res.Rev), nil
	case http.StatusNotFound:
		return "", errs.NewNotFound("post")
	case http.StatusConflict:
		if expected.IsZero() {
			return "", errs.NewRevisionConflictError("post", post.ID)
		}
		// CouchDB answers 409 for a guarded write to a deleted document too.
		return "", s.classifyConflict(ctx, post.ID)
	default:
		return "", errs.NewStoreError("put", "post", statusError(status))
	}
}

func (s *CouchStore) Delete(ctx context.Context, id string, expected models.Revision) error {
	query := url.Values{"rev": {expected.String()}}
	status, err := s.do(ctx, http.MethodDelete, s.docPath(id), query, nil, nil)
	if err != nil {
		return errs.NewStoreError("delete", "post", err)
	}
	switch status {
	case http.StatusOK, http.StatusAccepted:
		return nil
	case http.StatusNotFound:
		return errs.NewNotFound("post")
	case http.StatusConflict:
		return s.classifyConflict(ctx, id)
	default:
		return errs.NewStoreError("delete", "post", statusError(status))
	}
}

// classifyConflict tells a stale revision apart from a document that no
// longer exists.
func (s *CouchStore) classifyConflict(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); errs.IsNotFound(err) {
		return err
	}
	return errs.NewRevisionConflictError("post", id)
}

func (s *CouchStore) List(ctx context.Context, req models.PageRequest) (*models.PagedPosts, error) {
	query := url.Values{
		"include_docs": {"true"},
		"descending":   {"true"},
		"skip":         {strconv.Itoa(req.Page * req.Size)},
		"limit":        {strconv.Itoa(req.Size)},
	}
	view, err := s.queryView(ctx, query)
	if err != nil {
		return nil, err
	}

	posts := make([]models.PostMetadata, 0, len(view.Rows))
	for _, row := range view.Rows {
		if row.Doc == nil {
			continue
		}
		posts = append(posts, row.Doc.toModel().Metadata())
	}
	return models.NewPagedPosts(posts, req, view.TotalRows), nil
}

func (s *CouchStore) ListAll(ctx context.Context) ([]*models.Post, error) {
	query := url.Values{
		"include_docs": {"true"},
		"descending":   {"true"},
	}
	view, err := s.queryView(ctx, query)
	if err != nil {
		return nil, err
	}

	posts := make([]*models.Post, 0, len(view.Rows))
	for _, row := range view.Rows {
		if row.Doc != nil {
			posts = append(posts, row.Doc.toModel())
		}
	}
	return posts, nil
}

func (s *CouchStore) queryView(ctx context.Context, query url.Values) (*couchViewResult, error) {
	var view couchViewResult
	status, err := s.do(ctx, http.MethodGet, s.dbPath(designDocID, "_view", byDateView), query, nil, &view)
	if err != nil {
		return nil, errs.NewStoreError("list", "posts", err)
	}
	if status != http.StatusOK {
		return nil, errs.NewStoreError("list", "posts", statusError(status))
	}
	return &view, nil
}

// EnsureSchema creates the database, the by_date view and the slug index.
// Every step is idempotent.
func (s *CouchStore) EnsureSchema(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodPut, "/"+url.PathEscape(s.db), nil, nil, nil)
	if err != nil {
		return errs.NewStoreError("create", "database", err)
	}
	switch status {
	case http.StatusCreated, http.StatusAccepted:
		s.logger.Info().Msg("created couchdb database")
	case http.StatusPreconditionFailed:
		// already exists
	default:
		return errs.NewStoreError("create", "database", statusError(status))
	}

	status, err = s.do(ctx, http.MethodGet, s.dbPath(designDocID), nil, nil, nil)
	if err != nil {
		return errs.NewStoreError("read", "design document", err)
	}
	if status == http.StatusNotFound {
		design := map[string]any{
			"_id":      designDocID,
			"language": "javascript",
			"views": map[string]any{
				byDateView: map[string]string{
					"map": fmt.Sprintf("function (doc) { if (doc.type === '%s') { emit(doc.date, null); } }", models.DocumentType),
				},
			},
		}
		status, err = s.do(ctx, http.MethodPut, s.dbPath(designDocID), nil, design, nil)
		if err != nil {
			return errs.NewStoreError("create", "design document", err)
		}
		if status != http.StatusCreated && status != http.StatusAccepted && status != http.StatusConflict {
			return errs.NewStoreError("create", "design document", statusError(status))
		}
		s.logger.Info().Str("view", byDateView).Msg("created couchdb design document")
	} else if status != http.StatusOK {
		return errs.NewStoreError("read", "design document", statusError(status))
	}

	index := map[string]any{
		"index": map[string]any{"fields": []string{"type", "slug"}},
		"name":  slugIndexName,
		"type":  "json",
	}
	status, err = s.do(ctx, http.MethodPost, s.dbPath("_index"), nil, index, nil)
	if err != nil {
		return errs.NewStoreError("create", "slug index", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return errs.NewStoreError("create", "slug index", statusError(status))
	}
	return nil
}

func (s *CouchStore) Ping(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, "/"+url.PathEscape(s.db), nil, nil, nil)
	if err != nil {
		return errs.NewStoreError("ping", "database", err)
	}
	if status != http.StatusOK {
		return errs.NewStoreError("ping", "database", statusError(status))
	}
	return nil
}

func (s *CouchStore) dbPath(parts ...string) string {
	return "/" + url.PathEscape(s.db) + "/" + strings.Join(parts, "/")
}

func (s *CouchStore) docPath(id string) string {
	return s.dbPath(url.PathEscape(id))
}

// do sends one request and decodes a 2xx body into out. Non-2xx statuses are
// returned to the caller for classification; only transport and decode
// failures come back as err.
func (s *CouchStore) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := strings.TrimRight(s.base.String(), "/") + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	s.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("couchdb request")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var ce couchError
		if json.Unmarshal(raw, &ce) == nil && ce.Error != "" {
			s.logger.Debug().Str("error", ce.Error).Str("reason", ce.Reason).Int("status", resp.StatusCode).Msg("couchdb error response")
		}
		return resp.StatusCode, nil
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding %s %s response: %w", method, path, err)
		}
	}
	return resp.StatusCode, nil
}

func statusError(status int) error {
	return fmt.Errorf("unexpected couchdb status %d %s", status, http.StatusText(status))
}

func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}
