package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/taohansen/blog-backend/auth"
	"github.com/taohansen/blog-backend/errs"
	"github.com/taohansen/blog-backend/models"
)

const maxPostBodyBytes = 2 << 20

type postService interface {
	Create(ctx context.Context, caller models.Caller, in models.CreatePostInput) (*models.Post, error)
	Update(ctx context.Context, caller models.Caller, id string, in models.UpdatePostInput) (*models.Post, error)
	Delete(ctx context.Context, caller models.Caller, id string, expected models.Revision) error
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, req models.PageRequest) (*models.PagedPosts, error)
	ListAll(ctx context.Context) ([]*models.Post, error)
}

type postHandler struct {
	responder Responder
	logger    zerolog.Logger
	posts     postService
	admins    auth.AdminGate
}

func newPostHandler(posts postService, admins auth.AdminGate) postHandler {
	logger := log.With().Str("handlerName", "postHandler").Logger()

	return postHandler{
		responder: NewResponder(logger),
		logger:    logger,
		posts:     posts,
		admins:    admins,
	}
}

// listPosts returns one page of post metadata, newest first
// @Summary List posts
// @Tags Posts
// @Produce json
// @Param page query int false "Zero-based page" default(0)
// @Param size query int false "Page size (1-50)" default(10)
// @Success 200 {object} models.PagedPosts
// @Failure 400 {object} ErrorResponse
// @Router /api/posts [get]
func (h postHandler) listPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := pageRequest(r)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		page, err := h.posts.List(r.Context(), req)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, page)
	}
}

// @Summary List every post with content
// @Tags Posts
// @Produce json
// @Success 200 {array} models.Post
// @Router /api/posts/all [get]
func (h postHandler) listAllPosts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := h.posts.ListAll(r.Context())
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		h.responder.WriteJSON(w, posts)
	}
}

// getPost looks a post up by slug. The revision is sent as the ETag.
// @Summary Get post by slug
// @Tags Posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.Post
// @Failure 404 {object} ErrorResponse
// @Router /api/posts/{slug} [get]
func (h postHandler) getPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := h.posts.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		setETag(w, post.Revision)
		h.responder.WriteJSON(w, post)
	}
}

// @Summary Create post
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param post body models.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Slug taken"
// @Router /api/posts [post]
func (h postHandler) createPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.CreatePostInput
		if err := decodeBody(w, r, &in); err != nil {
			h.responder.WriteError(w, err)
			return
		}

		post, err := h.posts.Create(r.Context(), h.caller(r), in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}

		w.Header().Set("Location", "/api/posts/"+post.Slug)
		setETag(w, post.Revision)
		h.responder.WriteJSONStatus(w, http.StatusCreated, post)
	}
}

// updatePost replaces a post. An If-Match header pins the revision the
// client last saw; without it the latest revision is used.
// @Summary Update post
// @Tags Posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param If-Match header string false "ETag from a previous read"
// @Success 200 {object} models.Post
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "Revision conflict or slug taken"
// @Router /api/posts/{id} [put]
func (h postHandler) updatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.UpdatePostInput
		if err := decodeBody(w, r, &in.CreatePostInput); err != nil {
			h.responder.WriteError(w, err)
			return
		}
		in.ExpectedRevision = ifMatch(r)

		post, err := h.posts.Update(r.Context(), h.caller(r), chi.URLParam(r, "id"), in)
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		setETag(w, post.Revision)
		h.responder.WriteJSON(w, post)
	}
}

// @Summary Delete post
// @Tags Posts
// @Security BearerAuth
// @Param id path string true "Post ID"
// @Param If-Match header string false "ETag from a previous read"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /api/posts/{id} [delete]
func (h postHandler) deletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.posts.Delete(r.Context(), h.caller(r), chi.URLParam(r, "id"), ifMatch(r))
		if err != nil {
			h.responder.WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h postHandler) caller(r *http.Request) models.Caller {
	return h.admins.Caller(ctxGetClaims(r.Context()))
}

func pageRequest(r *http.Request) (models.PageRequest, error) {
	req := models.PageRequest{Page: 0, Size: models.DefaultPageSize}
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return req, errs.NewValidationError("page", "must be an integer")
		}
		req.Page = page
	}
	if raw := q.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return req, errs.NewValidationError("size", "must be an integer")
		}
		req.Size = size
	}
	return req, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxPostBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.NewMalformedPayloadError("post", err)
	}
	return nil
}

func setETag(w http.ResponseWriter, rev models.Revision) {
	if !rev.IsZero() {
		w.Header().Set("ETag", strconv.Quote(rev.String()))
	}
}

// ifMatch reads a single entity tag. "*" and an absent header both mean
// "whatever is current".
func ifMatch(r *http.Request) models.Revision {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	raw = strings.TrimPrefix(raw, "W/")
	if raw == "" || raw == "*" {
		return ""
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	return models.Revision(raw)
}
