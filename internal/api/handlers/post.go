package handlers

import (
	"context"
	"errors"
	"fmt"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/xid"
)

const (
	excerptLength = 200
	slugAttempts  = 10
)

// PostHandler handles posts and their moderation
type PostHandler struct {
	postRepo repository.PostRepository
	audit    auditor
	now      func() time.Time
}

// NewPostHandler creates a new post handler
func NewPostHandler(postRepo repository.PostRepository, auditRepo repository.AuditLogRepository) *PostHandler {
	return &PostHandler{
		postRepo: postRepo,
		audit:    auditor{repo: auditRepo},
		now:      time.Now,
	}
}

// slugify lowercases title and joins its alphanumeric runs with hyphens
func slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pendingHyphen = false
			continue
		}
		pendingHyphen = true
	}
	slug := b.String()
	if len(slug) > 80 {
		slug = strings.TrimRight(slug[:80], "-")
	}
	if slug == "" {
		return "post"
	}
	return slug
}

// uniqueSlug returns the first free slug among base, base-2, base-3 and so on,
// falling back to a random suffix
func (h *PostHandler) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slugify(title)
	candidate := base
	for n := 2; n <= slugAttempts+1; n++ {
		exists, err := h.postRepo.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return base + "-" + xid.New().String(), nil
}

func excerptFrom(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= excerptLength {
		return content
	}
	return strings.TrimSpace(string(runes[:excerptLength])) + "..."
}

func canView(user *models.User, post *models.Post) bool {
	if post.Status == models.PostStatusPublished {
		return true
	}
	return user != nil && (user.ID == post.AuthorID || user.IsAdmin())
}

func canEdit(user *models.User, post *models.Post) bool {
	return user.ID == post.AuthorID || user.IsAdmin()
}

// publish moves post out of DRAFT or REJECTED. Admin submissions skip review.
func (h *PostHandler) publish(user *models.User, post *models.Post) {
	post.ModerationNote = nil
	if user.IsAdmin() {
		now := h.now()
		post.Status = models.PostStatusPublished
		post.PublishedAt = &now
		return
	}
	post.Status = models.PostStatusPending
	post.PublishedAt = nil
}

// findPost resolves the id path parameter as a UUID or a slug. A UUID-shaped
// ref that names no post is retried as a slug.
func findPost(ctx context.Context, repo repository.PostRepository, ref string) (*models.Post, error) {
	if id, err := uuid.Parse(ref); err == nil {
		post, err := repo.GetByID(ctx, id)
		if !errors.Is(err, repository.ErrPostNotFound) {
			return post, err
		}
	}
	return repo.GetBySlug(ctx, ref)
}

// loadVisiblePost answers 404 unless the caller may see the post
func loadVisiblePost(c *gin.Context, repo repository.PostRepository) (*models.Post, bool) {
	post, err := findPost(c.Request.Context(), repo, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			notFound(c, "post not found")
			return nil, false
		}
		internalError(c, "get post", err)
		return nil, false
	}
	if !canView(auth.GetUserFromContext(c), post) {
		notFound(c, "post not found")
		return nil, false
	}
	return post, true
}

// loadEditablePost answers 404 or 403 unless the caller may change the post
func (h *PostHandler) loadEditablePost(c *gin.Context) (*models.Post, bool) {
	post, ok := loadVisiblePost(c, h.postRepo)
	if !ok {
		return nil, false
	}
	if !canEdit(auth.GetUserFromContext(c), post) {
		forbidden(c, "not allowed to modify this post")
		return nil, false
	}
	return post, true
}

func (h *PostHandler) list(c *gin.Context, filter repository.PostFilter) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter.Limit = &limit
	filter.Offset = &offset
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.Search = &search
	}

	posts, total, err := h.postRepo.List(c.Request.Context(), filter)
	if err != nil {
		internalError(c, "list posts", err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse[models.Post]{
		Items:  posts,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// statusQuery reads an optional status filter
func statusQuery(c *gin.Context) (*models.PostStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.PostStatus(strings.ToUpper(raw))
	if !status.Valid() {
		badRequest(c, "invalid status")
		return nil, false
	}
	return &status, true
}

// ListPosts godoc
// @Summary List published posts
// @Description Get published posts, newest first
// @Tags posts
// @Produce json
// @Param search query string false "Search in title and excerpt"
// @Param author query string false "Author ID"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} models.ListResponse[models.Post]
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /posts [get]
func (h *PostHandler) ListPosts(c *gin.Context) {
	status := models.PostStatusPublished
	filter := repository.PostFilter{Status: &status}

	if author := c.Query("author"); author != "" {
		id, err := uuid.Parse(author)
		if err != nil {
			badRequest(c, "invalid author")
			return
		}
		filter.AuthorID = &id
	}

	h.list(c, filter)
}

// GetPost godoc
// @Summary Get a post
// @Description Get a post by ID or slug. Unpublished posts are only visible to their author and admins.
// @Tags posts
// @Produce json
// @Param id path string true "Post ID or slug"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /posts/{id} [get]
func (h *PostHandler) GetPost(c *gin.Context) {
	post, ok := loadVisiblePost(c, h.postRepo)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, post)
}

// CreatePost godoc
// @Summary Write a post
// @Description Save a draft, or submit it with `submit`. Submissions by admins are published immediately.
// @Tags posts
// @Accept json
// @Produce json
// @Param request body models.CreatePostRequest true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /posts [post]
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	user := auth.GetUserFromContext(c)
	ctx := c.Request.Context()

	slug, err := h.uniqueSlug(ctx, req.Title)
	if err != nil {
		internalError(c, "create slug", err)
		return
	}

	post := &models.Post{
		AuthorID: user.ID,
		Title:    strings.TrimSpace(req.Title),
		Slug:     slug,
		Excerpt:  strings.TrimSpace(req.Excerpt),
		Content:  req.Content,
		Status:   models.PostStatusDraft,
	}
	if post.Excerpt == "" {
		post.Excerpt = excerptFrom(req.Content)
	}
	if req.Submit {
		h.publish(user, post)
	}

	if err := h.postRepo.Create(ctx, post); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "slug already exists"})
			return
		}
		internalError(c, "create post", err)
		return
	}
	summary := user.Summary()
	post.Author = &summary

	h.audit.record(c, &user.ID, models.AuditActionCreate, "post", post.ID.String(), "Post created", map[string]any{"status": post.Status})
	c.JSON(http.StatusCreated, post)
}

// UpdatePost godoc
// @Summary Update a post
// @Description Edit a post. When its author is not an admin, editing a published post sends it back to review.
// @Tags posts
// @Accept json
// @Produce json
// @Param id path string true "Post ID or slug"
// @Param request body models.UpdatePostRequest true "Fields to change"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Not the author"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /posts/{id} [put]
func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req models.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	post, ok := h.loadEditablePost(c)
	if !ok {
		return
	}
	user := auth.GetUserFromContext(c)

	if req.Title != nil {
		post.Title = strings.TrimSpace(*req.Title)
	}
	if req.Excerpt != nil {
		post.Excerpt = strings.TrimSpace(*req.Excerpt)
	}
	if req.Content != nil {
		post.Content = *req.Content
	}
	if post.Excerpt == "" {
		post.Excerpt = excerptFrom(post.Content)
	}
	if post.Status == models.PostStatusPublished && !user.IsAdmin() {
		post.Status = models.PostStatusPending
		post.PublishedAt = nil
	}

	if err := h.postRepo.Update(c.Request.Context(), post); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			notFound(c, "post not found")
			return
		}
		internalError(c, "update post", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionUpdate, "post", post.ID.String(), "Post updated", map[string]any{"status": post.Status})
	c.JSON(http.StatusOK, post)
}

// DeletePost godoc
// @Summary Delete a post
// @Description Delete a post and its comments. Allowed for the author and admins.
// @Tags posts
// @Param id path string true "Post ID or slug"
// @Success 204 "No Content"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Not the author"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /posts/{id} [delete]
func (h *PostHandler) DeletePost(c *gin.Context) {
	post, ok := h.loadEditablePost(c)
	if !ok {
		return
	}
	user := auth.GetUserFromContext(c)

	if err := h.postRepo.Delete(c.Request.Context(), post.ID); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			notFound(c, "post not found")
			return
		}
		internalError(c, "delete post", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionDelete, "post", post.ID.String(), "Post deleted", map[string]any{"title": post.Title})
	c.Status(http.StatusNoContent)
}

// SubmitPost godoc
// @Summary Submit a post
// @Description Send a draft or rejected post to review. Admin posts are published immediately.
// @Tags posts
// @Produce json
// @Param id path string true "Post ID or slug"
// @Success 200 {object} models.Post
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Not the author"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 409 {object} models.ErrorResponse "Post already submitted"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /posts/{id}/submit [post]
func (h *PostHandler) SubmitPost(c *gin.Context) {
	post, ok := loadVisiblePost(c, h.postRepo)
	if !ok {
		return
	}
	user := auth.GetUserFromContext(c)
	if post.AuthorID != user.ID {
		forbidden(c, "only the author can submit a post")
		return
	}
	if post.Status != models.PostStatusDraft && post.Status != models.PostStatusRejected {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "post already submitted"})
		return
	}

	h.publish(user, post)
	if err := h.postRepo.Update(c.Request.Context(), post); err != nil {
		internalError(c, "submit post", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionUpdate, "post", post.ID.String(), "Post submitted", map[string]any{"status": post.Status})
	c.JSON(http.StatusOK, post)
}

// ListMyPosts godoc
// @Summary List own posts
// @Description Get the caller's posts in every status
// @Tags posts
// @Produce json
// @Param status query string false "Status" Enums(DRAFT, PENDING, PUBLISHED, REJECTED)
// @Param search query string false "Search in title and excerpt"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} models.ListResponse[models.Post]
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /users/me/posts [get]
func (h *PostHandler) ListMyPosts(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	user := auth.GetUserFromContext(c)
	h.list(c, repository.PostFilter{AuthorID: &user.ID, Status: status})
}

// ListForReview godoc
// @Summary List posts for moderation
// @Description Get posts of every author, optionally filtered by status
// @Tags admin
// @Produce json
// @Param status query string false "Status" Enums(DRAFT, PENDING, PUBLISHED, REJECTED)
// @Param search query string false "Search in title and excerpt"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} models.ListResponse[models.Post]
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/posts [get]
func (h *PostHandler) ListForReview(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	h.list(c, repository.PostFilter{Status: status})
}

// moderate loads a pending post for approve and reject
func (h *PostHandler) moderate(c *gin.Context) (*models.Post, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	post, err := h.postRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			notFound(c, "post not found")
			return nil, false
		}
		internalError(c, "get post", err)
		return nil, false
	}
	if post.Status != models.PostStatusPending {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "post is not pending review"})
		return nil, false
	}
	return post, true
}

// ApprovePost godoc
// @Summary Approve a post
// @Description Publish a pending post
// @Tags admin
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 409 {object} models.ErrorResponse "Post is not pending"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/posts/{id}/approve [post]
func (h *PostHandler) ApprovePost(c *gin.Context) {
	post, ok := h.moderate(c)
	if !ok {
		return
	}

	now := h.now()
	post.Status = models.PostStatusPublished
	post.PublishedAt = &now
	post.ModerationNote = nil
	if err := h.postRepo.Update(c.Request.Context(), post); err != nil {
		internalError(c, "approve post", err)
		return
	}

	moderator := auth.GetUserFromContext(c)
	h.audit.record(c, &moderator.ID, models.AuditActionApprove, "post", post.ID.String(), "Post approved", nil)
	c.JSON(http.StatusOK, post)
}

// RejectPost godoc
// @Summary Reject a post
// @Description Send a pending post back to its author with a note
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Post ID"
// @Param request body models.RejectPostRequest true "Moderation note"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 409 {object} models.ErrorResponse "Post is not pending"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/posts/{id}/reject [post]
func (h *PostHandler) RejectPost(c *gin.Context) {
	var req models.RejectPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	post, ok := h.moderate(c)
	if !ok {
		return
	}

	note := strings.TrimSpace(req.Note)
	post.Status = models.PostStatusRejected
	post.ModerationNote = &note
	if err := h.postRepo.Update(c.Request.Context(), post); err != nil {
		internalError(c, "reject post", err)
		return
	}

	moderator := auth.GetUserFromContext(c)
	h.audit.record(c, &moderator.ID, models.AuditActionReject, "post", post.ID.String(), "Post rejected", map[string]any{"note": note})
	c.JSON(http.StatusOK, post)
}
