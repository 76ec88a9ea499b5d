package handlers

import (
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CommentHandler handles comments on posts
type CommentHandler struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	audit       auditor
	limits      *ActionLimits
}

// NewCommentHandler creates a new comment handler
func NewCommentHandler(postRepo repository.PostRepository, commentRepo repository.CommentRepository, auditRepo repository.AuditLogRepository, limits *ActionLimits) *CommentHandler {
	return &CommentHandler{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		audit:       auditor{repo: auditRepo},
		limits:      limits,
	}
}

// ListComments godoc
// @Summary List comments
// @Description Get the comments of a post, oldest first
// @Tags comments
// @Produce json
// @Param id path string true "Post ID or slug"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} models.ListResponse[models.Comment]
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /posts/{id}/comments [get]
func (h *CommentHandler) ListComments(c *gin.Context) {
	post, ok := loadVisiblePost(c, h.postRepo)
	if !ok {
		return
	}
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}

	comments, total, err := h.commentRepo.ListByPost(c.Request.Context(), post.ID, limit, offset)
	if err != nil {
		internalError(c, "list comments", err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse[models.Comment]{
		Items:  comments,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// CreateComment godoc
// @Summary Comment on a post
// @Description Add a comment to a published post
// @Tags comments
// @Accept json
// @Produce json
// @Param id path string true "Post ID or slug"
// @Param request body models.CreateCommentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse "Invalid request or post not published"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 404 {object} models.ErrorResponse "Post not found"
// @Failure 429 {object} models.ErrorResponse "Rate limit exceeded"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /posts/{id}/comments [post]
func (h *CommentHandler) CreateComment(c *gin.Context) {
	var req models.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	user := auth.GetUserFromContext(c)
	if !h.limits.allow(c, ratelimit.ActionComment, user.ID.String()) {
		return
	}

	post, ok := loadVisiblePost(c, h.postRepo)
	if !ok {
		return
	}
	if post.Status != models.PostStatusPublished {
		badRequest(c, "comments are only allowed on published posts")
		return
	}

	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: user.ID,
		Content:  strings.TrimSpace(req.Content),
	}
	if err := h.commentRepo.Create(c.Request.Context(), comment); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			notFound(c, "post not found")
			return
		}
		internalError(c, "create comment", err)
		return
	}
	summary := user.Summary()
	comment.Author = &summary

	h.audit.record(c, &user.ID, models.AuditActionCreate, "comment", comment.ID.String(), "Comment created", map[string]any{"post_id": post.ID})
	c.JSON(http.StatusCreated, comment)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Description Delete a comment. Allowed for the comment author, the post author and admins.
// @Tags comments
// @Param id path string true "Comment ID"
// @Success 204 "No Content"
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Comment not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /comments/{id} [delete]
func (h *CommentHandler) DeleteComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	comment, err := h.commentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			notFound(c, "comment not found")
			return
		}
		internalError(c, "get comment", err)
		return
	}

	user := auth.GetUserFromContext(c)
	allowed := user.ID == comment.AuthorID || user.IsAdmin()
	if !allowed {
		post, err := h.postRepo.GetByID(ctx, comment.PostID)
		if err != nil && !errors.Is(err, repository.ErrPostNotFound) {
			internalError(c, "get post", err)
			return
		}
		allowed = err == nil && post.AuthorID == user.ID
	}
	if !allowed {
		forbidden(c, "not allowed to delete this comment")
		return
	}

	if err := h.commentRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrCommentNotFound) {
			notFound(c, "comment not found")
			return
		}
		internalError(c, "delete comment", err)
		return
	}

	h.audit.record(c, &user.ID, models.AuditActionDelete, "comment", id.String(), "Comment deleted", map[string]any{"post_id": comment.PostID})
	c.Status(http.StatusNoContent)
}
