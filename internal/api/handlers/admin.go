package handlers

import (
	"context"
	"errors"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/scheduler"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dashboardLatest = 5

var userOrderFields = []string{"name", "email", "created_at", "last_login_at"}

// JobRunner runs housekeeping jobs on demand
type JobRunner interface {
	Jobs() []string
	RunJob(ctx context.Context, name string) error
}

// AdminHandler handles user administration, the dashboard and audit logs
type AdminHandler struct {
	userRepo    repository.UserRepository
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	auditRepo   repository.AuditLogRepository
	audit       auditor
	jobs        JobRunner
}

// NewAdminHandler creates a new admin handler. jobs may be nil when the scheduler is disabled.
func NewAdminHandler(
	userRepo repository.UserRepository,
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	auditRepo repository.AuditLogRepository,
	jobs JobRunner,
) *AdminHandler {
	return &AdminHandler{
		userRepo:    userRepo,
		postRepo:    postRepo,
		commentRepo: commentRepo,
		auditRepo:   auditRepo,
		audit:       auditor{repo: auditRepo},
		jobs:        jobs,
	}
}

// Dashboard godoc
// @Summary Admin dashboard
// @Description Get counts of users by role, posts by status and comments, with the latest users and posts
// @Tags admin
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/dashboard [get]
func (h *AdminHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()

	usersByRole, err := h.userRepo.CountByRole(ctx)
	if err != nil {
		internalError(c, "count users", err)
		return
	}
	postsByStatus, err := h.postRepo.CountByStatus(ctx)
	if err != nil {
		internalError(c, "count posts", err)
		return
	}
	totalComments, err := h.commentRepo.Count(ctx)
	if err != nil {
		internalError(c, "count comments", err)
		return
	}

	limit := dashboardLatest
	latestUsers, totalUsers, err := h.userRepo.List(ctx, repository.UserFilter{OrderBy: "created_at", OrderDesc: true, Limit: &limit})
	if err != nil {
		internalError(c, "list users", err)
		return
	}
	latestPosts, totalPosts, err := h.postRepo.List(ctx, repository.PostFilter{Limit: &limit})
	if err != nil {
		internalError(c, "list posts", err)
		return
	}

	c.JSON(http.StatusOK, models.DashboardStats{
		UsersByRole:    usersByRole,
		PostsByStatus:  postsByStatus,
		TotalUsers:     totalUsers,
		TotalPosts:     totalPosts,
		TotalComments:  totalComments,
		LatestUsers:    latestUsers,
		LatestPosts:    latestPosts,
		PendingReviews: postsByStatus[models.PostStatusPending],
	})
}

// ListUsers godoc
// @Summary List users
// @Description Get users with optional search, role filter and ordering
// @Tags admin
// @Produce json
// @Param search query string false "Search in name and email"
// @Param role query string false "Role" Enums(USER, ADMIN, SUPERADMIN)
// @Param order_by query string false "Order by" Enums(name, email, created_at, last_login_at)
// @Param order_desc query bool false "Descending order"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} models.ListResponse[models.User]
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter := repository.UserFilter{Limit: &limit, Offset: &offset}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.Search = &search
	}
	if raw := c.Query("role"); raw != "" {
		role := models.Role(strings.ToUpper(raw))
		if !role.Valid() {
			badRequest(c, "invalid role")
			return
		}
		filter.Role = &role
	}
	if orderBy := c.Query("order_by"); orderBy != "" {
		if !slices.Contains(userOrderFields, orderBy) {
			badRequest(c, "invalid order_by")
			return
		}
		filter.OrderBy = orderBy
	}
	if orderDesc := c.Query("order_desc"); orderDesc != "" {
		desc, err := strconv.ParseBool(orderDesc)
		if err != nil {
			badRequest(c, "invalid order_desc")
			return
		}
		filter.OrderDesc = desc
	}

	users, total, err := h.userRepo.List(c.Request.Context(), filter)
	if err != nil {
		internalError(c, "list users", err)
		return
	}

	c.JSON(http.StatusOK, models.ListResponse[models.User]{
		Items:  users,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// roleChangeError returns the reason actor may not give target the role, or ""
func roleChangeError(actor, target *models.User, role models.Role) string {
	switch {
	case actor.ID == target.ID:
		return "cannot change your own role"
	case target.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin:
		return "only a superadmin can change a superadmin"
	case role.IsAdmin() && actor.Role != models.RoleSuperAdmin:
		return "only a superadmin can grant admin roles"
	}
	return ""
}

func (h *AdminHandler) loadTarget(c *gin.Context) (*models.User, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	user, err := h.userRepo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			notFound(c, "user not found")
			return nil, false
		}
		internalError(c, "get user", err)
		return nil, false
	}
	return user, true
}

// UpdateRole godoc
// @Summary Change a user's role
// @Description Only a superadmin grants ADMIN or SUPERADMIN or changes a superadmin. Nobody changes their own role.
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body models.UpdateRoleRequest true "New role"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse "Invalid request"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/users/{id}/role [put]
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindingError(c, err)
		return
	}

	target, ok := h.loadTarget(c)
	if !ok {
		return
	}
	actor := auth.GetUserFromContext(c)
	if reason := roleChangeError(actor, target, req.Role); reason != "" {
		forbidden(c, reason)
		return
	}

	if err := h.userRepo.UpdateRole(c.Request.Context(), target.ID, req.Role); err != nil {
		internalError(c, "update role", err)
		return
	}

	h.audit.record(c, &actor.ID, models.AuditActionRole, "user", target.ID.String(), "Role changed", map[string]any{
		"from": target.Role,
		"to":   req.Role,
	})
	target.Role = req.Role
	c.JSON(http.StatusOK, target)
}

// DeleteUser godoc
// @Summary Delete a user
// @Description Admins delete USER accounts; a superadmin deletes any account but their own
// @Tags admin
// @Param id path string true "User ID"
// @Success 204 "No Content"
// @Failure 400 {object} models.ErrorResponse "Invalid ID"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "User not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	target, ok := h.loadTarget(c)
	if !ok {
		return
	}
	actor := auth.GetUserFromContext(c)

	switch {
	case actor.ID == target.ID:
		forbidden(c, "cannot delete your own account here")
		return
	case actor.Role != models.RoleSuperAdmin && target.Role != models.RoleUser:
		forbidden(c, "only a superadmin can delete admins")
		return
	}

	if err := h.userRepo.Delete(c.Request.Context(), target.ID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			notFound(c, "user not found")
			return
		}
		internalError(c, "delete user", err)
		return
	}

	h.audit.record(c, &actor.ID, models.AuditActionDelete, "user", target.ID.String(), "User deleted", map[string]any{"email": target.Email})
	c.Status(http.StatusNoContent)
}

// ListAuditLogs godoc
// @Summary List audit logs
// @Description Get audit log entries, newest first
// @Tags admin
// @Produce json
// @Param user_id query string false "User ID"
// @Param action query string false "Comma separated actions"
// @Param entity_type query string false "Comma separated entity types"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} models.AuditLog
// @Failure 400 {object} models.ErrorResponse "Invalid query"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/audit-logs [get]
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter := repository.AuditLogFilter{OrderDesc: true, Limit: &limit, Offset: &offset}

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid user_id")
			return
		}
		filter.UserID = &id
	}
	for _, action := range splitList(c.Query("action")) {
		filter.Actions = append(filter.Actions, models.AuditAction(action))
	}
	filter.EntityTypes = splitList(c.Query("entity_type"))
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(c, "invalid since")
			return
		}
		filter.CreatedAfter = &since
	}

	logs, err := h.auditRepo.List(c.Request.Context(), filter)
	if err != nil {
		internalError(c, "list audit logs", err)
		return
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}

	c.JSON(http.StatusOK, logs)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ListJobs godoc
// @Summary List housekeeping jobs
// @Tags admin
// @Produce json
// @Success 200 {array} string
// @Security BearerAuth
// @Router /admin/jobs [get]
func (h *AdminHandler) ListJobs(c *gin.Context) {
	jobs := []string{}
	if h.jobs != nil {
		jobs = h.jobs.Jobs()
	}
	c.JSON(http.StatusOK, jobs)
}

// RunJob godoc
// @Summary Run a housekeeping job
// @Description Run a scheduled job immediately
// @Tags admin
// @Produce json
// @Param name path string true "Job name"
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Failure 403 {object} models.ErrorResponse "Forbidden"
// @Failure 404 {object} models.ErrorResponse "Job not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /admin/jobs/{name}/run [post]
func (h *AdminHandler) RunJob(c *gin.Context) {
	if h.jobs == nil {
		notFound(c, "job not found")
		return
	}

	name := c.Param("name")
	if err := h.jobs.RunJob(c.Request.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			notFound(c, "job not found")
			return
		}
		internalError(c, "run job "+name, err)
		return
	}

	actor := auth.GetUserFromContext(c)
	h.audit.record(c, &actor.ID, models.AuditActionUpdate, "job", name, "Job run manually", nil)
	c.JSON(http.StatusOK, models.SuccessResponse{Message: "job completed"})
}
