package handlers_test

import (
	"context"
	"errors"
	"inkwell/internal/models"
	"inkwell/internal/scheduler"
	"inkwell/internal/testutil"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roleTest struct {
	name       string
	actorRole  models.Role
	targetRole models.Role
	self       bool
	newRole    models.Role
	wantStatus int
	errMsg     string
}

func TestAdminHandler_UpdateRole(t *testing.T) {
	tests := []roleTest{
		{
			name:       "Superadmin Promotes User",
			actorRole:  models.RoleSuperAdmin,
			targetRole: models.RoleUser,
			newRole:    models.RoleAdmin,
			wantStatus: http.StatusOK,
		},
		{
			name:       "Superadmin Demotes Superadmin",
			actorRole:  models.RoleSuperAdmin,
			targetRole: models.RoleSuperAdmin,
			newRole:    models.RoleUser,
			wantStatus: http.StatusOK,
		},
		{
			name:       "Admin Demotes Admin",
			actorRole:  models.RoleAdmin,
			targetRole: models.RoleAdmin,
			newRole:    models.RoleUser,
			wantStatus: http.StatusOK,
		},
		{
			name:       "Admin Cannot Grant Admin",
			actorRole:  models.RoleAdmin,
			targetRole: models.RoleUser,
			newRole:    models.RoleAdmin,
			wantStatus: http.StatusForbidden,
			errMsg:     "only a superadmin can grant admin roles",
		},
		{
			name:       "Admin Cannot Touch Superadmin",
			actorRole:  models.RoleAdmin,
			targetRole: models.RoleSuperAdmin,
			newRole:    models.RoleUser,
			wantStatus: http.StatusForbidden,
			errMsg:     "only a superadmin can change a superadmin",
		},
		{
			name:       "Cannot Change Own Role",
			actorRole:  models.RoleSuperAdmin,
			self:       true,
			newRole:    models.RoleUser,
			wantStatus: http.StatusForbidden,
			errMsg:     "cannot change your own role",
		},
		{
			name:       "User Is Not Admin",
			actorRole:  models.RoleUser,
			targetRole: models.RoleUser,
			newRole:    models.RoleAdmin,
			wantStatus: http.StatusForbidden,
			errMsg:     "insufficient permissions",
		},
		{
			name:       "Unknown Role",
			actorRole:  models.RoleSuperAdmin,
			targetRole: models.RoleUser,
			newRole:    models.Role("OWNER"),
			wantStatus: http.StatusBadRequest,
			errMsg:     "role: Unknown role",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			actor := tc.CreateTestUser("Actor", "actor@example.com", "actorpassword1", tt.actorRole)
			target := actor
			if !tt.self {
				target = tc.CreateTestUser("Target", "target@example.com", "targetpassword1", tt.targetRole)
			}

			w := testutil.Request(t, tc.Router(), http.MethodPut, "/api/v1/admin/users/"+target.ID.String()+"/role",
				models.UpdateRoleRequest{Role: tt.newRole}, tc.GetTestJWT(actor.ID))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			stored, err := tc.Repos.Users.GetByID(context.Background(), target.ID)
			require.NoError(t, err)

			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.errMsg, testutil.Decode[models.ErrorResponse](t, w).Error)
				assert.Equal(t, target.Role, stored.Role)
				return
			}

			assert.Equal(t, tt.newRole, testutil.Decode[models.User](t, w).Role)
			assert.Equal(t, tt.newRole, stored.Role)

			logs, err := tc.Repos.AuditLogs.List(context.Background(), actionFilter(models.AuditActionRole))
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Contains(t, logs[0].Metadata, string(tt.newRole))
		})
	}
}

func TestAdminHandler_DeleteUser(t *testing.T) {
	tests := []struct {
		name       string
		actorRole  models.Role
		targetRole models.Role
		self       bool
		wantStatus int
	}{
		{name: "Admin Deletes User", actorRole: models.RoleAdmin, targetRole: models.RoleUser, wantStatus: http.StatusNoContent},
		{name: "Admin Cannot Delete Admin", actorRole: models.RoleAdmin, targetRole: models.RoleAdmin, wantStatus: http.StatusForbidden},
		{name: "Superadmin Deletes Admin", actorRole: models.RoleSuperAdmin, targetRole: models.RoleAdmin, wantStatus: http.StatusNoContent},
		{name: "Cannot Delete Self", actorRole: models.RoleSuperAdmin, self: true, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			actor := tc.CreateTestUser("Actor", "actor@example.com", "actorpassword1", tt.actorRole)
			target := actor
			if !tt.self {
				target = tc.CreateTestUser("Target", "target@example.com", "targetpassword1", tt.targetRole)
			}

			w := testutil.Request(t, tc.Router(), http.MethodDelete, "/api/v1/admin/users/"+target.ID.String(), nil, tc.GetTestJWT(actor.ID))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			_, err := tc.Repos.Users.GetByID(context.Background(), target.ID)
			assert.Equal(t, tt.wantStatus == http.StatusNoContent, err != nil)
		})
	}
}

func TestAdminHandler_DeleteUnknownUser(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("Root", "root@example.com", "rootpassword1", models.RoleSuperAdmin)

	w := testutil.Request(t, tc.Router(), http.MethodDelete, "/api/v1/admin/users/"+uuid.NewString(), nil, tc.GetTestJWT(admin.ID))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminHandler_ListUsers(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("Root", "root@example.com", "rootpassword1", models.RoleSuperAdmin)
	tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
	tc.CreateTestUser("Grace", "grace@example.com", "cobol19591959", models.RoleAdmin)
	router := tc.Router()
	token := tc.GetTestJWT(admin.ID)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantTotal  int
		wantFirst  string
	}{
		{name: "All", query: "", wantStatus: http.StatusOK, wantTotal: 3},
		{name: "Search", query: "?search=grace", wantStatus: http.StatusOK, wantTotal: 1, wantFirst: "Grace"},
		{name: "By Role", query: "?role=user", wantStatus: http.StatusOK, wantTotal: 1, wantFirst: "Ada"},
		{name: "Ordered", query: "?order_by=name&order_desc=true", wantStatus: http.StatusOK, wantTotal: 3, wantFirst: "Root"},
		{name: "Invalid Role", query: "?role=owner", wantStatus: http.StatusBadRequest},
		{name: "Invalid Order", query: "?order_by=password", wantStatus: http.StatusBadRequest},
		{name: "Invalid Direction", query: "?order_desc=sideways", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Request(t, router, http.MethodGet, "/api/v1/admin/users"+tt.query, nil, token)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := testutil.Decode[models.ListResponse[models.User]](t, w)
			assert.Equal(t, tt.wantTotal, resp.Total)
			if tt.wantFirst != "" {
				require.NotEmpty(t, resp.Items)
				assert.Equal(t, tt.wantFirst, resp.Items[0].Name)
			}
		})
	}
}

func TestAdminHandler_Dashboard(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("Root", "root@example.com", "rootpassword1", models.RoleAdmin)
	author := tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
	published := tc.CreateTestPost(author, "Live", models.PostStatusPublished)
	tc.CreateTestPost(author, "Queued", models.PostStatusPending)
	tc.CreateTestPost(author, "Queued Too", models.PostStatusPending)
	require.NoError(t, tc.Repos.Comments.Create(context.Background(), &models.Comment{
		PostID: published.ID, AuthorID: admin.ID, Content: "Nice",
	}))

	w := testutil.Request(t, tc.Router(), http.MethodGet, "/api/v1/admin/dashboard", nil, tc.GetTestJWT(admin.ID))
	require.Equal(t, http.StatusOK, w.Code)

	stats := testutil.Decode[models.DashboardStats](t, w)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 3, stats.TotalPosts)
	assert.Equal(t, 1, stats.TotalComments)
	assert.Equal(t, 2, stats.PendingReviews)
	assert.Equal(t, 1, stats.UsersByRole[models.RoleAdmin])
	assert.Equal(t, 1, stats.PostsByStatus[models.PostStatusPublished])
	assert.Len(t, stats.LatestUsers, 2)
	assert.Len(t, stats.LatestPosts, 3)
}

func TestAdminHandler_ListAuditLogs(t *testing.T) {
	tc := testutil.NewTestContext(t)
	admin := tc.CreateTestUser("Root", "root@example.com", "rootpassword1", models.RoleSuperAdmin)
	tc.CreateTestUser("Ada", "ada@example.com", "analytical1843", models.RoleUser)
	router := tc.Router()

	for i := 0; i < 2; i++ {
		w := testutil.Request(t, router, http.MethodPost, "/api/v1/auth/login",
			models.LoginRequest{Email: "ada@example.com", Password: "analytical1843"}, "")
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := testutil.Request(t, router, http.MethodPost, "/api/v1/auth/register",
		models.RegisterRequest{Name: "Grace", Email: "grace@example.com", Password: "cobol19591959"}, "")
	require.Equal(t, http.StatusCreated, w.Code)

	token := tc.GetTestJWT(admin.ID)
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{name: "All", query: "", wantStatus: http.StatusOK, wantCount: 3},
		{name: "By Action", query: "?action=login", wantStatus: http.StatusOK, wantCount: 2},
		{name: "Several Actions", query: "?action=login,register", wantStatus: http.StatusOK, wantCount: 3},
		{name: "By Entity", query: "?entity_type=post", wantStatus: http.StatusOK, wantCount: 0},
		{name: "Since The Future", query: "?since=" + time.Now().Add(time.Hour).UTC().Format(time.RFC3339), wantStatus: http.StatusOK, wantCount: 0},
		{name: "Paged", query: "?limit=1", wantStatus: http.StatusOK, wantCount: 1},
		{name: "Invalid Since", query: "?since=yesterday", wantStatus: http.StatusBadRequest},
		{name: "Invalid User", query: "?user_id=ada", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := testutil.Request(t, router, http.MethodGet, "/api/v1/admin/audit-logs"+tt.query, nil, token)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Len(t, testutil.Decode[[]models.AuditLog](t, w), tt.wantCount)
		})
	}
}

type stubJobs struct {
	ran []string
	err error
}

func (s *stubJobs) Jobs() []string {
	return []string{"cleanup-tokens", "cleanup-audit-logs"}
}

func (s *stubJobs) RunJob(ctx context.Context, name string) error {
	if name != "cleanup-tokens" && name != "cleanup-audit-logs" {
		return scheduler.ErrJobNotFound
	}
	s.ran = append(s.ran, name)
	return s.err
}

func TestAdminHandler_Jobs(t *testing.T) {
	tests := []struct {
		name       string
		role       models.Role
		job        string
		jobErr     error
		wantStatus int
	}{
		{name: "Superadmin Runs Job", role: models.RoleSuperAdmin, job: "cleanup-tokens", wantStatus: http.StatusOK},
		{name: "Unknown Job", role: models.RoleSuperAdmin, job: "mine-bitcoin", wantStatus: http.StatusNotFound},
		{name: "Job Fails", role: models.RoleSuperAdmin, job: "cleanup-tokens", jobErr: errors.New("database gone"), wantStatus: http.StatusInternalServerError},
		{name: "Admin Cannot Run Jobs", role: models.RoleAdmin, job: "cleanup-tokens", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := testutil.NewTestContext(t)
			jobs := &stubJobs{err: tt.jobErr}
			tc.Jobs = jobs
			actor := tc.CreateTestUser("Root", "root@example.com", "rootpassword1", tt.role)
			router := tc.Router()
			token := tc.GetTestJWT(actor.ID)

			w := testutil.Request(t, router, http.MethodGet, "/api/v1/admin/jobs", nil, token)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, jobs.Jobs(), testutil.Decode[[]string](t, w))

			w = testutil.Request(t, router, http.MethodPost, "/api/v1/admin/jobs/"+tt.job+"/run", nil, token)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, []string{tt.job}, jobs.ran)
			}
		})
	}
}

func TestAdminHandler_JobsDisabled(t *testing.T) {
	tc := testutil.NewTestContext(t)
	actor := tc.CreateTestUser("Root", "root@example.com", "rootpassword1", models.RoleSuperAdmin)
	router := tc.Router()
	token := tc.GetTestJWT(actor.ID)

	w := testutil.Request(t, router, http.MethodGet, "/api/v1/admin/jobs", nil, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, testutil.Decode[[]string](t, w))

	w = testutil.Request(t, router, http.MethodPost, "/api/v1/admin/jobs/cleanup-tokens/run", nil, token)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
