// Package integration provides utilities for postgres integration testing
package integration

import (
	"context"
	"database/sql"
	"inkwell/internal/config"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/repository/postgres"
	"inkwell/internal/testutil/db"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// TestContext holds a migrated database and a repository of each kind
type TestContext struct {
	T      *testing.T
	DB     *sql.DB
	Config *config.Config

	UserRepo          repository.UserRepository
	AccountRepo       repository.AccountRepository
	EmailVerifyRepo   repository.EmailVerificationRepository
	PasswordResetRepo repository.PasswordResetRepository
	RefreshTokenRepo  repository.RefreshTokenRepository
	TwoFactorRepo     repository.TwoFactorRepository
	PostRepo          repository.PostRepository
	CommentRepo       repository.CommentRepository
	AuditRepo         repository.AuditLogRepository
}

// NewTestContext creates a new test context for postgres integration tests.
// It skips the test when the database from .env.test is unreachable.
func NewTestContext(t *testing.T) *TestContext {
	t.Helper()

	cfg := db.LoadTestConfig(t)
	testDB := db.SetupTestDB(t, &cfg.Database)

	tc := &TestContext{
		T:                 t,
		DB:                testDB,
		Config:            cfg,
		UserRepo:          postgres.NewUserRepository(testDB),
		AccountRepo:       postgres.NewAccountRepository(testDB),
		EmailVerifyRepo:   postgres.NewEmailVerificationRepository(testDB),
		PasswordResetRepo: postgres.NewPasswordResetRepository(testDB),
		RefreshTokenRepo:  postgres.NewRefreshTokenRepository(testDB),
		TwoFactorRepo:     postgres.NewTwoFactorRepository(testDB),
		PostRepo:          postgres.NewPostRepository(testDB),
		CommentRepo:       postgres.NewCommentRepository(testDB),
		AuditRepo:         postgres.NewAuditLogRepository(testDB),
	}

	t.Cleanup(func() {
		if err := db.CleanupTestDB(tc.DB); err != nil {
			t.Errorf("Failed to cleanup test database: %v", err)
		}
		tc.DB.Close()
	})

	return tc
}

// CreateTestUser creates a credentials user with a bcrypt-hashed password
func (tc *TestContext) CreateTestUser(name, email, password string) *models.User {
	tc.T.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(tc.T, err, "Failed to hash password")
	hash := string(hashed)

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: &hash,
	}
	err = tc.UserRepo.Create(context.Background(), user)
	require.NoError(tc.T, err, "Failed to create test user")
	return user
}

// CreateTestPost creates a post by author in the given status
func (tc *TestContext) CreateTestPost(author *models.User, slug string, status models.PostStatus) *models.Post {
	tc.T.Helper()

	post := &models.Post{
		AuthorID: author.ID,
		Title:    "Post " + slug,
		Slug:     slug,
		Excerpt:  "Excerpt of " + slug,
		Content:  "Body of " + slug,
		Status:   status,
	}
	err := tc.PostRepo.Create(context.Background(), post)
	require.NoError(tc.T, err, "Failed to create test post")
	return post
}

// CreateTestAuditLog creates a test audit log entry
func (tc *TestContext) CreateTestAuditLog(user *models.User, action models.AuditAction, entityType, entityID, description string) {
	tc.T.Helper()
	req := &models.CreateAuditLogRequest{
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		Description: description,
		IPAddress:   "127.0.0.1",
		UserAgent:   "test-agent",
	}
	if user != nil {
		req.UserID = &user.ID
	}
	err := tc.AuditRepo.Create(context.Background(), req)
	require.NoError(tc.T, err)
}

// ExecuteSQL executes a raw SQL query for testing
func (tc *TestContext) ExecuteSQL(query string, args ...any) {
	tc.T.Helper()
	_, err := tc.DB.ExecContext(context.Background(), query, args...)
	require.NoError(tc.T, err)
}
