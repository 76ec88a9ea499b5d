package handlers_test

import (
	"context"
	"inkwell/internal/auth"
	"inkwell/internal/models"
	"inkwell/internal/ratelimit"
	"inkwell/internal/testutil"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentHandler_CreateComment(t *testing.T) {
	tests := []struct {
		name       string
		status     models.PostStatus
		setupFunc  func(*postFixture)
		input      models.CreateCommentRequest
		anonymous  bool
		wantStatus int
		errMsg     string
	}{
		{
			name:       "Success",
			status:     models.PostStatusPublished,
			input:      models.CreateCommentRequest{Content: "  Lovely read  "},
			wantStatus: http.StatusCreated,
		},
		{
			name:       "Blank Content",
			status:     models.PostStatusPublished,
			input:      models.CreateCommentRequest{Content: "   "},
			wantStatus: http.StatusBadRequest,
			errMsg:     "content: Must not be blank",
		},
		{
			name:       "Pending Post",
			status:     models.PostStatusPending,
			input:      models.CreateCommentRequest{Content: "First!"},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "Anonymous",
			status:     models.PostStatusPublished,
			input:      models.CreateCommentRequest{Content: "First!"},
			anonymous:  true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "Rate Limited",
			status: models.PostStatusPublished,
			setupFunc: func(f *postFixture) {
				f.tc.SetLimits(map[string]ratelimit.Policy{
					ratelimit.ActionComment: {Requests: 1, Window: time.Hour},
				})
			},
			input:      models.CreateCommentRequest{Content: "Again"},
			wantStatus: http.StatusTooManyRequests,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t)
			if tt.setupFunc != nil {
				tt.setupFunc(f)
			}
			post := f.tc.CreateTestPost(f.author, "Commentable", tt.status)
			path := "/api/v1/posts/" + post.ID.String() + "/comments"
			router := f.tc.Router()

			token := f.token(f.reader)
			if tt.anonymous {
				token = ""
			}
			if tt.wantStatus == http.StatusTooManyRequests {
				w := testutil.Request(t, router, http.MethodPost, path, tt.input, token)
				require.Equal(t, http.StatusCreated, w.Code)
			}

			w := testutil.Request(t, router, http.MethodPost, path, tt.input, token)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			switch tt.wantStatus {
			case http.StatusCreated:
				comment := testutil.Decode[models.Comment](t, w)
				assert.Equal(t, "Lovely read", comment.Content)
				require.NotNil(t, comment.Author)
				assert.Equal(t, f.reader.ID, comment.Author.ID)
			case http.StatusTooManyRequests:
				resp := testutil.Decode[models.ErrorResponse](t, w)
				assert.Equal(t, string(auth.ErrorRateLimited), resp.ErrorType)
				assert.Positive(t, resp.WaitTimeSeconds)
			default:
				if tt.errMsg != "" {
					assert.Equal(t, tt.errMsg, testutil.Decode[models.ErrorResponse](t, w).Error)
				}
			}
		})
	}
}

func TestCommentHandler_AuthorCannotCommentOnDraft(t *testing.T) {
	f := newPostFixture(t)
	post := f.tc.CreateTestPost(f.author, "Draft", models.PostStatusDraft)

	w := testutil.Request(t, f.tc.Router(), http.MethodPost, "/api/v1/posts/"+post.ID.String()+"/comments",
		models.CreateCommentRequest{Content: "Note to self"}, f.token(f.author))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "comments are only allowed on published posts", testutil.Decode[models.ErrorResponse](t, w).Error)
}

func TestCommentHandler_ListComments(t *testing.T) {
	f := newPostFixture(t)
	post := f.tc.CreateTestPost(f.author, "Popular", models.PostStatusPublished)
	for _, content := range []string{"one", "two", "three"} {
		require.NoError(t, f.tc.Repos.Comments.Create(context.Background(), &models.Comment{
			PostID:   post.ID,
			AuthorID: f.reader.ID,
			Content:  content,
		}))
	}

	w := testutil.Request(t, f.tc.Router(), http.MethodGet, "/api/v1/posts/"+post.Slug+"/comments?limit=2", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := testutil.Decode[models.ListResponse[models.Comment]](t, w)
	assert.Equal(t, 3, resp.Total)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.Limit)
}

func TestCommentHandler_DeleteComment(t *testing.T) {
	tests := []struct {
		name       string
		as         func(*postFixture, *models.User) *models.User
		wantStatus int
	}{
		{name: "Comment Author", as: func(f *postFixture, commenter *models.User) *models.User { return commenter }, wantStatus: http.StatusNoContent},
		{name: "Post Author", as: func(f *postFixture, commenter *models.User) *models.User { return f.author }, wantStatus: http.StatusNoContent},
		{name: "Admin", as: func(f *postFixture, commenter *models.User) *models.User { return f.admin }, wantStatus: http.StatusNoContent},
		{name: "Bystander", as: func(f *postFixture, commenter *models.User) *models.User { return f.reader }, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPostFixture(t)
			commenter := f.tc.CreateTestUser("Linus", "linus@example.com", "kernel19911991", models.RoleUser)
			post := f.tc.CreateTestPost(f.author, "Discussed", models.PostStatusPublished)
			comment := &models.Comment{PostID: post.ID, AuthorID: commenter.ID, Content: "Hot take"}
			require.NoError(t, f.tc.Repos.Comments.Create(context.Background(), comment))

			w := testutil.Request(t, f.tc.Router(), http.MethodDelete, "/api/v1/comments/"+comment.ID.String(), nil, f.token(tt.as(f, commenter)))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			_, err := f.tc.Repos.Comments.GetByID(context.Background(), comment.ID)
			assert.Equal(t, tt.wantStatus == http.StatusNoContent, err != nil)
		})
	}
}

func TestCommentHandler_DeleteUnknownComment(t *testing.T) {
	f := newPostFixture(t)
	router := f.tc.Router()

	w := testutil.Request(t, router, http.MethodDelete, "/api/v1/comments/not-a-uuid", nil, f.token(f.reader))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = testutil.Request(t, router, http.MethodDelete, "/api/v1/comments/"+f.reader.ID.String(), nil, f.token(f.reader))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
