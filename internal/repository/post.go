package repository

import (
	"context"
	"inkwell/internal/models"

	"github.com/google/uuid"
)

// PostRepository defines the interface for post operations
type PostRepository interface {
	Repository
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]models.Post, int, error)
	CountByStatus(ctx context.Context) (map[models.PostStatus]int, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// PostFilter defines the filter options for listing posts
type PostFilter struct {
	Status   *models.PostStatus
	AuthorID *uuid.UUID
	Search   *string // Search in title and excerpt
	Limit    *int
	Offset   *int
}

// CommentRepository defines the interface for comment operations
type CommentRepository interface {
	Repository
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, int, error)
	Count(ctx context.Context) (int, error)
}
