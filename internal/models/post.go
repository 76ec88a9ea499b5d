package models

import (
	"time"

	"github.com/google/uuid"
)

// PostStatus is the moderation state of a post
type PostStatus string

const (
	PostStatusDraft     PostStatus = "DRAFT"
	PostStatusPending   PostStatus = "PENDING"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusRejected  PostStatus = "REJECTED"
)

// Valid reports whether s is a known status
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusPending, PostStatusPublished, PostStatusRejected:
		return true
	}
	return false
}

// Post represents a blog post
type Post struct {
	ID             uuid.UUID    `json:"id"`
	AuthorID       uuid.UUID    `json:"author_id"`
	Author         *UserSummary `json:"author,omitempty"`
	Title          string       `json:"title"`
	Slug           string       `json:"slug"`
	Excerpt        string       `json:"excerpt"`
	Content        string       `json:"content"`
	Status         PostStatus   `json:"status"`
	ModerationNote *string      `json:"moderation_note,omitempty"`
	PublishedAt    *time.Time   `json:"published_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// CreatePostRequest represents the request to write a new post
type CreatePostRequest struct {
	Title   string `json:"title" binding:"required,min=3,max=200,nospaces" example:"Notes on the Analytical Engine"`
	Excerpt string `json:"excerpt" binding:"max=500"`
	Content string `json:"content" binding:"required,min=1"`
	// Submit sends the post for publication instead of saving a draft
	Submit bool `json:"submit"`
}

// UpdatePostRequest represents a partial post update
type UpdatePostRequest struct {
	Title   *string `json:"title,omitempty" binding:"omitempty,min=3,max=200,nospaces"`
	Excerpt *string `json:"excerpt,omitempty" binding:"omitempty,max=500"`
	Content *string `json:"content,omitempty" binding:"omitempty,min=1"`
}

// RejectPostRequest carries the moderator's note
type RejectPostRequest struct {
	Note string `json:"note" binding:"required,min=3,max=1000"`
}
