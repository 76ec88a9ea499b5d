package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a reader's reply on a published post
type Comment struct {
	ID        uuid.UUID    `json:"id"`
	PostID    uuid.UUID    `json:"post_id"`
	AuthorID  uuid.UUID    `json:"author_id"`
	Author    *UserSummary `json:"author,omitempty"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// CreateCommentRequest represents a new comment
type CreateCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=2000,nospaces"`
}
