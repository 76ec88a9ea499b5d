package postgres

import (
	"context"
	"database/sql"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"time"

	"github.com/google/uuid"
)

type commentRepository struct {
	repository.BaseRepository
}

// NewCommentRepository creates a new PostgreSQL comment repository
func NewCommentRepository(db *sql.DB) repository.CommentRepository {
	return &commentRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, post_id, author_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING created_at, updated_at`

	comment.ID = uuid.New()
	err := r.Conn(ctx).QueryRowContext(ctx, query,
		comment.ID,
		comment.PostID,
		comment.AuthorID,
		comment.Content,
		time.Now(),
	).Scan(&comment.CreatedAt, &comment.UpdatedAt)
	return err
}

func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, c.content, c.created_at, c.updated_at,
			   u.id, u.name, u.image
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.id = $1`

	c := &models.Comment{Author: &models.UserSummary{}}
	err := r.Conn(ctx).QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
		&c.Author.ID, &c.Author.Name, &c.Author.Image,
	)
	if err == sql.ErrNoRows {
		return nil, repository.ErrCommentNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrCommentNotFound
	}
	return nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, int, error) {
	var total int
	err := r.Conn(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1 AND u.deleted_at IS NULL`, postID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT c.id, c.post_id, c.author_id, c.content, c.created_at, c.updated_at,
			   u.id, u.name, u.image
		FROM comments c
		JOIN users u ON u.id = c.author_id
		WHERE c.post_id = $1 AND u.deleted_at IS NULL
		ORDER BY c.created_at ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.Conn(ctx).QueryContext(ctx, query, postID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		c := models.Comment{Author: &models.UserSummary{}}
		if err := rows.Scan(
			&c.ID, &c.PostID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt,
			&c.Author.ID, &c.Author.Name, &c.Author.Image,
		); err != nil {
			return nil, 0, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return comments, total, nil
}

func (r *commentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.Conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM comments`).Scan(&count)
	return count, err
}
