package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
)

const postSelect = `
	SELECT p.id, p.author_id, p.title, p.slug, p.excerpt, p.content, p.status,
		   p.moderation_note, p.published_at, p.created_at, p.updated_at,
		   u.id, u.name, u.image
	FROM posts p
	JOIN users u ON u.id = p.author_id`

type postRepository struct {
	repository.BaseRepository
}

// NewPostRepository creates a new PostgreSQL post repository
func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &postRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

func scanPost(row rowScanner) (*models.Post, error) {
	post := &models.Post{Author: &models.UserSummary{}}
	err := row.Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.Slug,
		&post.Excerpt,
		&post.Content,
		&post.Status,
		&post.ModerationNote,
		&post.PublishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
		&post.Author.ID,
		&post.Author.Name,
		&post.Author.Image,
	)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (
			id, author_id, title, slug, excerpt, content, status,
			moderation_note, published_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10
		)
		RETURNING created_at, updated_at`

	post.ID = uuid.New()
	err := r.Conn(ctx).QueryRowContext(ctx, query,
		post.ID,
		post.AuthorID,
		post.Title,
		post.Slug,
		post.Excerpt,
		post.Content,
		post.Status,
		post.ModerationNote,
		post.PublishedAt,
		time.Now(),
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if isUniqueViolation(err) {
		return repository.ErrSlugExists
	}
	return err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE posts
		SET title = $1,
			slug = $2,
			excerpt = $3,
			content = $4,
			status = $5,
			moderation_note = $6,
			published_at = $7,
			updated_at = $8
		WHERE id = $9
		RETURNING updated_at`

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		post.Title,
		post.Slug,
		post.Excerpt,
		post.Content,
		post.Status,
		post.ModerationNote,
		post.PublishedAt,
		time.Now(),
		post.ID,
	).Scan(&post.UpdatedAt)
	if err == sql.ErrNoRows {
		return repository.ErrPostNotFound
	}
	if isUniqueViolation(err) {
		return repository.ErrSlugExists
	}
	return err
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.Conn(ctx).ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrPostNotFound
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	post, err := scanPost(r.Conn(ctx).QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	post, err := scanPost(r.Conn(ctx).QueryRowContext(ctx, postSelect+` WHERE p.slug = $1`, slug))
	if err == sql.ErrNoRows {
		return nil, repository.ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (r *postRepository) buildListConditions(filter repository.PostFilter) (string, []any) {
	conditions := []string{"u.deleted_at IS NULL"}
	args := make([]any, 0)
	argCount := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argCount))
		args = append(args, *filter.Status)
		argCount++
	}

	if filter.AuthorID != nil {
		conditions = append(conditions, fmt.Sprintf("p.author_id = $%d", argCount))
		args = append(args, *filter.AuthorID)
		argCount++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(p.title ILIKE $%d OR p.excerpt ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filter.Search+"%")
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *postRepository) List(ctx context.Context, filter repository.PostFilter) ([]models.Post, int, error) {
	where, args := r.buildListConditions(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM posts p JOIN users u ON u.id = p.author_id` + where
	if err := r.Conn(ctx).QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := postSelect + where + " ORDER BY COALESCE(p.published_at, p.created_at) DESC"
	argCount := len(args) + 1

	if filter.Limit != nil {
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, *filter.Limit)
		argCount++
	}

	if filter.Offset != nil {
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, *filter.Offset)
	}

	rows, err := r.Conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (r *postRepository) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.PostStatus]int{
		models.PostStatusDraft:     0,
		models.PostStatusPending:   0,
		models.PostStatusPublished: 0,
		models.PostStatusRejected:  0,
	}
	for rows.Next() {
		var status models.PostStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.Conn(ctx).QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM posts WHERE slug = $1)", slug).Scan(&exists)
	return exists, err
}
