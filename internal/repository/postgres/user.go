package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `
	id, name, email, email_verified_at, password, image, role,
	is_two_factor_enabled, last_login_at, deleted_at, created_at, updated_at`

var userOrderColumns = map[string]string{
	"name":          "name",
	"email":         "email",
	"created_at":    "created_at",
	"last_login_at": "last_login_at",
}

type userRepository struct {
	repository.BaseRepository
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &userRepository{
		BaseRepository: repository.NewBaseRepository(db),
	}
}

// isUniqueViolation reports whether err is a postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.EmailVerifiedAt,
		&user.Password,
		&user.Image,
		&user.Role,
		&user.IsTwoFactorEnabled,
		&user.LastLoginAt,
		&user.DeletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (
			id, name, email, email_verified_at, password, image, role,
			is_two_factor_enabled, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $9
		)
		RETURNING created_at, updated_at`

	now := time.Now()
	user.ID = uuid.New()
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.EmailVerifiedAt,
		user.Password,
		user.Image,
		user.Role,
		user.IsTwoFactorEnabled,
		now,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrEmailExists
		}
		return err
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $1,
			email = $2,
			email_verified_at = $3,
			image = $4,
			is_two_factor_enabled = $5,
			updated_at = $6
		WHERE id = $7 AND deleted_at IS NULL
		RETURNING updated_at`

	err := r.Conn(ctx).QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		user.EmailVerifiedAt,
		user.Image,
		user.IsTwoFactorEnabled,
		time.Now(),
		user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return repository.ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return repository.ErrEmailExists
		}
		return err
	}
	return nil
}

// Delete soft-deletes the user and revokes everything tied to the session
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.Transaction(ctx, func(ctx context.Context) error {
		query := `
			UPDATE users
			SET deleted_at = $1, updated_at = $1
			WHERE id = $2 AND deleted_at IS NULL`

		result, err := r.Conn(ctx).ExecContext(ctx, query, time.Now(), id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return repository.ErrUserNotFound
		}

		for _, table := range []string{"refresh_tokens", "two_factor_challenges", "accounts"} {
			if _, err := r.Conn(ctx).ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE user_id = $1", table), id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.Conn(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL`

	user, err := scanUser(r.Conn(ctx).QueryRowContext(ctx, query, strings.TrimSpace(email)))
	if err == sql.ErrNoRows {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]models.User, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	args := make([]any, 0)
	argCount := 1

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d)", argCount, argCount))
		args = append(args, "%"+*filter.Search+"%")
		argCount++
	}

	if filter.Role != nil {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argCount))
		args = append(args, *filter.Role)
		argCount++
	}

	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM users"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where

	orderBy, ok := userOrderColumns[filter.OrderBy]
	if !ok {
		orderBy = "created_at"
	}
	query += " ORDER BY " + orderBy
	if filter.OrderDesc {
		query += " DESC"
	} else {
		query += " ASC"
	}

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

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

func (r *userRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.Conn(ctx).QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE deleted_at IS NULL").Scan(&count)
	return count, err
}

func (r *userRepository) CountByRole(ctx context.Context) (map[models.Role]int, error) {
	rows, err := r.Conn(ctx).QueryContext(ctx, `
		SELECT role, COUNT(*)
		FROM users
		WHERE deleted_at IS NULL
		GROUP BY role`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[models.Role]int{
		models.RoleUser:       0,
		models.RoleAdmin:      0,
		models.RoleSuperAdmin: 0,
	}
	for rows.Next() {
		var role models.Role
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

func (r *userRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.Conn(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return repository.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) error {
	return r.exec(ctx, `
		UPDATE users
		SET password = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		hashedPassword, time.Now(), id)
}

func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	return r.exec(ctx, `
		UPDATE users
		SET role = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		role, time.Now(), id)
}

func (r *userRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, lastLogin time.Time) error {
	return r.exec(ctx, `
		UPDATE users
		SET last_login_at = $1
		WHERE id = $2 AND deleted_at IS NULL`,
		lastLogin, id)
}

func (r *userRepository) VerifyEmail(ctx context.Context, id uuid.UUID, email string, at time.Time) error {
	err := r.exec(ctx, `
		UPDATE users
		SET email = $1, email_verified_at = $2, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL`,
		email, at, id)
	if isUniqueViolation(err) {
		return repository.ErrEmailExists
	}
	return err
}
