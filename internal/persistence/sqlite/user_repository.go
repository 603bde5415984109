package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/billboard-server/internal/persistence"
)

const userColumns = `id, username, password_hash, create_billboards, edit_billboards, schedule_billboards, edit_users, created_at`

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// CreateUser inserts a new user and returns its generated id
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (int64, error) {
	user.Username = strings.TrimSpace(user.Username)
	if user.Username == "" || user.PasswordHash == "" {
		return 0, persistence.ErrConstraintViolation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (username, password_hash, create_billboards, edit_billboards, schedule_billboards, edit_users, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.helper.Exec(ctx, query,
		user.Username,
		user.PasswordHash,
		user.CreateBillboards,
		user.EditBillboards,
		user.ScheduleBillboards,
		user.EditUsers,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}

	return result.LastInsertId()
}

// GetUser retrieves a user by id
func (r *UserRepository) GetUser(ctx context.Context, id int64) (persistence.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return r.scanUser(r.helper.QueryRow(ctx, query, id))
}

// GetUserByUsername retrieves a user by exact username
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return r.scanUser(r.helper.QueryRow(ctx, query, username))
}

// ListUsers returns all users ordered by username
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username ASC`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}

	return users, nil
}

// CountUsers returns the number of stored users
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// UpdatePermissions overwrites the four permission flags of user.ID
func (r *UserRepository) UpdatePermissions(ctx context.Context, user persistence.User) error {
	query := `
		UPDATE users
		SET create_billboards = ?, edit_billboards = ?, schedule_billboards = ?, edit_users = ?
		WHERE id = ?
	`

	result, err := r.helper.Exec(ctx, query,
		user.CreateBillboards,
		user.EditBillboards,
		user.ScheduleBillboards,
		user.EditUsers,
		user.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffectedOrNotFound(result)
}

// UpdatePassword replaces the stored password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if passwordHash == "" {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return rowsAffectedOrNotFound(result)
}

// DeleteUser removes a user with their sessions, their billboards and every
// schedule that either they created or that shows one of their billboards.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		statements := []string{
			`DELETE FROM sessions WHERE user_id = ?`,
			`DELETE FROM schedule_times WHERE schedule_id IN (
				SELECT s.id FROM schedules s
				LEFT JOIN billboards b ON b.id = s.billboard_id
				WHERE s.creator_id = ?1 OR b.owner_id = ?1
			)`,
			`DELETE FROM schedules WHERE creator_id = ?1 OR billboard_id IN (SELECT id FROM billboards WHERE owner_id = ?1)`,
			`DELETE FROM billboards WHERE owner_id = ?`,
		}
		for _, stmt := range statements {
			if _, err := r.helper.ExecTx(ctx, tx, stmt, id); err != nil {
				return r.mapper.MapError(err)
			}
		}

		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return rowsAffectedOrNotFound(result)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user         persistence.User
		createdAtStr string
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.CreateBillboards,
		&user.EditBillboards,
		&user.ScheduleBillboards,
		&user.EditUsers,
		&createdAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, r.mapper.MapError(err)
	}

	if user.CreatedAt, err = parseTime("created_at", createdAtStr); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}
