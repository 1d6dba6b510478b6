package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"voicelink/internal/domain"
	"voicelink/internal/repository"
)

const pgUniqueViolation = "23505"

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) repository.UserRepository {
	return &UserRepository{db: db}
}

// Insert stores user with a lowercased email. The pre-check and the insert
// share one transaction; the UNIQUE constraint settles concurrent inserts.
func (r *UserRepository) Insert(ctx context.Context, user *domain.User) error {
	user.Email = normalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	return WithTx(ctx, r.db.DB, nil, func(ctx context.Context, tx DBTX) error {
		var one int
		err := tx.QueryRowContext(ctx, r.db.Rebind(`SELECT 1 FROM users WHERE email = ?`), user.Email).Scan(&one)
		switch {
		case err == nil:
			return repository.ErrDuplicateEmail
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("check email: %w", err)
		}

		err = tx.QueryRowContext(ctx, r.db.Rebind(`
INSERT INTO users (name, email, password, created_at)
VALUES (?, ?, ?, ?)
RETURNING id`),
			user.Name,
			user.Email,
			user.PasswordHash,
			user.CreatedAt.UTC(),
		).Scan(&user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return repository.ErrDuplicateEmail
			}
			return fmt.Errorf("insert user: %w", err)
		}
		return nil
	})
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
SELECT id, name, email, password, created_at
FROM users
WHERE id = ?`),
		id,
	)
	return scanUser(row)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, r.db.Rebind(`
SELECT id, name, email, password, created_at
FROM users
WHERE email = ?`),
		normalizeEmail(email),
	)
	return scanUser(row)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, email, password, created_at
FROM users
ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	return WithTx(ctx, r.db.DB, nil, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("user delete rows affected: %w", err)
		}
		if aff == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
