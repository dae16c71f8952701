package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/geocoder89/bookinghub/internal/domain/user"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UsersRepo struct {
	pool     *pgxpool.Pool
	prom     *observability.Prom
	filesURL string
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom, filesURL string) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom, filesURL: filesURL}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `
	u.id, u.name, u.email, u.provider, u.created_at, u.updated_at,
	f.id, f.path`

const userFrom = `
	FROM users u
	LEFT JOIN files f ON f.id = u.avatar_id`

type userScanner struct {
	u        user.User
	avatarID sql.NullInt64
	path     sql.NullString
}

func (s *userScanner) dest() []any {
	return []any{&s.u.ID, &s.u.Name, &s.u.Email, &s.u.Provider, &s.u.CreatedAt, &s.u.UpdatedAt, &s.avatarID, &s.path}
}

func (s *userScanner) user(filesURL string) user.User {
	u := s.u
	if s.avatarID.Valid {
		u.Avatar = user.NewAvatar(s.avatarID.Int64, s.path.String, filesURL)
	}
	return u
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	var s userScanner

	err := r.observe("users.get_by_id", func() error {
		return r.pool.QueryRow(ctx, `SELECT`+userColumns+userFrom+` WHERE u.id = $1`, id).Scan(s.dest()...)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return s.user(r.filesURL), nil
}

func (r *UsersRepo) ListProviders(ctx context.Context) ([]user.User, error) {
	out := []user.User{}

	err := r.observe("users.list_providers", func() error {
		rows, err := r.pool.Query(ctx, `SELECT`+userColumns+userFrom+` WHERE u.provider = TRUE ORDER BY u.name ASC, u.id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s userScanner
			if err := rows.Scan(s.dest()...); err != nil {
				return err
			}
			out = append(out, s.user(r.filesURL))
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a user. Users are managed outside this service; it exists
// for seeding and tests.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		return r.pool.QueryRow(ctx, `
			INSERT INTO users (name, email, provider, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING id, created_at, updated_at
		`, u.Name, u.Email, u.Provider).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	})
	return u, err
}
