package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	UserStore
	Create(ctx context.Context, name, email, passwordHash string) (string, error)
	HasAny(ctx context.Context) (bool, error)
}

// PgUserRepository implements UserRepository using pgxpool.
type PgUserRepository struct {
	db *pgxpool.Pool
}

func NewPgUserRepository(db *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{db: db}
}

// FindByEmail returns ErrUserNotFound when no row matches; other errors are passed through.
func (r *PgUserRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	const q = `SELECT id::text, name, email, password FROM users WHERE email=$1`
	var u User
	if err := r.db.QueryRow(ctx, q, strings.ToLower(email)).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgUserRepository) Create(ctx context.Context, name, email, passwordHash string) (string, error) {
	const q = `INSERT INTO users (name, email, password) VALUES ($1,$2,$3)
ON CONFLICT (email) DO NOTHING RETURNING id::text`
	var id string
	if err := r.db.QueryRow(ctx, q, name, strings.ToLower(email), passwordHash).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUserExists
		}
		return "", err
	}
	return id, nil
}

func (r *PgUserRepository) HasAny(ctx context.Context) (bool, error) {
	const q = `SELECT 1 FROM users LIMIT 1`
	var one int
	if err := r.db.QueryRow(ctx, q).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ErrUserExists is returned by Create when the e-mail is already registered.
var ErrUserExists = errors.New("user already exists")
