package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrCustomerExists is returned by Create when the explicit id is taken.
var ErrCustomerExists = errors.New("customer already exists")

// Customer is an invoice recipient.
type Customer struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Email    string `json:"email" yaml:"email"`
	ImageURL string `json:"image_url" yaml:"image_url"`
}

type CustomerRepository interface {
	List(ctx context.Context) ([]Customer, error)
	Create(ctx context.Context, c Customer) (string, error)
}

type PgCustomerRepository struct {
	db *pgxpool.Pool
}

func NewPgCustomerRepository(db *pgxpool.Pool) *PgCustomerRepository {
	return &PgCustomerRepository{db: db}
}

// List returns every customer ordered by name, for the invoice form.
func (r *PgCustomerRepository) List(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT id::text, name, email, image_url FROM customers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Create inserts a customer, keeping an explicit id when one is given.
func (r *PgCustomerRepository) Create(ctx context.Context, c Customer) (string, error) {
	var id string
	if strings.TrimSpace(c.ID) != "" {
		const q = `INSERT INTO customers (id, name, email, image_url) VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO NOTHING RETURNING id::text`
		err := r.db.QueryRow(ctx, q, c.ID, c.Name, c.Email, c.ImageURL).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrCustomerExists
		}
		return id, err
	}
	const q = `INSERT INTO customers (name, email, image_url) VALUES ($1,$2,$3) RETURNING id::text`
	err := r.db.QueryRow(ctx, q, c.Name, c.Email, c.ImageURL).Scan(&id)
	return id, err
}
