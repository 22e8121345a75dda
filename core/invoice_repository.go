package core

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InvoiceRepository is the invoice store plus the reads behind the list view.
type InvoiceRepository interface {
	InvoiceStore
	Get(ctx context.Context, id string) (*Invoice, error)
	List(ctx context.Context, query string, page, perPage int) ([]InvoiceListItem, int, error)
}

// PgInvoiceRepository implements InvoiceRepository using pgxpool.
type PgInvoiceRepository struct {
	db *pgxpool.Pool
}

func NewPgInvoiceRepository(db *pgxpool.Pool) *PgInvoiceRepository {
	return &PgInvoiceRepository{db: db}
}

func (r *PgInvoiceRepository) Insert(ctx context.Context, inv Invoice) (string, error) {
	const q = `INSERT INTO invoices (customer_id, amount, status, date) VALUES ($1,$2,$3,$4) RETURNING id::text`
	var id string
	if err := r.db.QueryRow(ctx, q, inv.CustomerID, inv.AmountCents, string(inv.Status), inv.Date).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// InsertIfAbsent inserts inv under inv.ID and reports false when that id already exists.
func (r *PgInvoiceRepository) InsertIfAbsent(ctx context.Context, inv Invoice) (bool, error) {
	const q = `INSERT INTO invoices (id, customer_id, amount, status, date) VALUES ($1,$2,$3,$4,$5) ON CONFLICT (id) DO NOTHING`
	tag, err := r.db.Exec(ctx, q, inv.ID, inv.CustomerID, inv.AmountCents, string(inv.Status), inv.Date)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Update returns the number of rows matched by id.
func (r *PgInvoiceRepository) Update(ctx context.Context, inv Invoice) (int64, error) {
	const q = `UPDATE invoices SET customer_id=$1, amount=$2, status=$3 WHERE id=$4`
	tag, err := r.db.Exec(ctx, q, inv.CustomerID, inv.AmountCents, string(inv.Status), inv.ID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PgInvoiceRepository) Delete(ctx context.Context, id string) (int64, error) {
	const q = `DELETE FROM invoices WHERE id=$1`
	tag, err := r.db.Exec(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Get returns ErrInvoiceNotFound when the id does not exist.
func (r *PgInvoiceRepository) Get(ctx context.Context, id string) (*Invoice, error) {
	const q = `SELECT id::text, customer_id::text, amount, status, to_char(date, 'YYYY-MM-DD') FROM invoices WHERE id=$1`
	var inv Invoice
	var status string
	if err := r.db.QueryRow(ctx, q, id).Scan(&inv.ID, &inv.CustomerID, &inv.AmountCents, &status, &inv.Date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	inv.Status = InvoiceStatus(status)
	return &inv, nil
}

// List returns one page of invoices joined with customers, newest first,
// filtered by a case-insensitive match on customer, amount, date or status.
func (r *PgInvoiceRepository) List(ctx context.Context, query string, page, perPage int) ([]InvoiceListItem, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	const where = `
FROM invoices
JOIN customers ON invoices.customer_id = customers.id
WHERE customers.name ILIKE $1
   OR customers.email ILIKE $1
   OR invoices.amount::text ILIKE $1
   OR invoices.date::text ILIKE $1
   OR invoices.status ILIKE $1`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*)`+where, pattern).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, `
SELECT invoices.id::text, invoices.customer_id::text, invoices.amount, invoices.status,
       to_char(invoices.date, 'YYYY-MM-DD'), customers.name, customers.email, customers.image_url`+where+`
ORDER BY invoices.date DESC, invoices.id DESC
LIMIT $2 OFFSET $3
`, pattern, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	items := make([]InvoiceListItem, 0, perPage)
	for rows.Next() {
		var it InvoiceListItem
		var status string
		if err := rows.Scan(&it.ID, &it.CustomerID, &it.AmountCents, &status, &it.Date, &it.CustomerName, &it.CustomerEmail, &it.ImageURL); err != nil {
			return nil, 0, err
		}
		it.Status = InvoiceStatus(status)
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// ErrInvoiceNotFound is returned by Get for an unknown id.
var ErrInvoiceNotFound = errors.New("invoice not found")
