package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgInvalidTextRepresentation is raised when a value does not parse as the column type.
const pgInvalidTextRepresentation = "22P02"

// InvoiceStore is the persistence side of the mutation pipeline.
type InvoiceStore interface {
	Insert(ctx context.Context, inv Invoice) (string, error)
	Update(ctx context.Context, inv Invoice) (int64, error)
	Delete(ctx context.Context, id string) (int64, error)
}

// ViewInvalidator marks a cached view stale so the next read recomputes it.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// NavigationMode tells the client how to move after a mutation.
type NavigationMode string

const (
	NavigateNone    NavigationMode = "none"
	NavigateReplace NavigationMode = "replace"
	NavigatePush    NavigationMode = "push"
)

// Navigation is the post-mutation instruction for the client.
type Navigation struct {
	Mode NavigationMode `json:"mode"`
	Path string         `json:"path,omitempty"`
}

// MutationResult is what a successful mutation returns.
type MutationResult struct {
	Navigation Navigation `json:"navigation"`
	Message    string     `json:"message,omitempty"`
	Invoice    *Invoice   `json:"invoice,omitempty"`
}

// MutationErrorKind classifies failures the pipeline can explain.
type MutationErrorKind int

const (
	ValidationFailed MutationErrorKind = iota + 1
	PersistenceFailed
	InvoiceNotFound
)

func (k MutationErrorKind) String() string {
	switch k {
	case ValidationFailed:
		return "VALIDATION_FAILED"
	case PersistenceFailed:
		return "PERSISTENCE_FAILED"
	case InvoiceNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// MutationError is a classified mutation failure. No state was changed for
// ValidationFailed; for PersistenceFailed the store reported an error.
type MutationError struct {
	Kind        MutationErrorKind
	Msg         string
	FieldErrors map[string]string
	cause       error
}

func (e *MutationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *MutationError) Unwrap() error { return e.cause }

// Message is safe to show to the user.
func (e *MutationError) Message() string { return e.Msg }

// AsMutationError extracts a classified mutation error.
func AsMutationError(err error) (*MutationError, bool) {
	var me *MutationError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

type invoiceForm struct {
	CustomerID string `validate:"required"`
	Amount     string `validate:"required,amount"`
	Status     string `validate:"required,oneof=pending paid"`
}

var invoiceFieldNames = map[string]string{
	"CustomerID": "customerId",
	"Amount":     "amount",
	"Status":     "status",
}

// MutationPipeline runs Validate -> Persist -> Invalidate -> Navigate for invoices.
type MutationPipeline struct {
	store InvoiceStore
	views ViewInvalidator
	now   func() time.Time
}

func NewMutationPipeline(store InvoiceStore, views ViewInvalidator) *MutationPipeline {
	return &MutationPipeline{store: store, views: views, now: time.Now}
}

// WithClock replaces the clock used for the invoice date.
func (p *MutationPipeline) WithClock(now func() time.Time) *MutationPipeline {
	p.now = now
	return p
}

// Create validates in, inserts a new invoice dated today (UTC) and navigates
// to the invoice list, replacing the form in history.
func (p *MutationPipeline) Create(ctx context.Context, in InvoiceInput) (MutationResult, error) {
	inv, err := validateInvoice(in, "Missing Fields. Failed to Create Invoice.")
	if err != nil {
		return MutationResult{}, err
	}
	inv.Date = p.now().UTC().Format(dateLayout)

	id, err := p.store.Insert(ctx, inv)
	if err != nil {
		return MutationResult{}, persistenceError("Create", err)
	}
	inv.ID = id
	log.Printf("[invoices] created id=%s customer=%s amount=%d status=%s", inv.ID, inv.CustomerID, inv.AmountCents, inv.Status)

	if err := p.invalidate(ctx); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{
		Navigation: Navigation{Mode: NavigateReplace, Path: InvoicesPath},
		Invoice:    &inv,
	}, nil
}

// Update rewrites customer, amount and status of the invoice with the given id.
// The date is kept. A missing row is reported as InvoiceNotFound.
func (p *MutationPipeline) Update(ctx context.Context, id string, in InvoiceInput) (MutationResult, error) {
	id, err := validateID(id, "Missing Fields. Failed to Update Invoice.")
	if err != nil {
		return MutationResult{}, err
	}
	inv, err := validateInvoice(in, "Missing Fields. Failed to Update Invoice.")
	if err != nil {
		return MutationResult{}, err
	}
	inv.ID = id

	n, err := p.store.Update(ctx, inv)
	if err != nil {
		return MutationResult{}, persistenceError("Update", err)
	}
	if n == 0 {
		return MutationResult{}, &MutationError{Kind: InvoiceNotFound, Msg: "Invoice not found."}
	}
	log.Printf("[invoices] updated id=%s amount=%d status=%s", inv.ID, inv.AmountCents, inv.Status)

	if err := p.invalidate(ctx); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{
		Navigation: Navigation{Mode: NavigateReplace, Path: InvoicesPath},
		Invoice:    &inv,
	}, nil
}

// Delete removes the invoice and returns a confirmation instead of navigating;
// the caller is already on the list. Deleting a missing id succeeds.
func (p *MutationPipeline) Delete(ctx context.Context, id string) (MutationResult, error) {
	id, err := validateID(id, "Failed to Delete Invoice.")
	if err != nil {
		return MutationResult{}, err
	}

	n, err := p.store.Delete(ctx, id)
	if err != nil {
		return MutationResult{}, persistenceError("Delete", err)
	}
	log.Printf("[invoices] deleted id=%s rows=%d", id, n)

	if err := p.invalidate(ctx); err != nil {
		return MutationResult{}, err
	}
	return MutationResult{
		Navigation: Navigation{Mode: NavigateNone},
		Message:    "Deleted invoice " + id,
	}, nil
}

func (p *MutationPipeline) invalidate(ctx context.Context) error {
	if p.views == nil {
		return nil
	}
	if err := p.views.Invalidate(ctx, InvoicesPath); err != nil {
		return fmt.Errorf("invalidate %s: %w", InvoicesPath, err)
	}
	return nil
}

func validateInvoice(in InvoiceInput, msg string) (Invoice, error) {
	form := invoiceForm{
		CustomerID: strings.TrimSpace(in.CustomerID),
		Amount:     strings.TrimSpace(string(in.Amount)),
		Status:     strings.TrimSpace(in.Status),
	}
	if err := validate.Struct(form); err != nil {
		return Invoice{}, &MutationError{
			Kind:        ValidationFailed,
			Msg:         msg,
			FieldErrors: fieldMessages(err, invoiceFieldNames),
		}
	}
	amount, err := parseAmount(form.Amount)
	if err != nil {
		return Invoice{}, &MutationError{Kind: ValidationFailed, Msg: msg, FieldErrors: map[string]string{"amount": err.Error()}}
	}
	return Invoice{
		CustomerID:  form.CustomerID,
		AmountCents: toCents(amount),
		Status:      InvoiceStatus(form.Status),
	}, nil
}

// validateID requires a UUID and returns it in canonical form.
func validateID(id, msg string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", &MutationError{Kind: ValidationFailed, Msg: msg, FieldErrors: map[string]string{"id": "id must be a valid invoice id"}}
	}
	return parsed.String(), nil
}

// persistenceError classifies a store failure of op. Cancellation is not a
// store failure and is returned as is. Invoice ids are checked before the
// store is called, so a value the database cannot parse is the customer id.
func persistenceError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepresentation {
		return &MutationError{
			Kind:        ValidationFailed,
			Msg:         "Invalid Fields. Failed to " + op + " Invoice.",
			FieldErrors: map[string]string{"customerId": "customerId must be a valid customer id"},
			cause:       err,
		}
	}
	return &MutationError{Kind: PersistenceFailed, Msg: "Database Error: Failed to " + op + " Invoice.", cause: err}
}
