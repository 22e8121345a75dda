package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// InvoiceStatus is either pending or paid.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
)

// dateLayout is the ISO calendar date stored in invoices.date.
const dateLayout = "2006-01-02"

// Invoice is one row of the invoices table. Amounts are integer cents.
type Invoice struct {
	ID          string        `json:"id"`
	CustomerID  string        `json:"customer_id"`
	AmountCents int64         `json:"amount"`
	Status      InvoiceStatus `json:"status"`
	Date        string        `json:"date"`
}

// InvoiceListItem is an invoice joined with its customer for the list view.
type InvoiceListItem struct {
	Invoice
	CustomerName  string `json:"name"`
	CustomerEmail string `json:"email"`
	ImageURL      string `json:"image_url"`
}

// InvoicePage is one rendered page of the invoice list.
type InvoicePage struct {
	Items      []InvoiceListItem `json:"items"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Query      string            `json:"query,omitempty"`
	TotalItems int               `json:"total_items"`
	TotalPages int               `json:"total_pages"`
	RenderedAt time.Time         `json:"rendered_at"`
}

// RawAmount is the submitted amount before coercion. Forms send strings,
// JSON clients may send either a number or a string.
type RawAmount string

func (a *RawAmount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = RawAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("amount must be a number or a string")
	}
	*a = RawAmount(n.String())
	return nil
}

// AmountOf formats a float for RawAmount; handy for callers building input in code.
func AmountOf(f float64) RawAmount {
	return RawAmount(strconv.FormatFloat(f, 'f', -1, 64))
}

// InvoiceInput is the raw create/update payload.
type InvoiceInput struct {
	CustomerID string    `form:"customerId" json:"customerId"`
	Amount     RawAmount `form:"amount" json:"amount"`
	Status     string    `form:"status" json:"status"`
}
