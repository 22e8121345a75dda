package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// seedInvoiceNamespace derives stable ids for seed invoices that carry none.
var seedInvoiceNamespace = uuid.MustParse("6f1d8c52-2b7e-4c1a-9f43-8e0b5d7a2c91")

// SeedDocument is the YAML layout accepted by LoadSeed:
//
//	users:
//	  - name: User
//	    email: user@nextmail.com
//	    password: "123456"
//	customers:
//	  - id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
//	    name: Delba de Oliveira
//	    email: delba@oliveira.com
//	    image_url: /customers/delba-de-oliveira.png
//	invoices:
//	  - id: 0b7c3a4e-1d2f-4e5a-8b9c-0d1e2f3a4b5c   # optional
//	    customer_id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
//	    amount: 157.95
//	    status: pending
//	    date: "2022-12-06"
type SeedDocument struct {
	Users     []SeedUser    `yaml:"users"`
	Customers []Customer    `yaml:"customers"`
	Invoices  []SeedInvoice `yaml:"invoices"`
}

type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// SeedInvoice carries the amount in currency units, like the invoice form.
// Without an id, one is derived from the entry's position and contents.
type SeedInvoice struct {
	ID         string  `yaml:"id"`
	CustomerID string  `yaml:"customer_id"`
	Amount     float64 `yaml:"amount"`
	Status     string  `yaml:"status"`
	Date       string  `yaml:"date"`
}

// SeedInvoiceStore inserts invoices with a caller-chosen id, skipping ids that exist.
type SeedInvoiceStore interface {
	InsertIfAbsent(ctx context.Context, inv Invoice) (bool, error)
}

// SeedStores are the repositories a seed writes to.
type SeedStores struct {
	Users     UserRepository
	Customers CustomerRepository
	Invoices  SeedInvoiceStore
}

// SeedSummary counts what a seed run inserted.
type SeedSummary struct {
	Users     int
	Customers int
	Invoices  int
}

// ParseSeed decodes and checks a seed document without touching storage.
func ParseSeed(data []byte) (SeedDocument, error) {
	var doc SeedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return SeedDocument{}, fmt.Errorf("invalid seed yaml: %w", err)
	}
	for i, u := range doc.Users {
		if err := validate.Struct(credentialsForm{Email: strings.TrimSpace(u.Email), Password: u.Password}); err != nil {
			return SeedDocument{}, fmt.Errorf("users[%d]: e-mail must be valid and password at least 6 characters", i)
		}
	}
	for i, c := range doc.Customers {
		if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" {
			return SeedDocument{}, fmt.Errorf("customers[%d]: name and email are required", i)
		}
	}
	for i, inv := range doc.Invoices {
		if _, err := validateInvoice(InvoiceInput{CustomerID: inv.CustomerID, Amount: AmountOf(inv.Amount), Status: inv.Status}, "invalid invoice"); err != nil {
			me, _ := AsMutationError(err)
			return SeedDocument{}, fmt.Errorf("invoices[%d]: %v", i, me.FieldErrors)
		}
		if _, err := time.Parse(dateLayout, inv.Date); err != nil {
			return SeedDocument{}, fmt.Errorf("invoices[%d]: date must be YYYY-MM-DD", i)
		}
		if inv.ID != "" {
			if _, err := uuid.Parse(inv.ID); err != nil {
				return SeedDocument{}, fmt.Errorf("invoices[%d]: id must be a uuid", i)
			}
		}
	}
	return doc, nil
}

// LoadSeedFile reads path and applies it with ApplySeed.
func LoadSeedFile(ctx context.Context, path string, stores SeedStores, bcryptCost int) (SeedSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedSummary{}, err
	}
	doc, err := ParseSeed(data)
	if err != nil {
		return SeedSummary{}, err
	}
	return ApplySeed(ctx, doc, stores, bcryptCost)
}

// ApplySeed inserts users (hashing their passwords), customers and invoices.
// Rows that already exist are skipped, so applying the same document again
// inserts nothing.
func ApplySeed(ctx context.Context, doc SeedDocument, stores SeedStores, bcryptCost int) (SeedSummary, error) {
	var sum SeedSummary
	for _, u := range doc.Users {
		hash, err := HashPassword(u.Password, bcryptCost)
		if err != nil {
			return sum, err
		}
		if _, err := stores.Users.Create(ctx, u.Name, strings.TrimSpace(u.Email), hash); err != nil {
			if errors.Is(err, ErrUserExists) {
				continue
			}
			return sum, fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		sum.Users++
	}
	for _, c := range doc.Customers {
		if _, err := stores.Customers.Create(ctx, c); err != nil {
			if errors.Is(err, ErrCustomerExists) {
				continue
			}
			return sum, fmt.Errorf("seed customer %s: %w", c.Name, err)
		}
		sum.Customers++
	}
	for i, in := range doc.Invoices {
		inv, err := validateInvoice(InvoiceInput{CustomerID: in.CustomerID, Amount: AmountOf(in.Amount), Status: in.Status}, "invalid invoice")
		if err != nil {
			return sum, err
		}
		inv.ID = seedInvoiceID(i, in)
		inv.Date = in.Date
		inserted, err := stores.Invoices.InsertIfAbsent(ctx, inv)
		if err != nil {
			return sum, fmt.Errorf("seed invoice %s: %w", inv.ID, err)
		}
		if inserted {
			sum.Invoices++
		}
	}
	log.Printf("[seed] inserted users=%d customers=%d invoices=%d", sum.Users, sum.Customers, sum.Invoices)
	return sum, nil
}

func seedInvoiceID(i int, in SeedInvoice) string {
	if id, err := uuid.Parse(strings.TrimSpace(in.ID)); err == nil {
		return id.String()
	}
	key := fmt.Sprintf("%d|%s|%v|%s|%s", i, strings.TrimSpace(in.CustomerID), in.Amount, in.Status, in.Date)
	return uuid.NewSHA1(seedInvoiceNamespace, []byte(key)).String()
}
