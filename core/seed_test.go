package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSeed = `users:
  - name: User
    email: user@nextmail.com
    password: "123456"
customers:
  - id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
    name: Delba de Oliveira
    email: delba@oliveira.com
    image_url: /customers/delba-de-oliveira.png
invoices:
  - id: 0b7c3a4e-1d2f-4e5a-8b9c-0d1e2f3a4b5c
    customer_id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
    amount: 157.95
    status: pending
    date: "2022-12-06"
  - customer_id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
    amount: 20.348
    status: paid
    date: "2022-11-14"
`

type memUserRepo struct {
	byEmail map[string]*User
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (r *memUserRepo) Create(_ context.Context, name, email, hash string) (string, error) {
	if r.byEmail == nil {
		r.byEmail = map[string]*User{}
	}
	if _, ok := r.byEmail[email]; ok {
		return "", ErrUserExists
	}
	r.byEmail[email] = &User{ID: email, Name: name, Email: email, PasswordHash: hash}
	return email, nil
}

func (r *memUserRepo) HasAny(context.Context) (bool, error) { return len(r.byEmail) > 0, nil }

type memCustomerRepo struct {
	items map[string]Customer
}

func (r *memCustomerRepo) List(context.Context) ([]Customer, error) {
	out := make([]Customer, 0, len(r.items))
	for _, c := range r.items {
		out = append(out, c)
	}
	return out, nil
}

func (r *memCustomerRepo) Create(_ context.Context, c Customer) (string, error) {
	if r.items == nil {
		r.items = map[string]Customer{}
	}
	if _, ok := r.items[c.ID]; ok {
		return "", ErrCustomerExists
	}
	r.items[c.ID] = c
	return c.ID, nil
}

func TestParseSeed(t *testing.T) {
	doc, err := ParseSeed([]byte(testSeed))
	require.NoError(t, err)
	assert.Len(t, doc.Users, 1)
	assert.Equal(t, "/customers/delba-de-oliveira.png", doc.Customers[0].ImageURL)
	assert.Equal(t, 157.95, doc.Invoices[0].Amount)
}

func TestParseSeed_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":    "users: [",
		"short pass":  "users:\n  - email: a@b.co\n    password: \"123\"\n",
		"no customer": "customers:\n  - email: a@b.co\n",
		"bad status":  "invoices:\n  - customer_id: x\n    amount: 1\n    status: overdue\n    date: \"2022-12-06\"\n",
		"bad date":    "invoices:\n  - customer_id: x\n    amount: 1\n    status: paid\n    date: \"06/12/2022\"\n",
		"negative":    "invoices:\n  - customer_id: x\n    amount: -5\n    status: paid\n    date: \"2022-12-06\"\n",
		"bad id":      "invoices:\n  - id: nope\n    customer_id: x\n    amount: 1\n    status: paid\n    date: \"2022-12-06\"\n",
	}
	for name, doc := range cases {
		_, err := ParseSeed([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestApplySeed_IsRepeatable(t *testing.T) {
	doc, err := ParseSeed([]byte(testSeed))
	require.NoError(t, err)

	users := &memUserRepo{}
	customers := &memCustomerRepo{}
	invoices := newMemInvoiceStore()
	stores := SeedStores{Users: users, Customers: customers, Invoices: invoices}

	sum, err := ApplySeed(context.Background(), doc, stores, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{Users: 1, Customers: 1, Invoices: 2}, sum)

	u := users.byEmail["user@nextmail.com"]
	require.NotNil(t, u)
	assert.NotEqual(t, "123456", u.PasswordHash)
	assert.True(t, BcryptVerifier{}.Verify("123456", u.PasswordHash))

	got, err := invoices.Get(context.Background(), "0b7c3a4e-1d2f-4e5a-8b9c-0d1e2f3a4b5c")
	require.NoError(t, err)
	assert.Equal(t, int64(15795), got.AmountCents)

	derived := seedInvoiceID(1, doc.Invoices[1])
	got, err = invoices.Get(context.Background(), derived)
	require.NoError(t, err)
	assert.Equal(t, int64(2035), got.AmountCents)
	assert.Equal(t, "2022-11-14", got.Date)

	sum, err = ApplySeed(context.Background(), doc, stores, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, SeedSummary{Users: 0, Customers: 0, Invoices: 0}, sum)
	assert.Len(t, invoices.rows, 2)
}

func TestSeedInvoiceID(t *testing.T) {
	in := SeedInvoice{CustomerID: testCustomerID, Amount: 10, Status: "paid", Date: "2022-12-06"}
	assert.Equal(t, seedInvoiceID(0, in), seedInvoiceID(0, in), "stable across runs")
	assert.NotEqual(t, seedInvoiceID(0, in), seedInvoiceID(1, in), "identical entries stay distinct")

	in.ID = "0B7C3A4E-1D2F-4E5A-8B9C-0D1E2F3A4B5C"
	assert.Equal(t, "0b7c3a4e-1d2f-4e5a-8b9c-0d1e2f3a4b5c", seedInvoiceID(0, in))
}

func TestBootstrapUser(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		BootstrapUserEnabled:    true,
		InitialUserEmail:        "user@nextmail.com",
		InitialUserPasswordPath: dir + "/initial-password",
		BcryptCost:              bcrypt.MinCost,
	}
	repo := &memUserRepo{}
	require.NoError(t, BootstrapUser(context.Background(), repo, cfg))
	require.Contains(t, repo.byEmail, "user@nextmail.com")

	// second run leaves the existing user alone
	before := repo.byEmail["user@nextmail.com"].PasswordHash
	require.NoError(t, BootstrapUser(context.Background(), repo, cfg))
	assert.Equal(t, before, repo.byEmail["user@nextmail.com"].PasswordHash)
}
