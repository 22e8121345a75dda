package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "dashctl dev\n", out)
}

func TestHashPasswordCmd(t *testing.T) {
	out, err := run(t, "123456\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("123456")))
}

func TestHashPasswordCmd_RejectsShortPassword(t *testing.T) {
	_, err := run(t, "abc\n", "hash-password", "--cost", "4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6")
}

func TestDecideCmd(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{[]string{"decide", "/dashboard/invoices"}, "redirect /login\n"},
		{[]string{"decide", "/dashboard/invoices", "--signed-in"}, "allow\n"},
		{[]string{"decide", "/login", "--signed-in"}, "redirect /dashboard\n"},
		{[]string{"decide", "/login"}, "allow\n"},
	}
	for _, tc := range cases {
		out, err := run(t, "", tc.args...)
		require.NoError(t, err)
		assert.Equal(t, tc.want, out, strings.Join(tc.args, " "))
	}
}

func TestSeedCmd_CheckOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `users:
  - name: User
    email: user@nextmail.com
    password: "123456"
customers:
  - id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
    name: Delba de Oliveira
    email: delba@oliveira.com
    image_url: /customers/delba-de-oliveira.png
invoices:
  - customer_id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
    amount: 157.95
    status: pending
    date: "2022-12-06"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, err := run(t, "", "seed", "--check", path)
	require.NoError(t, err)
	assert.Equal(t, "ok: users=1 customers=1 invoices=1\n", out)
}

func TestSeedCmd_CheckRejectsBadInvoice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	doc := `invoices:
  - customer_id: 3958dc9e-712f-4377-85e9-fec4b6a6442a
    amount: -1
    status: pending
    date: "2022-12-06"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := run(t, "", "seed", "--check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoices[0]")
}
