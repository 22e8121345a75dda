package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawAmount_UnmarshalJSON(t *testing.T) {
	cases := map[string]RawAmount{
		`{"amount": 19.9}`:   "19.9",
		`{"amount": "19.9"}`: "19.9",
		`{"amount": null}`:   "",
		`{"amount": "abc"}`:  "abc",
		`{}`:                 "",
	}
	for body, want := range cases {
		var in InvoiceInput
		require.NoError(t, json.Unmarshal([]byte(body), &in), body)
		assert.Equal(t, want, in.Amount, body)
	}

	var in InvoiceInput
	assert.Error(t, json.Unmarshal([]byte(`{"amount": true}`), &in))
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(1990), toCents(19.9))
	assert.Equal(t, int64(15795), toCents(157.95))
	assert.Equal(t, int64(1), toCents(0.005))
	assert.Equal(t, int64(0), toCents(0))
}

func TestParseAmount(t *testing.T) {
	for _, raw := range []string{"", "  ", "abc", "NaN", "Inf", "-0.01", "1e300"} {
		_, err := parseAmount(raw)
		assert.Error(t, err, raw)
	}
	f, err := parseAmount(" 12.50 ")
	require.NoError(t, err)
	assert.Equal(t, 12.5, f)
}

func TestParseAmount_UpperBound(t *testing.T) {
	f, err := parseAmount("100000000000")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000_000_000), toCents(f))

	for _, raw := range []string{"100000000000.01", "92233720368547758", "92233720368547757", "1e17"} {
		_, err := parseAmount(raw)
		assert.EqualError(t, err, "amount is too large", raw)
	}
}
