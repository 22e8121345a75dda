package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptVerifier(t *testing.T) {
	hash, err := HashPassword("123456", bcrypt.MinCost)
	require.NoError(t, err)

	v := BcryptVerifier{}
	assert.True(t, v.Verify("123456", hash))
	assert.False(t, v.Verify("1234567", hash))
	assert.False(t, v.Verify("", hash))
}

func TestBcryptVerifier_FailsClosed(t *testing.T) {
	v := BcryptVerifier{}
	assert.False(t, v.Verify("123456", ""))
	assert.False(t, v.Verify("123456", "not-a-hash"))
	assert.False(t, v.Verify("123456", "$2a$10$short"))
}

func TestHashPassword_SaltsEachHash(t *testing.T) {
	a, err := HashPassword("123456", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("123456", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashPassword_OutOfRangeCostUsesDefault(t *testing.T) {
	hash, err := HashPassword("123456", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestDummyHashNeverMatchesEmptyInput(t *testing.T) {
	require.NotEmpty(t, dummyHash)
	assert.False(t, BcryptVerifier{}.Verify("", dummyHash))
}
