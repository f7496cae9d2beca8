package auth

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "integration-test-secret-0123456789"

func newTestAuthority(t *testing.T) *KeyAuthority {
	t.Helper()
	a, err := NewKeyAuthority(testSecret, "")
	require.NoError(t, err)
	return a
}

func TestNewKeyAuthority_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewKeyAuthority("too-short", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least")
}

func TestKeyAuthority_IssueValidateRoundtrip(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)

	userIDs := []uint64{1, 42, 1234500, 987654321098765432, ^uint64(0)}
	for _, userID := range userIDs {
		key := a.Issue(userID)

		// Issued keys are two dot-separated segments with a 32-char signature.
		parts := strings.Split(key, ".")
		require.Len(t, parts, 2)
		assert.Len(t, parts[1], 32)
		assert.NotContains(t, parts[0], "=")

		identity, err := a.Validate(key)
		require.NoError(t, err)
		assert.Equal(t, userID, identity.UserID)
		assert.False(t, identity.Service)
	}
}

func TestKeyAuthority_IssueIsDeterministic(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)
	assert.Equal(t, a.Issue(777), a.Issue(777))
}

func TestKeyAuthority_TruncatedKeyFailsValidation(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)
	key := a.Issue(1234500)

	_, err := a.Validate(key[:len(key)-1])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrMalformedKey))
}

func TestKeyAuthority_SingleCharacterMutationsFail(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)
	key := a.Issue(1234500)

	for i := 0; i < len(key); i++ {
		mutated := []byte(key)
		if mutated[i] == 'x' {
			mutated[i] = 'y'
		} else {
			mutated[i] = 'x'
		}

		identity, err := a.Validate(string(mutated))
		require.Errorf(t, err, "mutation at index %d validated as user %d", i, identity.UserID)
		assert.True(t, errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrMalformedKey),
			"mutation at index %d returned unexpected error %v", i, err)
	}
}

func TestKeyAuthority_MalformedInputs(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)

	cases := []struct {
		name string
		key  string
	}{
		{name: "no separator", key: "MTIzNDU2abcdef0123456789"},
		{name: "extra separator", key: "MTIz.NDU2.abcdef"},
		{name: "empty identity segment", key: ".abcdef0123456789abcdef0123456789"},
		{name: "empty signature segment", key: "MTIz."},
		{name: "identity not base64url", key: "!!!.abcdef0123456789abcdef0123456789"},
		{name: "identity not numeric", key: "bm90LWEtbnVtYmVy.abcdef0123456789abcdef0123456789"},
		{name: "padded identity segment", key: "MTIzNA==.abcdef0123456789abcdef0123456789"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := a.Validate(tc.key)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}

func TestKeyAuthority_EmptyKey(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)
	_, err := a.Validate("")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestKeyAuthority_KeyFromDifferentSecretIsInvalid(t *testing.T) {
	t.Parallel()

	a := newTestAuthority(t)
	other, err := NewKeyAuthority("a-completely-different-secret-42", "")
	require.NoError(t, err)

	_, err = a.Validate(other.Issue(1234500))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestKeyAuthority_ServiceKey(t *testing.T) {
	t.Parallel()

	a, err := NewKeyAuthority(testSecret, "frontend-service-key-abcdef")
	require.NoError(t, err)

	identity, err := a.Validate("frontend-service-key-abcdef")
	require.NoError(t, err)
	assert.True(t, identity.Service)
	assert.Equal(t, "service", identity.String())

	// A near-miss falls through to normal validation and fails.
	_, err = a.Validate("frontend-service-key-abcdeg")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidKey) || errors.Is(err, ErrMalformedKey))
}

func TestIsAuthError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAuthError(ErrMalformedKey))
	assert.True(t, IsAuthError(ErrInvalidKey))
	assert.True(t, IsAuthError(ErrMissingKey))
	assert.False(t, IsAuthError(errors.New("unrelated")))
}
