package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/atlas-api/internal/auth"
)

const (
	testSigningSecret = "0123456789abcdef0123456789abcdef"
	testServiceKey    = "frontend-service-key"
)

// tamper flips the last character of a key so the signature no longer
// matches.
func tamper(key string) string {
	last := key[len(key)-1]
	if last == '0' {
		return key[:len(key)-1] + "1"
	}
	return key[:len(key)-1] + "0"
}

func keyRequest(authHeader string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/keys/validate", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	return req
}

func TestValidateKey(t *testing.T) {
	t.Parallel()

	authority, err := auth.NewKeyAuthority(testSigningSecret, testServiceKey)
	require.NoError(t, err)

	handler := NewKeyHandler(authority, discardLogger())

	t.Run("user key", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler.ValidateKey(recorder, keyRequest("Bearer "+authority.Issue(42)))

		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp KeyValidationResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.Equal(t, uint64(42), resp.UserID)
		assert.NotContains(t, recorder.Body.String(), "service")
	})

	t.Run("service key", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler.ValidateKey(recorder, keyRequest("Bearer "+testServiceKey))

		assert.Equal(t, http.StatusOK, recorder.Code)

		var resp KeyValidationResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.True(t, resp.Valid)
		assert.True(t, resp.Service)
		assert.NotContains(t, recorder.Body.String(), "user_id")
	})

	t.Run("tampered key", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler.ValidateKey(recorder, keyRequest("Bearer "+tamper(authority.Issue(42))))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)

		var resp KeyValidationResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		assert.False(t, resp.Valid)
	})

	t.Run("garbage key", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler.ValidateKey(recorder, keyRequest("Bearer garbage"))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"valid":false`)
	})

	t.Run("missing header", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler.ValidateKey(recorder, keyRequest(""))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"valid":false`)
	})

	t.Run("non-bearer header", func(t *testing.T) {
		t.Parallel()

		recorder := httptest.NewRecorder()
		handler.ValidateKey(recorder, keyRequest("Basic dXNlcjpwYXNz"))

		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), `"valid":false`)
	})
}
