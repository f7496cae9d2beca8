package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/atlas-api/internal/api/shared"
	"github.com/phrazzld/atlas-api/internal/auth"
)

func TestIdentityFromContext(t *testing.T) {
	t.Parallel()

	t.Run("identity present", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/task/get", nil)
		req = req.WithContext(shared.WithIdentity(req.Context(), auth.Identity{UserID: 9}))

		identity, ok := identityFromContext(req)

		assert.True(t, ok)
		assert.Equal(t, uint64(9), identity.UserID)
	})

	t.Run("identity absent", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodPost, "/task/get", nil)

		_, ok := identityFromContext(req)

		assert.False(t, ok)
	})
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		header    string
		wantToken string
		wantOK    bool
	}{
		{
			name:      "bearer token",
			header:    "Bearer abc.def",
			wantToken: "abc.def",
			wantOK:    true,
		},
		{
			name:   "missing header",
			header: "",
			wantOK: false,
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
			wantOK: false,
		},
		{
			name:   "bearer with empty token",
			header: "Bearer ",
			wantOK: false,
		},
		{
			name:   "lowercase scheme is rejected",
			header: "bearer abc.def",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, "/keys/validate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, ok := bearerToken(req)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}
