package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemorph/internal/store"
	"github.com/codemorph/pkg/models"
)

func TestGenerateAPIKey(t *testing.T) {
	key, hash, prefix, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "cm_"))
	assert.True(t, strings.HasPrefix(key, prefix))
	assert.Len(t, prefix, len("cm_")+8)
	assert.Equal(t, HashAPIKey(key), hash)
	assert.NotContains(t, hash, key[3:])

	key2, hash2, _, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
	assert.NotEqual(t, hash, hash2)
}

func TestSecretBoxRoundTrip(t *testing.T) {
	box, err := NewSecretBox(strings.Repeat("ab", 32))
	require.NoError(t, err)

	sealed, err := box.Encrypt("ghp_supersecrettoken")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "ghp_")

	// Fresh nonce per call.
	sealed2, err := box.Encrypt("ghp_supersecrettoken")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, sealed2)

	plain, err := box.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "ghp_supersecrettoken", plain)
}

func TestSecretBoxRejectsTampering(t *testing.T) {
	box, err := NewSecretBox(strings.Repeat("cd", 32))
	require.NoError(t, err)

	sealed, err := box.Encrypt("token")
	require.NoError(t, err)

	_, err = box.Decrypt(sealed[:len(sealed)-4] + "AAAA")
	assert.Error(t, err)

	other, err := NewSecretBox(strings.Repeat("ef", 32))
	require.NoError(t, err)
	_, err = other.Decrypt(sealed)
	assert.Error(t, err)
}

func TestNewSecretBoxRejectsBadKeys(t *testing.T) {
	_, err := NewSecretBox("not-hex")
	assert.Error(t, err)

	_, err = NewSecretBox("abcd")
	assert.Error(t, err)
}

type fakeResolver struct {
	users map[string]*models.User
}

func (r *fakeResolver) GetUserByAPIKeyHash(_ context.Context, hash string) (*models.User, error) {
	if user, ok := r.users[hash]; ok {
		return user, nil
	}
	return nil, store.ErrNotFound
}

func invokeMiddleware(t *testing.T, resolver UserResolver, authHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := RequireAPIKey(resolver)(func(c echo.Context) error {
		user := GetUser(c)
		require.NotNil(t, user)
		return c.String(http.StatusOK, user.ID)
	})
	return rec, handler(c)
}

func TestRequireAPIKey(t *testing.T) {
	key, hash, _, err := GenerateAPIKey()
	require.NoError(t, err)
	resolver := &fakeResolver{users: map[string]*models.User{
		hash: {ID: "user-1", Email: "dev@example.com"},
	}}

	rec, err := invokeMiddleware(t, resolver, "Bearer "+key)
	require.NoError(t, err)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestRequireAPIKeyRejections(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*models.User{}}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"wrong prefix", "Bearer sk_0123456789"},
		{"unknown key", "Bearer cm_0123456789abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := invokeMiddleware(t, resolver, tt.header)
			require.Error(t, err)
			httpErr, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}
