package handlers

import (
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authbase/internal/keys"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyServingHandler(t *testing.T) (*AuthHandler, *keys.RotatingKeyStore) {
	t.Helper()
	store, err := keys.NewRotatingKeyStore(30*time.Minute, time.Hour)
	require.NoError(t, err)
	return &AuthHandler{store: store}, store
}

func doLoginGet(h *AuthHandler, target string) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	_ = h.LoginGet(e.NewContext(req, rec))
	return rec
}

func TestLoginGetServesCurrentPublicKey(t *testing.T) {
	h, store := keyServingHandler(t)
	kid, key, err := store.Current()
	require.NoError(t, err)

	rec := doLoginGet(h, "/login?kid="+kid)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get(echo.HeaderContentType))

	parsed, err := x509.ParsePKIXPublicKey(rec.Body.Bytes())
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))
}

func TestLoginGetUnknownKidIsGone(t *testing.T) {
	h, _ := keyServingHandler(t)
	rec := doLoginGet(h, "/login?kid=00000000-0000-0000-0000-000000000000")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestLoginGetWithoutKidRendersForm(t *testing.T) {
	h, _ := keyServingHandler(t)
	rec := doLoginGet(h, "/login")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)
}

func TestLoginFormEscapesRedirect(t *testing.T) {
	h, _ := keyServingHandler(t)
	rec := doLoginGet(h, `/login?redirect=%22%3E%3Cscript%3E`)
	assert.NotContains(t, rec.Body.String(), "<script>")
}

func TestSafeRedirect(t *testing.T) {
	assert.True(t, safeRedirect("/rest/AppUser"))
	assert.True(t, safeRedirect("https://app.example.com/home"))
	assert.True(t, safeRedirect("http://app.example.com/home?x=1"))

	assert.False(t, safeRedirect("//evil.example.com"))
	assert.False(t, safeRedirect("javascript:alert(1)"))
	assert.False(t, safeRedirect("data:text/html,hi"))
}
