package keys

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, rotate, expire time.Duration) (*RotatingKeyStore, *time.Time) {
	t.Helper()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store, err := NewRotatingKeyStore(rotate, expire)
	require.NoError(t, err)

	// Rebase the store onto the fake clock so the grace-window tests can
	// advance time deterministically.
	store.now = func() time.Time { return now }
	store.mu.Lock()
	store.lastRotated = now
	for kid, entry := range store.byKid {
		entry.created = now
		store.byKid[kid] = entry
	}
	store.mu.Unlock()
	return store, &now
}

func TestNewStoreRejectsExpireBeforeRotate(t *testing.T) {
	_, err := NewRotatingKeyStore(time.Hour, time.Hour)
	assert.Error(t, err)
	_, err = NewRotatingKeyStore(time.Hour, time.Minute)
	assert.Error(t, err)
}

func TestStoreStartsWithUsableKey(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)

	kid, key, err := store.Current()
	require.NoError(t, err)
	assert.NotEmpty(t, kid)
	require.NotNil(t, key)

	pub, err := store.PublicKey(kid)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&key.PublicKey))
}

func TestUnknownKidNotFound(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)
	_, err := store.PublicKey("no-such-kid")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRotationKeepsOldKeyThroughGraceWindow(t *testing.T) {
	store, now := newTestStore(t, 30*time.Minute, time.Hour)
	oldKid, _, err := store.Current()
	require.NoError(t, err)

	// Past the rotate interval a tick promotes a new signer.
	*now = now.Add(31 * time.Minute)
	store.tick()

	newKid, _, err := store.Current()
	require.NoError(t, err)
	assert.NotEqual(t, oldKid, newKid)

	// The superseded key still verifies until it expires.
	_, err = store.PublicKey(oldKid)
	assert.NoError(t, err)

	// Past the expire interval the old key is evicted, the current is not.
	*now = now.Add(time.Hour)
	store.tick()
	_, err = store.PublicKey(oldKid)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	_, err = store.PublicKey(newKid)
	assert.NoError(t, err)
}

func TestPublicKeyDERRoundTrips(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)
	kid, key, err := store.Current()
	require.NoError(t, err)

	der, err := store.PublicKeyDER(kid)
	require.NoError(t, err)
	parsed, err := x509.ParsePKIXPublicKey(der)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(parsed))
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)
	issuer := NewIssuer(store, "authbase", 30*time.Minute)
	verifier := NewVerifier(StoreResolver{Store: store}, "authbase")

	token, err := issuer.Issue("alice@example.com", map[string]string{"roles": "admin,read_users"})
	require.NoError(t, err)

	subject, claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
	assert.Equal(t, "admin,read_users", claims["roles"])
}

func TestIssueExtraClaimsCannotShadowRegisteredClaims(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)
	issuer := NewIssuer(store, "authbase", 30*time.Minute)
	verifier := NewVerifier(StoreResolver{Store: store}, "authbase")

	token, err := issuer.Issue("alice@example.com", map[string]string{
		"sub":   "mallory@example.com",
		"iss":   "someone-else",
		"roles": "admin",
	})
	require.NoError(t, err)

	subject, claims, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", subject)
	assert.Equal(t, "admin", claims["roles"])
	assert.NotContains(t, claims, "sub")
}

func TestVerifyCollapsesFailures(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)
	issuer := NewIssuer(store, "authbase", 30*time.Minute)
	verifier := NewVerifier(StoreResolver{Store: store}, "authbase")

	good, err := issuer.Issue("alice@example.com", nil)
	require.NoError(t, err)

	// tampered payload
	_, _, err = verifier.Verify(context.Background(), good+"x")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// garbage
	_, _, err = verifier.Verify(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// wrong issuer claim
	other := NewIssuer(store, "someone-else", 30*time.Minute)
	tok, err := other.Issue("alice@example.com", nil)
	require.NoError(t, err)
	_, _, err = verifier.Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	// unsigned token with alg=none style confusion
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"iss": "authbase", "sub": "alice@example.com",
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, _, err = verifier.Verify(context.Background(), raw)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestVerifyExpiredToken(t *testing.T) {
	store, _ := newTestStore(t, 30*time.Minute, time.Hour)
	issuer := NewIssuer(store, "authbase", -time.Minute)
	verifier := NewVerifier(StoreResolver{Store: store}, "authbase")

	tok, err := issuer.Issue("alice@example.com", nil)
	require.NoError(t, err)
	_, _, err = verifier.Verify(context.Background(), tok)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}
