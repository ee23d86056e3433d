package keys

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/sync/singleflight"
)

// ErrAuthenticationFailed is the single error the verifier exposes. Every
// internal failure mode (bad signature, expired token, unknown key, wrong
// issuer, malformed token) collapses into it so responses never tell an
// attacker which check tripped. The real cause is logged server-side.
var ErrAuthenticationFailed = errors.New("authentication failed")

// KeyResolver maps a key id from a token header to the public key that
// signed it.
type KeyResolver interface {
	Resolve(ctx context.Context, kid string) (*rsa.PublicKey, error)
}

// StoreResolver resolves against the local rotating store, for deployments
// where issuer and verifier share a process.
type StoreResolver struct {
	Store *RotatingKeyStore
}

func (r StoreResolver) Resolve(_ context.Context, kid string) (*rsa.PublicKey, error) {
	return r.Store.PublicKey(kid)
}

// Verifier validates session tokens.
type Verifier struct {
	resolver KeyResolver
	issuer   string
}

func NewVerifier(resolver KeyResolver, issuer string) *Verifier {
	return &Verifier{resolver: resolver, issuer: issuer}
}

// Verify parses and validates a token and returns the subject claim along
// with any custom string claims the issuer attached. Any failure returns
// ErrAuthenticationFailed.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (string, map[string]string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return v.resolver.Resolve(ctx, kid)
	})
	if err != nil || !token.Valid {
		log.Debug("token rejected: %v", err)
		return "", nil, ErrAuthenticationFailed
	}
	if !claims.VerifyIssuer(v.issuer, true) {
		log.Debug("token rejected: wrong issuer")
		return "", nil, ErrAuthenticationFailed
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		log.Debug("token rejected: missing subject")
		return "", nil, ErrAuthenticationFailed
	}

	extra := map[string]string{}
	for name, value := range claims {
		switch name {
		case "iss", "sub", "iat", "exp", "jti":
			continue
		}
		if s, ok := value.(string); ok {
			extra[name] = s
		}
	}
	return sub, extra, nil
}

// HTTPKeyResolver fetches public keys from the issuing service's key
// endpoint and caches them. Keys are immutable for a given id, so the cache
// TTL only bounds memory; the TTL stays well under the issuer's key expiry
// so a republished id is never served stale. Concurrent misses for the same
// id collapse into one fetch.
type HTTPKeyResolver struct {
	baseURL string // key endpoint, kid appended verbatim
	client  *http.Client
	ttl     time.Duration
	now     func() time.Time

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedKey
}

type cachedKey struct {
	key     *rsa.PublicKey
	fetched time.Time
}

func NewHTTPKeyResolver(baseURL string, ttl time.Duration) *HTTPKeyResolver {
	return &HTTPKeyResolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     ttl,
		now:     time.Now,
		cache:   make(map[string]cachedKey),
	}
}

func (r *HTTPKeyResolver) Resolve(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	r.mu.RLock()
	entry, ok := r.cache[kid]
	r.mu.RUnlock()
	if ok && r.now().Sub(entry.fetched) < r.ttl {
		return entry.key, nil
	}

	result, err, _ := r.group.Do(kid, func() (interface{}, error) {
		return r.fetch(ctx, kid)
	})
	if err != nil {
		return nil, err
	}
	key := result.(*rsa.PublicKey)

	r.mu.Lock()
	r.cache[kid] = cachedKey{key: key, fetched: r.now()}
	r.mu.Unlock()
	return key, nil
}

func (r *HTTPKeyResolver) fetch(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+kid, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, log.Error("key fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return nil, ErrKeyNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key endpoint returned %s", resp.Status)
	}

	der, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("malformed public key for kid %s: %w", kid, err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key for kid %s is not RSA", kid)
	}
	return pub, nil
}
