package keys

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Issuer mints short-lived RS256 session tokens signed with whatever key is
// current at call time. The key id rides in the token header so verifiers can
// fetch the matching public key.
type Issuer struct {
	store  *RotatingKeyStore
	issuer string
	ttl    time.Duration
}

func NewIssuer(store *RotatingKeyStore, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{store: store, issuer: issuer, ttl: ttl}
}

// Issue signs a token identifying subject (the user's email). The extra
// claims ride along as authorization hints for services that cannot reach
// the user store; they can never shadow the registered claims.
func (i *Issuer) Issue(subject string, extra map[string]string) (string, error) {
	kid, key, err := i.store.Current()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": i.issuer,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(i.ttl).Unix(),
		"jti": uuid.NewString(),
	}
	for name, value := range extra {
		if _, reserved := claims[name]; !reserved {
			claims[name] = value
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	return token.SignedString(key)
}
