package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	console "authbase/internal/utils/logger"

	"github.com/google/uuid"
)

var log = console.New("KEYS")

// ErrKeyNotFound means the requested key id is unknown or has aged out.
// Clients holding tokens signed with an expired key must re-authenticate.
var ErrKeyNotFound = errors.New("signing key not found")

const rsaKeyBits = 2048

type keyEntry struct {
	key     *rsa.PrivateKey
	created time.Time
}

// RotatingKeyStore maintains the RSA signing key pairs for token issuance.
// A fresh pair is generated every rotate interval and becomes the current
// signer; superseded pairs stay resolvable for verification until the expire
// interval passes, so tokens signed just before a rotation remain valid for
// their natural lifetime. Expire must exceed rotate or a key could vanish
// while still the active signer.
type RotatingKeyStore struct {
	rotate time.Duration
	expire time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	byKid   map[string]keyEntry
	current atomic.Value // string kid

	lastRotated time.Time
}

func NewRotatingKeyStore(rotate, expire time.Duration) (*RotatingKeyStore, error) {
	if expire <= rotate {
		return nil, errors.New("key expire interval must exceed the rotate interval")
	}
	s := &RotatingKeyStore{
		rotate: rotate,
		expire: expire,
		now:    time.Now,
		byKid:  make(map[string]keyEntry),
	}
	if err := s.rotateNow(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the maintenance loop until ctx is cancelled. The loop wakes
// every second so a rotation lands within a second of its due time rather
// than drifting by the rotate interval.
func (s *RotatingKeyStore) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *RotatingKeyStore) tick() {
	s.mu.Lock()
	due := s.now().Sub(s.lastRotated) >= s.rotate
	s.evictExpiredLocked()
	s.mu.Unlock()

	if due {
		if err := s.rotateNow(); err != nil {
			log.Error("key rotation failed, keeping previous signer", err)
		}
	}
}

// rotateNow generates a key pair and promotes it to current signer.
func (s *RotatingKeyStore) rotateNow() error {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return err
	}
	kid := uuid.NewString()

	s.mu.Lock()
	s.byKid[kid] = keyEntry{key: key, created: s.now()}
	s.lastRotated = s.now()
	s.mu.Unlock()
	s.current.Store(kid)

	log.Info("rotated signing key, current kid %s", kid)
	return nil
}

func (s *RotatingKeyStore) evictExpiredLocked() {
	cutoff := s.now().Add(-s.expire)
	currentKid, _ := s.current.Load().(string)
	for kid, entry := range s.byKid {
		if kid != currentKid && entry.created.Before(cutoff) {
			delete(s.byKid, kid)
			log.Debug("expired signing key %s", kid)
		}
	}
}

// Current returns the active signing key and its id.
func (s *RotatingKeyStore) Current() (kid string, key *rsa.PrivateKey, err error) {
	kid, _ = s.current.Load().(string)
	s.mu.RLock()
	entry, ok := s.byKid[kid]
	s.mu.RUnlock()
	if !ok {
		return "", nil, ErrKeyNotFound
	}
	return kid, entry.key, nil
}

// PublicKey returns the public half for a key id, or ErrKeyNotFound once the
// key has been evicted.
func (s *RotatingKeyStore) PublicKey(kid string) (*rsa.PublicKey, error) {
	s.mu.RLock()
	entry, ok := s.byKid[kid]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrKeyNotFound
	}
	return &entry.key.PublicKey, nil
}

// PublicKeyDER returns the PKIX DER encoding of the public half for a key
// id, the wire form served to verifying peers.
func (s *RotatingKeyStore) PublicKeyDER(kid string) ([]byte, error) {
	pub, err := s.PublicKey(kid)
	if err != nil {
		return nil, err
	}
	return x509.MarshalPKIXPublicKey(pub)
}
