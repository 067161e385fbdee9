// Package sealed wraps a persistence.KeyValueStore so values are encrypted
// at rest with a key derived from a passphrase.
package sealed

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/example/agenda/internal/persistence"
)

// SaltKey is the reserved key holding the base64 salt of the store.
const SaltKey = "agenda.sealed.salt"

var (
	// ErrDecrypt indicates a value could not be opened, typically because the
	// passphrase is wrong or the value was tampered with.
	ErrDecrypt = errors.New("sealed: unable to decrypt value")
	// ErrPassphraseRequired is returned by New when the passphrase is blank.
	ErrPassphraseRequired = errors.New("sealed: passphrase is required")
	// ErrReservedKey is returned when callers use SaltKey directly.
	ErrReservedKey = errors.New("sealed: key is reserved")
)

// Argon2idParams controls key derivation.
type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
}

// DefaultArgon2idParams are used unless WithParams overrides them.
var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
}

// Option customises a Store.
type Option func(*Store)

// WithParams overrides the key derivation parameters.
func WithParams(params Argon2idParams) Option {
	return func(s *Store) { s.params = params }
}

// Store seals values with XChaCha20-Poly1305 before handing them to the
// wrapped store.
type Store struct {
	inner      persistence.KeyValueStore
	passphrase []byte
	params     Argon2idParams

	mu   sync.Mutex
	aead cipher.AEAD
}

var _ persistence.KeyValueStore = (*Store)(nil)

// New wraps inner. The salt is read or created on first use.
func New(inner persistence.KeyValueStore, passphrase string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrPassphraseRequired
	}
	s := &Store{
		inner:      inner,
		passphrase: []byte(passphrase),
		params:     DefaultArgon2idParams,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get implements persistence.KeyValueStore.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	if key == SaltKey {
		return "", ErrReservedKey
	}
	raw, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}
	aead, err := s.cipher(ctx)
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(sealed) < aead.NonceSize() {
		return "", ErrDecrypt
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, []byte(key))
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// Set implements persistence.KeyValueStore.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if key == SaltKey {
		return ErrReservedKey
	}
	if err := persistence.ValidateKey(key); err != nil {
		return err
	}
	aead, err := s.cipher(ctx)
	if err != nil {
		return err
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(value)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("sealed: generate nonce: %w", err)
	}
	// The key is bound as additional data so values cannot be swapped
	// between keys.
	sealed := aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

// Remove implements persistence.KeyValueStore.
func (s *Store) Remove(ctx context.Context, key string) error {
	if key == SaltKey {
		return ErrReservedKey
	}
	return s.inner.Remove(ctx, key)
}

// Clear implements persistence.KeyValueStore. The salt is discarded too, so
// the next write derives a fresh key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.inner.Clear(ctx); err != nil {
		return err
	}
	s.aead = nil
	return nil
}

func (s *Store) cipher(ctx context.Context) (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aead != nil {
		return s.aead, nil
	}

	salt, err := s.loadSalt(ctx)
	if err != nil {
		return nil, err
	}
	key := argon2.IDKey(s.passphrase, salt, s.params.Iterations, s.params.Memory, s.params.Parallelism, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealed: init cipher: %w", err)
	}
	s.aead = aead
	return aead, nil
}

func (s *Store) loadSalt(ctx context.Context) ([]byte, error) {
	encoded, err := s.inner.Get(ctx, SaltKey)
	switch {
	case err == nil:
		salt, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil || len(salt) == 0 {
			return nil, fmt.Errorf("sealed: corrupt salt: %w", ErrDecrypt)
		}
		return salt, nil
	case errors.Is(err, persistence.ErrNotFound):
	default:
		return nil, fmt.Errorf("sealed: read salt: %w", err)
	}

	length := s.params.SaltLength
	if length == 0 {
		length = DefaultArgon2idParams.SaltLength
	}
	salt := make([]byte, length)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("sealed: generate salt: %w", err)
	}
	if err := s.inner.Set(ctx, SaltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("sealed: store salt: %w", err)
	}
	return salt, nil
}
