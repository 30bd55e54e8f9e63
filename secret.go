package replica

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Secret errors.
var (
	ErrCiphertextShort  = errors.New("ciphertext too short")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// secretSlot holds key material sealed under a per-secret XChaCha20-Poly1305
// key. The plaintext is never stored; duplication reseals under a fresh key.
type secretSlot struct {
	key       []byte
	sealed    []byte
	algorithm string
	usages    []string
}

// NewSecret seals plaintext into a secret object. Secrets can only be
// duplicated through an awaited reseal, so they clone in async mode only.
func NewSecret(plaintext []byte, algorithm string, usages ...string) (*Object, error) {
	s, err := sealSecret(plaintext, algorithm, usages)
	if err != nil {
		return nil, err
	}
	return newObject(SecretPrototype, s), nil
}

func sealSecret(plaintext []byte, algorithm string, usages []string) (*secretSlot, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generate secret key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate secret nonce: %w", err)
	}

	// Prepend nonce to ciphertext
	return &secretSlot{
		key:       key,
		sealed:    aead.Seal(nonce, nonce, plaintext, []byte(algorithm)),
		algorithm: algorithm,
		usages:    append([]string(nil), usages...),
	}, nil
}

func (s *secretSlot) open() ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(s.sealed) < nonceSize {
		return nil, ErrCiphertextShort
	}

	nonce, ciphertext := s.sealed[:nonceSize], s.sealed[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(s.algorithm))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// reseal duplicates the secret under fresh key material.
func (s *secretSlot) reseal(ctx context.Context) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	plaintext, err := s.open()
	if err != nil {
		return nil, err
	}
	dup, err := sealSecret(plaintext, s.algorithm, s.usages)
	if err != nil {
		return nil, err
	}
	return newObject(SecretPrototype, dup), nil
}

// Reveal opens a secret and returns its plaintext, algorithm and usages.
func (o *Object) Reveal() (plaintext []byte, algorithm string, usages []string, err error) {
	s, ok := o.slot.(*secretSlot)
	if !ok {
		return nil, "", nil, fmt.Errorf("reveal: %w", ErrUnsupported)
	}
	plaintext, err = s.open()
	if err != nil {
		return nil, "", nil, err
	}
	return plaintext, s.algorithm, append([]string(nil), s.usages...), nil
}

// sealedBytes exposes the ciphertext so tests can check reseals differ.
func (o *Object) sealedBytes() []byte {
	if s, ok := o.slot.(*secretSlot); ok {
		return s.sealed
	}
	return nil
}

// Duplicator produces a copy of an external resource through an awaited operation.
type Duplicator func(ctx context.Context) (Value, error)

type asyncResourceSlot struct {
	label string
	dup   Duplicator
}

// NewAsyncResource wraps an opaque handle that can only be duplicated by dup.
func NewAsyncResource(label string, dup Duplicator) *Object {
	return newObject(AsyncResourcePrototype, &asyncResourceSlot{label: label, dup: dup})
}

// ResourceLabel returns the label of an async resource.
func (o *Object) ResourceLabel() (string, bool) {
	r, ok := o.slot.(*asyncResourceSlot)
	if !ok {
		return "", false
	}
	return r.label, true
}
