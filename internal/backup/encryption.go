package backup

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/axonops/axonops-schema-registry/internal/kms"
)

// Envelope seals and opens V3 frames with AES-256-GCM under a data key
// resolved through a kms.Provider, repurposing the KMS wiring the teacher
// built for per-schema DEK/KEK encryption (DESIGN.md's "Repurposed teacher
// dependencies"). Standard-library crypto/aes and crypto/cipher supply the
// AEAD itself; no third-party cipher package in the pack improves on them.
type Envelope struct {
	aead cipher.AEAD
}

// NewEnvelope wraps a 16/24/32-byte plaintext data key into an AES-GCM
// AEAD.
func NewEnvelope(dataKey []byte) (*Envelope, error) {
	block, err := aes.NewCipher(dataKey)
	if err != nil {
		return nil, fmt.Errorf("constructing AES cipher for backup envelope: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing GCM mode for backup envelope: %w", err)
	}
	return &Envelope{aead: aead}, nil
}

// Seal encrypts plaintext, returning nonce||ciphertext.
func (e *Envelope) Seal(plaintext []byte) []byte {
	nonce := make([]byte, e.aead.NonceSize())
	_, _ = rand.Read(nonce)
	return e.aead.Seal(nonce, nonce, plaintext, nil)
}

// Open reverses Seal.
func (e *Envelope) Open(sealed []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed backup frame shorter than nonce size")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	return e.aead.Open(nil, nonce, ciphertext, nil)
}

// NewEnvelopeForCreate asks provider to mint a fresh data key for a new V3
// backup, returning the Envelope to seal frames with and the KMS-wrapped
// form of the key to persist in the sidecar metadata so restore can
// recover it.
func NewEnvelopeForCreate(ctx context.Context, provider kms.Provider, kmsKeyID string) (*Envelope, []byte, error) {
	plaintext, wrapped, err := provider.GenerateDataKey(ctx, kmsKeyID, "AES256_GCM", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("generating backup envelope data key: %w", err)
	}
	envelope, err := NewEnvelope(plaintext)
	if err != nil {
		return nil, nil, err
	}
	return envelope, wrapped, nil
}

// NewEnvelopeForRestore unwraps a data key previously persisted by
// NewEnvelopeForCreate.
func NewEnvelopeForRestore(ctx context.Context, provider kms.Provider, kmsKeyID string, wrapped []byte) (*Envelope, error) {
	plaintext, err := provider.Unwrap(ctx, kmsKeyID, wrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrapping backup envelope data key: %w", err)
	}
	return NewEnvelope(plaintext)
}
