//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package field

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20"
)

// NewSeededRNG returns a deterministic io.Reader keyed by seed, used
// for reproducible test runs and for PRZS's paired per-player
// streams. seed is stretched to a 32-byte ChaCha20 key and a fixed
// nonce derived from label so two streams built from the same seed
// but different labels never collide.
func NewSeededRNG(seed []byte, label byte) (io.Reader, error) {
	key := make([]byte, chacha20.KeySize)
	copy(key, stretch(seed, chacha20.KeySize))

	nonce := make([]byte, chacha20.NonceSize)
	nonce[0] = label

	cipher, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, errors.Wrap(err, "field: new seeded rng")
	}
	return &cipherReader{cipher: cipher}, nil
}

// NewRandomSeed returns fresh cryptographically secure seed material,
// used when a suite is not configured with an explicit deterministic
// seed.
func NewRandomSeed(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, errors.Wrap(err, "field: new random seed")
	}
	return b, nil
}

// stretch expands or truncates seed to exactly n bytes by repeated
// concatenation; callers that need cryptographic stretching should
// pass an already appropriately sized seed (e.g. from HKDF).
func stretch(seed []byte, n int) []byte {
	if len(seed) >= n {
		return seed[:n]
	}
	out := make([]byte, n)
	for i := range out {
		out[i] = seed[i%len(seed)]
	}
	return out
}

// cipherReader adapts a chacha20.Cipher into an io.Reader by XORing a
// zero buffer, i.e. emitting the raw keystream.
type cipherReader struct {
	cipher *chacha20.Cipher
}

func (r *cipherReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	r.cipher.XORKeyStream(p, p)
	return len(p), nil
}
