// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// MaxPasswordBytes is the upper bound on password input length. Anything
// longer is rejected before hashing to keep memory-hard hashing costs
// bounded.
const MaxPasswordBytes = 1024

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// Argon2Params defines the argon2id cost parameters. The work factor is a
// monotonic knob: raising it does not invalidate stored hashes because each
// hash embeds the parameters it was produced with.
type Argon2Params struct {
	Memory      uint32 // KiB
	Time        uint32 // iterations
	Parallelism uint8
	SaltLength  uint32 // bytes
	KeyLength   uint32 // bytes
}

// DefaultArgon2Params returns OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024,
		Time:        1,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password with a fresh random salt.
	Hash(password string) (string, error)

	// Verify checks if the password matches the hash. Malformed hash input
	// yields false, never an error.
	Verify(password, hash string) bool

	// NeedsRehash returns true if the hash was produced with weaker cost
	// parameters than currently configured.
	NeedsRehash(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id with injected
// cost parameters.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher. Zero-value fields in params
// fall back to defaults so a partially specified configuration cannot
// silently weaken hashing.
func NewArgon2idHasher(params Argon2Params) *Argon2idHasher {
	def := DefaultArgon2Params()
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Parallelism == 0 {
		params.Parallelism = def.Parallelism
	}
	if params.SaltLength == 0 {
		params.SaltLength = def.SaltLength
	}
	if params.KeyLength == 0 {
		params.KeyLength = def.KeyLength
	}
	return &Argon2idHasher{params: params}
}

// Hash produces a PHC-encoded argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordBytes {
		return "", oops.Code("AUTH_PASSWORD_TOO_LONG").
			With("max_bytes", MaxPasswordBytes).
			Wrap(ErrPasswordTooLong)
	}

	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Parallelism, h.params.KeyLength)

	// PHC string format: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the password matches the encoded hash using the salt and
// parameters embedded in it. Any parse failure is treated as a mismatch.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	memory, time, threads, salt, expected, ok := decodeHash(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(expected)))

	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// NeedsRehash reports whether the hash should be recomputed under the
// configured parameters. Unparseable hashes always need a rehash.
func (h *Argon2idHasher) NeedsRehash(encodedHash string) bool {
	memory, time, threads, _, key, ok := decodeHash(encodedHash)
	if !ok {
		return true
	}
	return memory < h.params.Memory ||
		time < h.params.Time ||
		threads < h.params.Parallelism ||
		uint32(len(key)) < h.params.KeyLength
}

// decodeHash parses a PHC argon2id string into its parameters, salt, and key.
func decodeHash(encodedHash string) (memory, time uint32, threads uint8, salt, key []byte, ok bool) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return 0, 0, 0, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return 0, 0, 0, nil, nil, false
	}

	var threads32 uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads32); err != nil {
		return 0, 0, 0, nil, nil, false
	}
	// Reject values that would truncate in the argon2 call.
	if threads32 == 0 || threads32 > 255 {
		return 0, 0, 0, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return 0, 0, 0, nil, nil, false
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > 1<<10 {
		return 0, 0, 0, nil, nil, false
	}

	return memory, time, uint8(threads32), salt, key, true
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
