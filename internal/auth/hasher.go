// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Swiftarr Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptySecret is returned when attempting to hash an empty secret.
var ErrEmptySecret = oops.Code("AUTH_EMPTY_SECRET").Errorf("secret cannot be empty")

// SecretVerifier provides one-way hashing and constant-time verification of
// plaintext secrets. Both operations are CPU-expensive by design; callers
// must treat them as blocking work.
type SecretVerifier interface {
	// Hash produces a one-way hash of the secret.
	Hash(ctx context.Context, secret string) (string, error)

	// Verify checks if the secret matches the hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on
	// invalid hash.
	Verify(ctx context.Context, secret, hash string) (bool, error)
}

// Argon2idVerifier implements SecretVerifier using argon2id. A bounded gate
// caps how many hash computations run at once so hashing work for one
// request cannot starve unrelated concurrent requests.
type Argon2idVerifier struct {
	gate chan struct{}
}

// NewArgon2idVerifier creates an Argon2idVerifier allowing at most
// maxConcurrent simultaneous hash computations. Zero or negative means
// one per CPU.
func NewArgon2idVerifier(maxConcurrent int) *Argon2idVerifier {
	if maxConcurrent <= 0 {
		maxConcurrent = runtime.NumCPU()
	}
	return &Argon2idVerifier{gate: make(chan struct{}, maxConcurrent)}
}

// acquire blocks until a hashing slot is free or the context is done.
// A context that is already done never starts the expensive work.
func (v *Argon2idVerifier) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("AUTH_HASH_CANCELED").Wrap(err)
	}
	select {
	case v.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return oops.Code("AUTH_HASH_CANCELED").Wrap(ctx.Err())
	}
}

func (v *Argon2idVerifier) release() {
	<-v.gate
}

// Hash produces an argon2id hash of the secret.
func (v *Argon2idVerifier) Hash(ctx context.Context, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if err := v.acquire(ctx); err != nil {
		return "", err
	}
	defer v.release()

	// Generate random salt
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as PHC string format
	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks if the secret matches the hash.
func (v *Argon2idVerifier) Verify(ctx context.Context, secret, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	// Validate threads fits in uint8 to prevent silent truncation
	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}

	// Validate key length to prevent integer overflow in uint32 conversion
	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	if err := v.acquire(ctx); err != nil {
		return false, err
	}
	computedHash := argon2.IDKey([]byte(secret), salt, time, memory, uint8(threads), uint32(keyLen))
	v.release()

	// Constant-time comparison
	if subtle.ConstantTimeCompare(computedHash, expectedHash) == 1 {
		return true, nil
	}

	return false, nil
}
