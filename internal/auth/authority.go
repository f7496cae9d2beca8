// Package auth implements stateless API key issuance and validation.
//
// A key embeds the caller's identity and a tamper-evident signature:
//
//	<base64url(userID)>.<hex(sha256("<userID>:<secret>"))[:32]>
//
// The identity segment is reversible without the secret; the signature is
// infeasible to forge without it. No key store exists, so there is no per-key
// revocation: compromised keys are handled by rotating the secret at the
// deployment layer. If revocation is ever needed, add a denylist lookup keyed
// by identity after signature validation rather than changing the scheme.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

const (
	// signatureLength is the number of hex characters of the SHA-256 digest
	// kept in the signature segment.
	signatureLength = 32

	// minSecretLength is the minimum accepted secret size. Shorter secrets
	// make the truncated digest practical to brute-force.
	minSecretLength = 16
)

// Identity is the authenticated caller derived from an API key. It is
// recomputed per request and never persisted.
type Identity struct {
	// UserID is the identifier embedded in the key. Zero for the service
	// identity.
	UserID uint64

	// Service marks the first-party service key, which is exempt from
	// per-identity quotas.
	Service bool
}

// String returns the identity's stable form, used as the rate limiter key
// and in logs.
func (i Identity) String() string {
	if i.Service {
		return "service"
	}
	return strconv.FormatUint(i.UserID, 10)
}

// KeyValidator validates an API key and returns the identity it encodes.
// Implemented by KeyAuthority; consumers depend on this interface so tests
// can substitute a fake.
type KeyValidator interface {
	Validate(apiKey string) (Identity, error)
}

// KeyAuthority issues and validates API keys. It is a pure function of its
// inputs and the configured secret, so a single instance is safe for
// concurrent use.
type KeyAuthority struct {
	secret     string
	serviceKey string
}

// NewKeyAuthority creates a KeyAuthority with the given signing secret.
// serviceKey may be empty; when set, keys matching it exactly validate to
// the service identity without decoding.
func NewKeyAuthority(secret, serviceKey string) (*KeyAuthority, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("key authority secret must be at least %d characters", minSecretLength)
	}
	return &KeyAuthority{secret: secret, serviceKey: serviceKey}, nil
}

// Issue creates the API key for userID. Issuance is deterministic: the same
// userID and secret always produce the same key.
func (a *KeyAuthority) Issue(userID uint64) string {
	id := strconv.FormatUint(userID, 10)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(id))
	return encoded + "." + a.sign(id)
}

// Validate checks apiKey and returns the identity it encodes.
//
// A wrong segment count, an undecodable or non-numeric identity segment, or
// an empty segment yields ErrMalformedKey. A structurally valid key whose
// signature does not match yields ErrInvalidKey. The signature comparison is
// constant time.
func (a *KeyAuthority) Validate(apiKey string) (Identity, error) {
	if apiKey == "" {
		return Identity{}, ErrMissingKey
	}
	if a.serviceKey != "" &&
		subtle.ConstantTimeCompare([]byte(apiKey), []byte(a.serviceKey)) == 1 {
		return Identity{Service: true}, nil
	}

	parts := strings.Split(apiKey, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Identity{}, fmt.Errorf("%w: expected two segments", ErrMalformedKey)
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return Identity{}, fmt.Errorf("%w: undecodable segment", ErrMalformedKey)
	}
	userID, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: undecodable segment", ErrMalformedKey)
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(a.sign(string(raw)))) != 1 {
		return Identity{}, ErrInvalidKey
	}
	return Identity{UserID: userID}, nil
}

// sign computes the truncated hex digest for the decimal identity string.
func (a *KeyAuthority) sign(id string) string {
	sum := sha256.Sum256([]byte(id + ":" + a.secret))
	return hex.EncodeToString(sum[:])[:signatureLength]
}
