// Package cryptox contains the password hashing primitive used for account
// credentials.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/edumate/internal/common"
	"golang.org/x/crypto/argon2"
)

// Argon2Params configures the argon2id key derivation.
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	SaltLen int
	KeyLen  uint32
}

// DefaultArgon2Params mirrors the parameters recommended for argon2id in RFC 9106
// for memory-constrained servers.
var DefaultArgon2Params = Argon2Params{
	Memory:  64 * 1024,
	Time:    1,
	Threads: 4,
	SaltLen: 16,
	KeyLen:  32,
}

var (
	ErrEmptyPassword    = errors.New("password must not be empty")
	errMalformedDigest  = errors.New("malformed password digest")
	errIncompatibleAlgo = errors.New("incompatible digest algorithm")
)

// PasswordHasher produces salted one-way digests and verifies plaintext
// against them. It holds no mutable state and is safe for concurrent use.
type PasswordHasher struct {
	params Argon2Params
}

func NewPasswordHasher(p Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: p}
}

// Hash derives an argon2id key from plaintext and a fresh random salt and
// returns it in the encoded form
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
func (h *PasswordHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	salt := common.GenerateRandByteArray(h.params.SaltLen)
	pw := []byte(plaintext)
	defer common.WipeByteArray(pw)

	key := argon2.IDKey(pw, salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches digest. Parameters embedded in the
// digest win over the hasher's own, so old digests keep verifying after the
// defaults change. Malformed digests never verify.
func (h *PasswordHasher) Verify(digest, plaintext string) bool {
	p, salt, key, err := decodeDigest(digest)
	if err != nil {
		return false
	}

	pw := []byte(plaintext)
	defer common.WipeByteArray(pw)

	candidate := argon2.IDKey(pw, salt, p.Time, p.Memory, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, candidate) == 1
}

func decodeDigest(digest string) (Argon2Params, []byte, []byte, error) {
	var p Argon2Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 {
		return p, nil, nil, errMalformedDigest
	}
	if parts[1] != "argon2id" {
		return p, nil, nil, errIncompatibleAlgo
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, errMalformedDigest
	}
	if version != argon2.Version {
		return p, nil, nil, errIncompatibleAlgo
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, errMalformedDigest
	}
	// argon2.IDKey panics on zero rounds or zero lanes.
	if p.Time < 1 || p.Threads < 1 || p.Memory < 8*uint32(p.Threads) {
		return p, nil, nil, errMalformedDigest
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, errMalformedDigest
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, errMalformedDigest
	}

	p.SaltLen = len(salt)
	p.KeyLen = uint32(len(key))
	return p, salt, key, nil
}
