package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
)

// HMACSaltLength matches the SHA-512 block size, the natural HMAC key length.
const HMACSaltLength = 64

// DeriveCredential keys HMAC-SHA512 with a fresh random salt and digests the
// UTF-8 password. Every call draws new salt.
func DeriveCredential(password string) (digest, salt []byte, err error) {
	salt = make([]byte, HMACSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	return hmacDigest(password, salt), salt, nil
}

// VerifyCredential recomputes the digest with salt and compares in constant time.
func VerifyCredential(password string, digest, salt []byte) bool {
	if len(digest) == 0 || len(salt) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(hmacDigest(password, salt), digest) == 1
}

func hmacDigest(password string, salt []byte) []byte {
	mac := hmac.New(sha512.New, salt)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}

// CredentialHasher derives new credentials with the configured algorithm and
// verifies stored ones with whichever algorithm produced them.
type CredentialHasher struct {
	algo   string
	argon2 Argon2Config
}

var _ port.CredentialHasher = (*CredentialHasher)(nil)

// NewCredentialHasher accepts "hmac-sha512" (also the default for an empty
// string) or "argon2id".
func NewCredentialHasher(algo string, argon Argon2Config) (*CredentialHasher, error) {
	algo = strings.ToLower(strings.TrimSpace(algo))
	switch algo {
	case "", domain.PasswordAlgoHMACSHA512:
		return &CredentialHasher{algo: domain.PasswordAlgoHMACSHA512}, nil
	case domain.PasswordAlgoArgon2ID:
		if err := argon.Validate(); err != nil {
			return nil, err
		}
		return &CredentialHasher{algo: algo, argon2: argon}, nil
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", algo)
	}
}

func (h *CredentialHasher) Derive(password string) (port.Credential, error) {
	if h.algo == domain.PasswordAlgoArgon2ID {
		digest, salt, algo, err := deriveArgon2(password, h.argon2)
		if err != nil {
			return port.Credential{}, err
		}
		return port.Credential{Digest: digest, Salt: salt, Algo: algo}, nil
	}

	digest, salt, err := DeriveCredential(password)
	if err != nil {
		return port.Credential{}, err
	}
	return port.Credential{Digest: digest, Salt: salt, Algo: domain.PasswordAlgoHMACSHA512}, nil
}

// Verify never errors: malformed or unknown credentials simply do not match.
func (h *CredentialHasher) Verify(password string, c port.Credential) bool {
	switch {
	case c.Algo == "" || c.Algo == domain.PasswordAlgoHMACSHA512:
		return VerifyCredential(password, c.Digest, c.Salt)
	case strings.HasPrefix(c.Algo, domain.PasswordAlgoArgon2ID+"$"):
		return verifyArgon2(password, c.Digest, c.Salt, c.Algo)
	default:
		return false
	}
}
