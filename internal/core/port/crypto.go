package port

import (
	"time"

	"github.com/arklim/user-directory/internal/core/domain"
)

// PasswordPolicyValidator enforces password strength requirements. userInputs
// are personal values (email, names) a strong password must not resemble.
type PasswordPolicyValidator interface {
	Validate(password string, userInputs ...string) error
}

// Credential is a derived password digest with the keying material used to produce it.
type Credential struct {
	Digest []byte
	Salt   []byte
	Algo   string
}

// CredentialHasher derives and verifies salted password digests.
type CredentialHasher interface {
	Derive(password string) (Credential, error)
	Verify(password string, credential Credential) bool
}

// IssuedToken is a signed bearer token with its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// TokenIssuer issues signed bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(user domain.User) (IssuedToken, error)
}
