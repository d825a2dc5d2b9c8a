package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/user-directory/internal/core/domain"
	"github.com/arklim/user-directory/internal/core/port"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and claim mismatches.
	ErrInvalidToken = errors.New("jwt: invalid token")
	// ErrExpiredToken is returned once the exp claim has passed.
	ErrExpiredToken = errors.New("jwt: token expired")
)

const (
	defaultAccessTokenTTL = time.Hour
	minSecretLength       = 32
)

// AccessTokenClaims carries the user identity alongside the registered claims.
type AccessTokenClaims struct {
	UserID     string `json:"uid"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	jwt.RegisteredClaims
}

// TokenConfig holds the process-wide signing settings.
type TokenConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

type TokenOption func(*TokenIssuer)

// WithClock replaces time.Now for issuing and validation.
func WithClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// TokenIssuer signs and validates HS256 access tokens.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

var _ port.TokenIssuer = (*TokenIssuer)(nil)

func NewTokenIssuer(cfg TokenConfig, opts ...TokenOption) (*TokenIssuer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt: secret must be at least %d bytes", minSecretLength)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("jwt: issuer is required")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, fmt.Errorf("jwt: audience is required")
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultAccessTokenTTL
	}

	i := &TokenIssuer{
		secret:   append([]byte(nil), cfg.Secret...),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue signs a token for user that expires ttl after issuance.
func (i *TokenIssuer) Issue(user domain.User) (port.IssuedToken, error) {
	if strings.TrimSpace(user.ID) == "" {
		return port.IssuedToken{}, fmt.Errorf("jwt: user id is required")
	}

	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)

	claims := AccessTokenClaims{
		UserID:     user.ID,
		Email:      user.Email,
		GivenName:  user.FirstName,
		FamilyName: user.LastName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return port.IssuedToken{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return port.IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Parse validates signature, issuer, audience and expiry. It returns
// ErrExpiredToken or ErrInvalidToken and never panics on hostile input.
func (i *TokenIssuer) Parse(token string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
