package security

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/arklim/user-directory/internal/core/domain"
)

var (
	errInvalidAlgoFormat = errors.New("argon2: invalid algorithm descriptor")
	errInvalidConfig     = errors.New("argon2: invalid configuration")
)

// Argon2Config defines tunable parameters for Argon2id password hashing.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the OWASP-style baseline parameters.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate reports parameters too weak to be used.
func (cfg Argon2Config) Validate() error {
	if cfg.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if cfg.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if cfg.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if cfg.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if cfg.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// descriptor renders the algo column value, e.g. "argon2id$m=65536,t=3,p=4".
// The parameters travel with the digest so verification survives config changes.
func (cfg Argon2Config) descriptor() string {
	return fmt.Sprintf("%s$m=%d,t=%d,p=%d", domain.PasswordAlgoArgon2ID, cfg.Memory, cfg.Iterations, cfg.Parallelism)
}

func deriveArgon2(password string, cfg Argon2Config) (digest, salt []byte, algo string, err error) {
	salt = make([]byte, cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	digest = argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, cfg.KeyLength)
	return digest, salt, cfg.descriptor(), nil
}

func verifyArgon2(password string, digest, salt []byte, algo string) bool {
	if len(digest) == 0 || len(salt) == 0 {
		return false
	}
	cfg, err := parseArgon2Descriptor(algo)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, uint32(len(digest)))
	return subtle.ConstantTimeCompare(computed, digest) == 1
}

func parseArgon2Descriptor(algo string) (Argon2Config, error) {
	variant, params, ok := strings.Cut(algo, "$")
	if !ok || variant != domain.PasswordAlgoArgon2ID {
		return Argon2Config{}, errInvalidAlgoFormat
	}

	entries := strings.Split(params, ",")
	if len(entries) != 3 {
		return Argon2Config{}, errInvalidAlgoFormat
	}

	cfg := Argon2Config{SaltLength: 16, KeyLength: 32}
	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return Argon2Config{}, errInvalidAlgoFormat
		}

		var err error
		switch key {
		case "m":
			var v uint64
			v, err = strconv.ParseUint(value, 10, 32)
			cfg.Memory = uint32(v)
		case "t":
			var v uint64
			v, err = strconv.ParseUint(value, 10, 32)
			cfg.Iterations = uint32(v)
		case "p":
			var v uint64
			v, err = strconv.ParseUint(value, 10, 8)
			cfg.Parallelism = uint8(v)
		default:
			return Argon2Config{}, errInvalidAlgoFormat
		}
		if err != nil {
			return Argon2Config{}, fmt.Errorf("argon2: parse %s: %w", key, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Argon2Config{}, err
	}
	return cfg, nil
}
