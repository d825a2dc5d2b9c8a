package security

import (
	"fmt"
	"strings"
	"unicode/utf8"

	zxcvbn "github.com/nbutton23/zxcvbn-go"

	"github.com/arklim/user-directory/internal/core/port"
)

// DefaultMinPasswordLength is the shortest password accepted at registration.
const DefaultMinPasswordLength = 6

// PasswordValidationError represents a single password policy violation.
type PasswordValidationError struct {
	Code    string
	Message string
}

func (e *PasswordValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// PasswordRule checks one aspect of a candidate password. userInputs carry
// the account's personal values.
type PasswordRule interface {
	Check(password string, userInputs []string) error
}

// PasswordRuleFunc adapts a function to be used as a PasswordRule.
type PasswordRuleFunc func(password string, userInputs []string) error

func (f PasswordRuleFunc) Check(password string, userInputs []string) error {
	return f(password, userInputs)
}

// PasswordPolicy applies a sequence of rules and stops at the first violation.
type PasswordPolicy struct {
	rules []PasswordRule
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)

// NewPasswordPolicy builds the registration policy: a minimum rune length,
// no password equal to a personal value, and an optional zxcvbn score floor
// (0 disables it).
func NewPasswordPolicy(minLength, minScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return NewPasswordPolicyWithRules(
		MinLengthRule(minLength),
		NotPersonalValueRule(),
		StrengthRule(minScore),
	)
}

func NewPasswordPolicyWithRules(rules ...PasswordRule) *PasswordPolicy {
	return &PasswordPolicy{rules: append([]PasswordRule(nil), rules...)}
}

func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}
	for _, rule := range p.rules {
		if err := rule.Check(password, userInputs); err != nil {
			return err
		}
	}
	return nil
}

// MinLengthRule counts runes, not bytes.
func MinLengthRule(min int) PasswordRule {
	return PasswordRuleFunc(func(password string, _ []string) error {
		if utf8.RuneCountInString(password) < min {
			return &PasswordValidationError{
				Code:    "min_length",
				Message: fmt.Sprintf("password must be at least %d characters long", min),
			}
		}
		return nil
	})
}

// NotPersonalValueRule rejects a password that equals the email, its local
// part or a name, compared case-insensitively.
func NotPersonalValueRule() PasswordRule {
	return PasswordRuleFunc(func(password string, userInputs []string) error {
		for _, input := range userInputs {
			candidates := []string{input}
			if local, _, ok := strings.Cut(input, "@"); ok {
				candidates = append(candidates, local)
			}
			for _, c := range candidates {
				c = strings.TrimSpace(c)
				if c != "" && strings.EqualFold(password, c) {
					return &PasswordValidationError{
						Code:    "personal_value",
						Message: "password must not match your email or name",
					}
				}
			}
		}
		return nil
	})
}

// StrengthRule enforces a minimum zxcvbn score, capped at 4.
func StrengthRule(minScore int) PasswordRule {
	if minScore > 4 {
		minScore = 4
	}
	return PasswordRuleFunc(func(password string, userInputs []string) error {
		if minScore <= 0 {
			return nil
		}
		if zxcvbn.PasswordStrength(password, userInputs).Score >= minScore {
			return nil
		}
		return &PasswordValidationError{
			Code:    "weak_password",
			Message: "password is too weak; choose a more complex value",
		}
	})
}
