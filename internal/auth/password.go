package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost matches the work factor the platform has always used
// for stored credentials. The digest self-describes its cost, so raising it
// later only affects new hashes.
const DefaultBcryptCost = 12

// PasswordHasher performs one-way hashing and strength scoring of
// credentials.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher clamps the cost into bcrypt's supported range; zero or
// negative selects the default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash returns a salted bcrypt digest of the password.
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", errors.New("auth: password is empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify compares a plaintext password with a stored digest in constant
// time.
func (h *PasswordHasher) Verify(password, digest string) error {
	if digest == "" {
		return errors.New("auth: password digest is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
}

// StrengthReport is the outcome of scoring a candidate password.
type StrengthReport struct {
	Strong bool     `json:"strong"`
	Score  int      `json:"score"`
	Errors []string `json:"errors"`
}

// CheckStrength evaluates five independent rules and reports every failure
// at once. Score is the count of satisfied rules; strong means all five.
func CheckStrength(password string) StrengthReport {
	report := StrengthReport{Errors: []string{}}

	if len(password) >= 8 {
		report.Score++
	} else {
		report.Errors = append(report.Errors, "password must be at least 8 characters long")
	}
	if strings.ContainsFunc(password, unicode.IsUpper) {
		report.Score++
	} else {
		report.Errors = append(report.Errors, "password must contain at least one uppercase letter")
	}
	if strings.ContainsFunc(password, unicode.IsLower) {
		report.Score++
	} else {
		report.Errors = append(report.Errors, "password must contain at least one lowercase letter")
	}
	if strings.ContainsFunc(password, unicode.IsDigit) {
		report.Score++
	} else {
		report.Errors = append(report.Errors, "password must contain at least one digit")
	}
	if strings.ContainsFunc(password, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		report.Score++
	} else {
		report.Errors = append(report.Errors, "password must contain at least one special character")
	}

	report.Strong = len(report.Errors) == 0
	return report
}

// GenerateResetToken returns a random hex token of the requested length,
// used for password-reset links.
func GenerateResetToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:length], nil
}
