package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"stellartourism.org/internal/ids"
)

const defaultIssuer = "stellar-tourism"

// Codec encodes, decodes, signs and verifies self-issued HS256 tokens.
// It is a pure function of its inputs and the service secret; the secret is
// loaded once at startup and never logged.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCodec constructs a Codec for the given signing secret.
func NewCodec(secret []byte, issuer string, now func() time.Time) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	if issuer == "" {
		issuer = defaultIssuer
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: secret, issuer: issuer, now: now}, nil
}

// Issue signs a token for the given subject. It stamps iat, exp and a
// unique jti; a non-positive ttl produces an already-expired token, which
// Verify rejects.
func (c *Codec) Issue(subject string, roles, permissions []string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: subject is required")
	}
	now := c.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Roles:       dedupeRoles(roles),
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks structure, signature (constant-time, inside the HMAC
// comparison) and expiry, in that order of reporting. The returned error is
// always one of the reason sentinels wrapping ErrInvalidToken.
func (c *Codec) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMalformed
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrBadSignature
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return c.now().UTC() }),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			return nil, ErrMalformed
		}
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformed
	}
	claims.Roles = dedupeRoles(claims.Roles)
	return claims, nil
}

// IsLocalShape reports whether a bearer token looks like one of ours:
// three dot-separated segments whose header names the HS256 algorithm.
// Provider tokens are JWTs too, but they are RS256-signed, so the header is
// a reliable discriminator and replaces try-and-fall-back dispatch.
func IsLocalShape(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &header); err != nil {
		return false
	}
	return header.Alg == "HS256"
}
