package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Default expectations for provider-issued tokens. The issuer check is a
// substring match because the provider embeds the project id in the full
// issuer URL.
const (
	defaultIssuerDomain = "securetoken.google.com"
	altIssuerDomain     = "firebase"
)

// ProviderVerifier is the external identity-provider SDK boundary. The
// implementation performs the cryptographic verification of the token
// against the provider's rotating public keys; this package never does.
type ProviderVerifier interface {
	VerifyIDToken(ctx context.Context, token string) (*ProviderClaims, error)
}

// IdentityVerifier validates externally-issued identity tokens. It rejects
// revoked tokens before any provider round trip, delegates signature and
// freshness checks to the SDK, then re-validates issuer, audience and
// expiry locally as defense in depth against SDK misconfiguration.
type IdentityVerifier struct {
	provider     ProviderVerifier
	blacklist    *Blacklist
	projectID    string
	issuerDomain string
	now          func() time.Time
}

// NewIdentityVerifier wires the provider SDK, the revocation list and the
// expected audience (the provider project identifier).
func NewIdentityVerifier(provider ProviderVerifier, blacklist *Blacklist, projectID string, now func() time.Time) (*IdentityVerifier, error) {
	if provider == nil {
		return nil, errors.New("auth: provider verifier is required")
	}
	if blacklist == nil {
		return nil, errors.New("auth: blacklist is required")
	}
	if strings.TrimSpace(projectID) == "" {
		return nil, errors.New("auth: provider project id is required")
	}
	if now == nil {
		now = time.Now
	}
	return &IdentityVerifier{
		provider:     provider,
		blacklist:    blacklist,
		projectID:    projectID,
		issuerDomain: defaultIssuerDomain,
		now:          now,
	}, nil
}

// Verify resolves an external token into a Principal. Roles are not
// resolved here; externally-authenticated principals get them from the
// role directory lookup in the service facade.
func (v *IdentityVerifier) Verify(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrMalformed
	}
	if v.blacklist.IsRevoked(ExternalTokenID(token)) {
		return Principal{}, ErrRevoked
	}

	claims, err := v.provider.VerifyIDToken(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, ErrProviderUnavailable):
			return Principal{}, err
		case ctx.Err() != nil:
			return Principal{}, ErrProviderUnavailable
		case errors.Is(err, ErrInvalidToken):
			return Principal{}, err
		default:
			return Principal{}, ErrMalformed
		}
	}

	// The SDK already validated these; check again so a misconfigured SDK
	// cannot silently widen trust.
	if claims.ExpiresAt < v.now().Unix() {
		return Principal{}, ErrExpired
	}
	if !strings.Contains(claims.Issuer, v.issuerDomain) && !strings.Contains(claims.Issuer, altIssuerDomain) {
		return Principal{}, ErrIssuerMismatch
	}
	if claims.Audience != v.projectID {
		return Principal{}, ErrAudienceMismatch
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Principal{}, ErrMalformed
	}

	return Principal{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		External:      true,
	}, nil
}

// ExternalTokenID derives the revocation key for a provider token: its jti
// claim when the payload can be read, a content hash otherwise. The payload
// is decoded without verification; the key only feeds the blacklist, never
// a trust decision.
func ExternalTokenID(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) == 3 {
		if raw, err := base64.RawURLEncoding.DecodeString(parts[1]); err == nil {
			var payload struct {
				JTI string `json:"jti"`
			}
			if err := json.Unmarshal(raw, &payload); err == nil && payload.JTI != "" {
				return payload.JTI
			}
		}
	}
	return HashTokenID(token)
}
