package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"stellartourism.org/internal/obs"
)

const defaultTokenTTL = time.Hour

// RoleDirectory resolves role names for externally-authenticated subjects.
type RoleDirectory interface {
	RolesForUser(ctx context.Context, subject string) ([]string, error)
}

// Service is the auth facade: token issuance, request authentication,
// authorization and revocation, with all collaborators injected. One
// instance is constructed at process start and shared by request handlers.
type Service struct {
	codec     *Codec
	blacklist *Blacklist
	identity  *IdentityVerifier
	engine    *Engine
	hasher    *PasswordHasher

	roles      RoleDirectory
	provider   ProviderVerifier
	projectID  string
	issuer     string
	tokenTTL   time.Duration
	cooldown   time.Duration
	bcryptCost int
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithDefaultTokenTTL sets the lifetime used when IssueToken gets a zero
// ttl.
func WithDefaultTokenTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
		return nil
	}
}

// WithCompactionCooldown bounds how often the blacklist sweeps expired
// entries.
func WithCompactionCooldown(cooldown time.Duration) ServiceOption {
	return func(s *Service) error {
		s.cooldown = cooldown
		return nil
	}
}

// WithIssuer overrides the iss claim stamped into self-issued tokens.
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithProvider enables external identity tokens, verified through the SDK
// and re-checked against the given project identifier.
func WithProvider(provider ProviderVerifier, projectID string) ServiceOption {
	return func(s *Service) error {
		if provider == nil {
			return errors.New("auth: provider verifier is nil")
		}
		if strings.TrimSpace(projectID) == "" {
			return errors.New("auth: provider project id is required")
		}
		s.provider = provider
		s.projectID = projectID
		return nil
	}
}

// WithOwnershipStore wires the data-store collaborator behind
// ownership-gated actions.
func WithOwnershipStore(store OwnershipStore) ServiceOption {
	return func(s *Service) error {
		s.engine = NewEngine(store)
		return nil
	}
}

// WithRoleDirectory wires role resolution for provider-authenticated
// principals.
func WithRoleDirectory(dir RoleDirectory) ServiceOption {
	return func(s *Service) error {
		s.roles = dir
		return nil
	}
}

// WithBcryptCost tunes the password hashing work factor.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		if cost > 0 {
			s.bcryptCost = cost
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the facade. The secret signs self-issued tokens;
// the store persists the revocation list.
func NewService(secret []byte, store BlacklistStore, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: blacklist store is required")
	}
	svc := &Service{
		tokenTTL:   defaultTokenTTL,
		cooldown:   DefaultCompactionCooldown,
		bcryptCost: DefaultBcryptCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	codec, err := NewCodec(secret, svc.issuer, svc.now)
	if err != nil {
		return nil, err
	}
	svc.codec = codec
	svc.blacklist = NewBlacklist(store, svc.cooldown, svc.now)
	if svc.engine == nil {
		svc.engine = NewEngine(nil)
	}
	svc.hasher = NewPasswordHasher(svc.bcryptCost)
	if svc.provider != nil {
		verifier, err := NewIdentityVerifier(svc.provider, svc.blacklist, svc.projectID, svc.now)
		if err != nil {
			return nil, err
		}
		svc.identity = verifier
	}
	return svc, nil
}

// IssueToken signs a self-issued token for the subject. A zero ttl selects
// the configured default.
func (s *Service) IssueToken(subject string, roles, permissions []string, ttl time.Duration) (string, time.Time, error) {
	if ttl == 0 {
		ttl = s.tokenTTL
	}
	token, expiresAt, err := s.codec.Issue(subject, roles, permissions, ttl)
	if err != nil {
		return "", time.Time{}, err
	}
	obs.RecordAuthAttempt("token_issued", true)
	return token, expiresAt, nil
}

// Authenticate resolves a bearer token into a Principal. Dispatch is by
// token shape: our own HS256 tokens go through the codec, anything else
// through the identity provider. Revocation is enforced here for both
// paths; the codec alone never consults the blacklist.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrMalformed
	}
	s.blacklist.Compact()

	if IsLocalShape(token) {
		principal, err := s.authenticateLocal(token)
		obs.RecordAuthAttempt("local_token", err == nil)
		return principal, err
	}

	if s.identity == nil {
		obs.RecordAuthAttempt("external_token", false)
		return Principal{}, ErrMalformed
	}
	principal, err := s.identity.Verify(ctx, token)
	if err != nil {
		obs.RecordAuthAttempt("external_token", false)
		return Principal{}, err
	}
	if s.roles != nil {
		roles, err := s.roles.RolesForUser(ctx, principal.Subject)
		if err != nil {
			// Role resolution failing leaves the principal with user-level
			// access only, which the deny-by-default engine keeps safe.
			obs.LogEvent("warn", "role lookup failed", map[string]any{"subject": principal.Subject, "error": err.Error()})
		} else {
			principal.Roles = dedupeRoles(roles)
		}
	}
	obs.RecordAuthAttempt("external_token", true)
	return principal, nil
}

func (s *Service) authenticateLocal(token string) (Principal, error) {
	claims, err := s.codec.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	id := claims.ID
	if id == "" {
		id = HashTokenID(token)
	}
	if s.blacklist.IsRevoked(id) {
		return Principal{}, ErrRevoked
	}
	return Principal{
		Subject:     claims.Subject,
		Email:       claims.Email,
		Roles:       claims.Roles,
		Permissions: permissionSet(claims.Permissions),
	}, nil
}

// Authorize returns nil when the principal may perform the action,
// ErrForbidden otherwise. Ownership-store failures deny and are logged,
// never surfaced as an allow.
func (s *Service) Authorize(ctx context.Context, p Principal, resource string, action Action, resourceID string) error {
	allowed, err := s.engine.Authorize(ctx, p, resource, action, resourceID)
	if err != nil {
		obs.LogEvent("error", "authorization check failed", map[string]any{
			"subject":  p.Subject,
			"resource": resource,
			"action":   string(action),
			"error":    err.Error(),
		})
		return ErrForbidden
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// RequireAuth composes authentication and authorization for one request.
// It returns ErrUnauthenticated when no principal could be resolved,
// ErrForbidden when the principal lacks rights, and ErrProviderUnavailable
// untouched so the boundary can fail fast instead of answering 401.
func (s *Service) RequireAuth(ctx context.Context, token, resource string, action Action, resourceID string) (Principal, error) {
	principal, err := s.Authenticate(ctx, token)
	if err != nil {
		if errors.Is(err, ErrProviderUnavailable) {
			return Principal{}, err
		}
		obs.LogEvent("info", "authentication rejected", map[string]any{"reason": err.Error()})
		return Principal{}, ErrUnauthenticated
	}
	if err := s.Authorize(ctx, principal, resource, action, resourceID); err != nil {
		return Principal{}, err
	}
	return principal, nil
}

// Revoke blacklists a token. Decodable tokens are keyed by jti and kept
// until their own expiry; tokens that fail to decode are still blacklisted
// under a content hash for a fixed 24 hour window. A persistence failure
// propagates: a silently-lost revocation is a security hole.
func (s *Service) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMalformed
	}
	id := HashTokenID(token)
	expiry := s.now().Add(fallbackRevocationTTL).Unix()

	if IsLocalShape(token) {
		if claims, err := s.codec.Verify(token); err == nil {
			if claims.ID != "" {
				id = claims.ID
			}
			if claims.ExpiresAt != nil {
				expiry = claims.ExpiresAt.Unix()
			}
		}
	} else if jti := ExternalTokenID(token); jti != "" {
		id = jti
	}

	if err := s.blacklist.Revoke(id, expiry); err != nil {
		obs.RecordAuthAttempt("token_revoked", false)
		return err
	}
	obs.RecordAuthAttempt("token_revoked", true)
	obs.SetBlacklistEntries(s.blacklist.Len())
	return nil
}

// IsRevoked exposes the blacklist check for the given raw token.
func (s *Service) IsRevoked(token string) bool {
	if IsLocalShape(token) {
		if claims, err := s.codec.Verify(token); err == nil && claims.ID != "" {
			return s.blacklist.IsRevoked(claims.ID)
		}
		return s.blacklist.IsRevoked(HashTokenID(token))
	}
	return s.blacklist.IsRevoked(ExternalTokenID(token))
}

// Compact triggers a throttled sweep of expired blacklist entries.
func (s *Service) Compact() {
	s.blacklist.Compact()
	obs.SetBlacklistEntries(s.blacklist.Len())
}

// HashPassword returns a salted digest of the password.
func (s *Service) HashPassword(password string) (string, error) {
	return s.hasher.Hash(password)
}

// VerifyPassword compares a password with a stored digest.
func (s *Service) VerifyPassword(password, digest string) error {
	return s.hasher.Verify(password, digest)
}

// CheckPasswordStrength scores a candidate password.
func (s *Service) CheckPasswordStrength(password string) StrengthReport {
	return CheckStrength(password)
}
