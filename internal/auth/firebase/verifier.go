// Package firebase binds the auth package's provider boundary to the
// Firebase Admin SDK. All signature and key-rotation handling happens
// inside the SDK; this adapter only translates claims and errors.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net"

	fbadmin "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"stellartourism.org/internal/auth"
)

// Verifier verifies Firebase ID tokens against the project's rotating
// public keys.
type Verifier struct {
	client *fbauth.Client
}

var _ auth.ProviderVerifier = (*Verifier)(nil)

// NewVerifier initializes the Admin SDK for the project. Credentials come
// from the given service-account JSON, or from application default
// credentials when empty.
func NewVerifier(ctx context.Context, projectID string, credentialsJSON []byte) (*Verifier, error) {
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	app, err := fbadmin.NewApp(ctx, &fbadmin.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &Verifier{client: client}, nil
}

// VerifyIDToken delegates to the SDK, including its server-side revocation
// check, and maps the result onto the auth package's claim and error types.
func (v *Verifier) VerifyIDToken(ctx context.Context, token string) (*auth.ProviderClaims, error) {
	verified, err := v.client.VerifyIDTokenAndCheckRevoked(ctx, token)
	if err != nil {
		return nil, translateError(ctx, err)
	}

	claims := &auth.ProviderClaims{
		Subject:   verified.Subject,
		Issuer:    verified.Issuer,
		Audience:  verified.Audience,
		ExpiresAt: verified.Expires,
		AuthTime:  verified.AuthTime,
	}
	if email, ok := verified.Claims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := verified.Claims["name"].(string); ok {
		claims.Name = name
	}
	if picture, ok := verified.Claims["picture"].(string); ok {
		claims.Picture = picture
	}
	if verifiedFlag, ok := verified.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verifiedFlag
	}
	return claims, nil
}

func translateError(ctx context.Context, err error) error {
	var netErr net.Error
	switch {
	case ctx.Err() != nil, errors.As(err, &netErr):
		return fmt.Errorf("%w: %v", auth.ErrProviderUnavailable, err)
	case fbauth.IsIDTokenRevoked(err):
		return auth.ErrRevoked
	case fbauth.IsIDTokenExpired(err):
		return auth.ErrExpired
	case fbauth.IsIDTokenInvalid(err):
		return auth.ErrMalformed
	default:
		return fmt.Errorf("%w: %v", auth.ErrProviderUnavailable, err)
	}
}
