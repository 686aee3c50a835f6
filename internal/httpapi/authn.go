package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"stellartourism.org/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/token",
	"/v1/auth/revoke",
	"/v1/auth/password/strength",
	"/v1/info",
	"/metrics",
	"/healthz",
	"/readyz",
	"/openapi.yaml",
	"/",
}

// withAuth guards every resource route: it resolves the bearer token into
// a principal and checks the (resource, action, id) triple derived from
// the request, answering 401 or 403 with the platform envelope.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication_required",
				"authentication is required to access this resource")
			return
		}

		resource, action, resourceID := routeTriple(r)
		principal, err := a.auth.RequireAuth(r.Context(), token, resource, action, resourceID)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrForbidden):
				writeError(w, http.StatusForbidden, "permission_denied",
					"you do not have permission to access this resource")
			case errors.Is(err, auth.ErrProviderUnavailable):
				writeError(w, http.StatusServiceUnavailable, "identity_provider_unavailable",
					"identity verification is temporarily unavailable")
			default:
				writeError(w, http.StatusUnauthorized, "authentication_required",
					"authentication is required to access this resource")
			}
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// routeTriple derives (resource, action, id) from the request the same way
// the routing layer does: /v1/{resource}/{id}, with the action taken from
// the HTTP method unless a trailing segment names it explicitly.
func routeTriple(r *http.Request) (string, auth.Action, string) {
	path := strings.TrimPrefix(r.URL.Path, "/v1")
	segments := strings.Split(strings.Trim(path, "/"), "/")

	var resource, resourceID string
	var action auth.Action
	if len(segments) > 0 {
		resource = segments[0]
	}
	if len(segments) > 1 {
		resourceID = segments[1]
	}
	if len(segments) > 2 {
		action = auth.Action(segments[2])
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			if resourceID != "" {
				action = auth.ActionRead
			} else {
				action = auth.ActionList
			}
		case http.MethodPost:
			action = auth.ActionCreate
		case http.MethodPut, http.MethodPatch:
			action = auth.ActionUpdate
		case http.MethodDelete:
			action = auth.ActionDelete
		default:
			action = auth.ActionRead
		}
	}
	return resource, action, resourceID
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
