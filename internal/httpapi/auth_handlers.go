package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"stellartourism.org/internal/audit"
	"stellartourism.org/internal/auth"
)

type tokenRequest struct {
	User        string   `json:"user"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	TTLSeconds  int      `json:"ttl_seconds"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user is required")
		return
	}
	ttl := time.Duration(req.TTLSeconds) * time.Second
	if ttl < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "ttl_seconds must not be negative")
		return
	}

	token, expiresAt, err := a.auth.IssueToken(user, req.Roles, req.Permissions, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_generation_failed", "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       user,
		"roles":      req.Roles,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

type revokeRequest struct {
	Token string `json:"token"`
}

// handleAuthRevoke blacklists a token: the bearer from the Authorization
// header (logout), or an explicit token in the body (forced invalidation).
func (a *API) handleAuthRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	token, _ := extractBearerToken(r.Header.Get(authHeader))
	if token == "" {
		var req revokeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		token = strings.TrimSpace(req.Token)
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}

	if err := a.auth.Revoke(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrPersistence) {
			// The revocation is not durable; the caller must know.
			writeError(w, http.StatusInternalServerError, "revocation_not_persisted",
				"token revocation could not be persisted")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_request", "token could not be revoked")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.token.revoked", nil)
	writeJSON(w, http.StatusOK, map[string]any{"status": "revoked"})
}

type passwordStrengthRequest struct {
	Password string `json:"password"`
}

func (a *API) handlePasswordStrength(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req passwordStrengthRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "password is required")
		return
	}

	writeJSON(w, http.StatusOK, a.auth.CheckPasswordStrength(req.Password))
}
