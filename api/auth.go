/*
auth.go - Registration, login and bearer-token middleware

PURPOSE:
  Standard signed-token auth: register/login issue an HS256 JWT carrying
  the user id, username and role; RequireAuth verifies the bearer token on
  every protected route and stashes the claims in the request context.

TOKENS:
  Lifetime comes from config (default 7 days). Each token gets a uuid jti
  so individual tokens are distinguishable in logs. There is no refresh
  and no revocation list; logging out is forgetting the token.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rubberfarm/production-engine/identity"
	"github.com/rubberfarm/production-engine/store/sqlite"
)

// Claims is the JWT payload for an authenticated user.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type ctxKey int

const claimsKey ctxKey = iota

// ClaimsFromContext returns the verified claims of the current request.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

func (h *Handler) signToken(id int64, username string, role identity.Role) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID:   id,
		Username: username,
		Role:     string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(h.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}

func (h *Handler) parseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "Missing token", nil)
			return
		}
		claims, err := h.parseToken(strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// Register creates an account and returns a fresh token.
// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	role := identity.NormalizeRole(req.Role)
	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		h.serverError(w, "Failed to hash password", err)
		return
	}

	id, err := h.store.CreateUser(r.Context(), req.Username, hash, role)
	if errors.Is(err, sqlite.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "Username already taken", nil)
		return
	}
	if err != nil {
		h.serverError(w, "Failed to create user", err)
		return
	}

	token, err := h.signToken(id, req.Username, role)
	if err != nil {
		h.serverError(w, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{
		Token: token,
		User:  UserDTO{ID: id, Username: req.Username, Role: string(role)},
	})
}

// Login verifies credentials and returns a fresh token.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required", nil)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.serverError(w, "Failed to look up user", err)
		return
	}
	if user == nil || !identity.CheckPassword(user.HashPW, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.signToken(user.ID, user.Username, identity.Role(user.Role))
	if err != nil {
		h.serverError(w, "Failed to sign token", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{
		Token: token,
		User:  UserDTO{ID: user.ID, Username: user.Username, Role: user.Role},
	})
}

// Me returns the account behind the current token.
// GET /api/auth/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing token", nil)
		return
	}

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		h.serverError(w, "Failed to look up user", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "User not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": UserDTO{ID: user.ID, Username: user.Username, Role: string(user.Role)},
	})
}

func (h *Handler) serverError(w http.ResponseWriter, message string, err error) {
	h.log.Error(message, zap.Error(err))
	writeError(w, http.StatusInternalServerError, message, err)
}
