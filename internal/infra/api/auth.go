package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthManager mints and verifies operator bearer tokens (HS256).
type AuthManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	return &AuthManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *AuthManager) Enabled() bool { return len(a.secret) > 0 }

type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Mint issues a token for subject valid for the configured TTL.
func (a *AuthManager) Mint(subject string) (string, error) {
	if !a.Enabled() {
		return "", errors.New("operator api disabled: no jwt secret")
	}
	now := a.now()
	claims := OperatorClaims{
		Role: "operator",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   subject,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*OperatorClaims, error) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return nil, errors.New("missing token")
	}
	return a.parse(strings.TrimSpace(hdr[7:]))
}

func (a *AuthManager) parse(tok string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !tkn.Valid || claims.Role != "operator" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireOperator rejects requests without a valid operator token.
func (a *AuthManager) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "operator api disabled"})
			return
		}
		if _, err := a.ParseFromRequest(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
