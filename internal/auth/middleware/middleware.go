package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/mind-engage/mindengage-kkm/internal/apperr"
)

type AuthService struct {
	hmac []byte
	ttl  time.Duration
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl}
}

type Claims struct {
	Sub        string `json:"sub"`
	Role       string `json:"role"` // "teacher" or "student"
	Identifier string `json:"identifier"`
	SID        string `json:"sid"`
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(id Identity) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:        strconv.FormatInt(id.UserID, 10),
		Role:       id.Role,
		Identifier: id.Identifier,
		SID:        id.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "mindengage-kkm",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// SessionLookup resolves a session id to the identity it was opened for.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (Identity, error)
}

// JWTMiddleware accepts a bearer token only while its session row is live,
// so logout revokes a token before it expires.
func JWTMiddleware(a *AuthService, sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeErr(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			claims, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil || claims.SID == "" {
				writeErr(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			id, err := sessions.Lookup(r.Context(), claims.SID)
			if err != nil {
				if apperr.KindOf(err) != apperr.KindUnauthorized {
					zerolog.Ctx(r.Context()).Error().Err(err).Msg("session lookup failed")
				}
				writeErr(w, http.StatusUnauthorized, "session expired, please log in again")
				return
			}
			if id.Role != claims.Role || id.Identifier != claims.Identifier {
				writeErr(w, http.StatusUnauthorized, "token does not match session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
