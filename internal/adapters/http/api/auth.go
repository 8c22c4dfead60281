package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/pkg/logger"
)

// Authenticator resolves the calling user from an HS256 bearer token whose
// subject is the user id. Without a secret every request runs as the
// development user, when one is set.
type Authenticator struct {
	secret  []byte
	devUser string
	now     func() time.Time
}

// NewAuthenticator returns an Authenticator for secret and devUser.
func NewAuthenticator(secret, devUser string) *Authenticator {
	return &Authenticator{secret: []byte(secret), devUser: devUser, now: time.Now}
}

// Claims are the token claims the service reads.
type Claims struct {
	jwt.RegisteredClaims
}

// Issue signs a token for userID valid for ttl.
func (a *Authenticator) Issue(userID string, ttl time.Duration) (string, error) {
	if len(a.secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	now := a.now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate returns the user id for the request and the raw bearer token.
func (a *Authenticator) Authenticate(r *http.Request) (userID, token string, err error) {
	raw := bearer(r)
	if len(a.secret) == 0 {
		if a.devUser == "" {
			return "", "", ErrUnauthorized
		}
		return a.devUser, raw, nil
	}
	if raw == "" {
		return "", "", ErrUnauthorized
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", "", WrapKind(ErrUnauthorized, err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", "", fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	return claims.Subject, raw, nil
}

// Require rejects unauthenticated requests and scopes the rest to their user.
func (a *Authenticator) Require(next http.HandlerFunc) http.HandlerFunc {
	errs := &errorWriter{logger: logger.Nop()}
	return func(w http.ResponseWriter, r *http.Request) {
		userID, token, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="balendip"`)
			errs.write(w, r, err)
			return
		}
		ctx := store.WithUser(r.Context(), userID)
		if token != "" {
			ctx = store.WithToken(ctx, token)
		}
		next(w, r.WithContext(ctx))
	}
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
