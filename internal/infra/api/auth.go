package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"membership-billing/internal/domain"
	"membership-billing/internal/domain/ports/adapter"
	"membership-billing/internal/infra/logging"
)

// AuthManager verifies the HMAC-signed user tokens issued by the identity service.
type AuthManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthManager(secret, issuer string) *AuthManager {
	return &AuthManager{secret: []byte(secret), issuer: issuer, now: time.Now}
}

type UserClaims struct {
	jwt.RegisteredClaims
}

// Mint signs a token for userID. Used by the ops CLI and tests.
func (a *AuthManager) Mint(userID string, ttl time.Duration) (string, error) {
	now := a.now()
	claims := UserClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// FromRequest reads "Authorization: Bearer <jwt>", falling back to the
// access_token query parameter for websocket clients that cannot set headers.
func (a *AuthManager) FromRequest(r *http.Request) (*UserClaims, string, error) {
	tok := ""
	if hdr := r.Header.Get("Authorization"); len(hdr) > 7 && strings.EqualFold(hdr[:7], "bearer ") {
		tok = strings.TrimSpace(hdr[7:])
	} else if q := r.URL.Query().Get("access_token"); q != "" {
		tok = q
	}
	if tok == "" {
		return nil, "", domain.ErrAuthRequired
	}
	claims, err := a.parse(tok)
	if err != nil {
		return nil, "", err
	}
	return claims, tok, nil
}

// Valid reports whether tok still verifies, including its expiry.
func (a *AuthManager) Valid(tok string) bool {
	if tok == "" {
		return false
	}
	_, err := a.parse(tok)
	return err == nil
}

func (a *AuthManager) parse(tok string) (*UserClaims, error) {
	claims := &UserClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || !tkn.Valid {
		return nil, errors.Join(domain.ErrAuthRequired, err)
	}
	if claims.Subject == "" {
		return nil, domain.ErrAuthRequired
	}
	return claims, nil
}

// Tokens returns a TokenSource that yields tok only while it is still valid,
// so expiry is checked at the moment a provider call is made.
func (a *AuthManager) Tokens(tok string) adapter.TokenSource {
	return adapter.TokenFunc(func(context.Context) (string, error) {
		if !a.Valid(tok) {
			return "", domain.ErrAuthRequired
		}
		return tok, nil
	})
}

type authCtxKey struct{}

type principal struct {
	userID string
	token  string
}

// RequireUser rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireUser(a *AuthManager, tr translator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, tok, err := a.FromRequest(r)
			if err != nil {
				writeError(w, r, tr, domain.ErrAuthRequired)
				return
			}
			ctx := context.WithValue(r.Context(), authCtxKey{}, principal{userID: claims.Subject, token: tok})
			ctx = logging.WithUserID(ctx, claims.Subject)
			if rw, ok := w.(*respWriter); ok {
				rw.userCtx = ctx
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(authCtxKey{}).(principal)
	return p, ok && p.userID != ""
}
