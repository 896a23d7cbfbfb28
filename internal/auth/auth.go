// Package auth turns bearer tokens into a Principal. Tokens are HS256 JWTs
// minted by the identity provider that shares JWT_SECRET with the API;
// Issue exists for that provider's side and for cmd/token in local runs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/romariotrain/holograma/internal/media/models"
)

type Claims struct {
	Email string      `json:"email,omitempty"`
	Role  models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Authenticator struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  func() time.Time
}

func New(secret, issuer string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		clock:  time.Now,
	}
}

// Issue signs an HS256 token for the principal.
func (a *Authenticator) Issue(p models.Principal) (string, error) {
	now := a.clock()
	claims := Claims{
		Email: p.Email,
		Role:  p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UID,
			Issuer:    a.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Authenticate validates a token and resolves the principal it carries.
// Unknown roles degrade to reader.
func (a *Authenticator) Authenticate(tokenString string) (models.Principal, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %w", models.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return models.Principal{}, fmt.Errorf("%w: token has no subject", models.ErrUnauthorized)
	}

	role := claims.Role
	if role != models.RoleAdmin {
		role = models.RoleReader
	}
	return models.Principal{UID: claims.Subject, Email: claims.Email, Role: role}, nil
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(models.Principal)
	return p, ok
}

var errNoToken = errors.New("missing bearer token")

func bearer(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", errNoToken
	}
	return strings.TrimSpace(token), nil
}

// Middleware resolves the principal once per request. Requests without a
// valid token go to onError.
func (a *Authenticator) Middleware(onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearer(r)
			if err != nil {
				onError(w, fmt.Errorf("%w: %w", models.ErrUnauthorized, err))
				return
			}
			p, err := a.Authenticate(token)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}
