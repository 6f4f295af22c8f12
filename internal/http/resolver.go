package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-cms-admin/internal/accounts"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultUserHeader carries a username or user id for HeaderUserResolver.
const DefaultUserHeader = "X-CMS-User"

var ErrInvalidToken = errors.New("http: invalid bearer token")

// UserResolver identifies the actor of an admin request. A zero Principal
// is the anonymous user.
type UserResolver interface {
	Resolve(r *http.Request) (permissions.Principal, error)
}

// UserResolverFunc adapts a function to UserResolver.
type UserResolverFunc func(r *http.Request) (permissions.Principal, error)

func (fn UserResolverFunc) Resolve(r *http.Request) (permissions.Principal, error) {
	return fn(r)
}

// UserLookup finds accounts by id or username.
type UserLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*accounts.User, error)
	GetByUsername(ctx context.Context, username string) (*accounts.User, error)
}

// HeaderUserResolver trusts a header set by an upstream authenticating proxy.
type HeaderUserResolver struct {
	Users  UserLookup
	Header string
}

func (h HeaderUserResolver) Resolve(r *http.Request) (permissions.Principal, error) {
	header := h.Header
	if header == "" {
		header = DefaultUserHeader
	}
	value := strings.TrimSpace(r.Header.Get(header))
	if value == "" || h.Users == nil {
		return permissions.Principal{}, nil
	}
	return lookupPrincipal(r.Context(), h.Users, value)
}

// JWTUserResolver reads an HS256 bearer token whose subject is a user id or
// username.
type JWTUserResolver struct {
	Users  UserLookup
	Secret []byte
	Issuer string
}

func (j JWTUserResolver) Resolve(r *http.Request) (permissions.Principal, error) {
	raw := bearerToken(r)
	if raw == "" || j.Users == nil {
		return permissions.Principal{}, nil
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return j.Secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return permissions.Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return permissions.Principal{}, ErrInvalidToken
	}
	return lookupPrincipal(r.Context(), j.Users, claims.Subject)
}

// IssueToken signs a token for subject valid for ttl.
func IssueToken(secret []byte, issuer, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ChainResolvers returns the first non anonymous principal.
func ChainResolvers(resolvers ...UserResolver) UserResolver {
	return UserResolverFunc(func(r *http.Request) (permissions.Principal, error) {
		for _, resolver := range resolvers {
			if resolver == nil {
				continue
			}
			principal, err := resolver.Resolve(r)
			if err != nil {
				return permissions.Principal{}, err
			}
			if !principal.Anonymous() {
				return principal, nil
			}
		}
		return permissions.Principal{}, nil
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func lookupPrincipal(ctx context.Context, users UserLookup, value string) (permissions.Principal, error) {
	var (
		user *accounts.User
		err  error
	)
	if id, parseErr := uuid.Parse(value); parseErr == nil {
		user, err = users.Get(ctx, id)
	} else {
		user, err = users.GetByUsername(ctx, value)
	}
	if err != nil {
		var notFound *accounts.NotFoundError
		if errors.As(err, &notFound) {
			return permissions.Principal{}, nil
		}
		return permissions.Principal{}, err
	}
	return user.Principal(), nil
}
