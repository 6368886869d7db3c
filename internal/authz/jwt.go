package authz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tenzoki/agen/paramgw/internal/logging"
)

// Resolver extracts an AuthContext from a bearer token, verifying its
// signature against a JWKS endpoint and consulting an optional Redis
// cache of verified tokens, following the cache-then-verify shape of the
// apisix-go-runner authz plugin this package is grounded on.
type Resolver struct {
	jwks  keyfunc.Keyfunc
	redis *redis.Client
	ttl   time.Duration
	log   *logging.Logger
}

// NewResolver builds a Resolver. jwksURL may be empty, in which case
// Resolve treats every bearer token as unverifiable and returns an
// error with a zero (unauthenticated) context rather than panicking — mirroring the
// plugin's dev-mode fallback when JWKS initialization fails.
func NewResolver(jwksURL, redisAddr string, cacheTTLSeconds int, log *logging.Logger) (*Resolver, error) {
	r := &Resolver{ttl: time.Duration(cacheTTLSeconds) * time.Second, log: log}

	if jwksURL != "" {
		k, err := keyfunc.NewDefault([]string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("authz: failed to initialize JWKS from %s: %w", jwksURL, err)
		}
		r.jwks = k
	}

	if redisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: redisAddr})
	}

	return r, nil
}

// Resolve verifies a "Bearer <token>" Authorization header value and
// returns the caller's AuthContext. An empty header yields an
// unauthenticated context rather than an error — the Authorization
// Hook itself decides whether that is acceptable for the requested
// operation.
func (r *Resolver) Resolve(ctx context.Context, authorizationHeader string) (AuthContext, error) {
	if authorizationHeader == "" {
		return AuthContext{}, nil
	}
	if !strings.HasPrefix(authorizationHeader, "Bearer ") {
		return AuthContext{}, fmt.Errorf("authz: malformed authorization header")
	}
	tokenString := strings.TrimPrefix(authorizationHeader, "Bearer ")

	if cached, ok := r.cacheGet(ctx, tokenString); ok {
		return cached, nil
	}

	authCtx, err := r.verify(ctx, tokenString)
	if err != nil {
		return AuthContext{}, err
	}

	r.cacheSet(ctx, tokenString, authCtx)
	return authCtx, nil
}

func (r *Resolver) verify(ctx context.Context, tokenString string) (AuthContext, error) {
	if r.jwks == nil {
		r.log.Warn("authz: JWKS not configured, rejecting bearer token")
		return AuthContext{}, fmt.Errorf("authz: token verification unavailable")
	}

	token, err := jwt.Parse(tokenString, r.jwks.KeyfuncCtx(ctx))
	if err != nil || !token.Valid {
		return AuthContext{}, fmt.Errorf("authz: invalid or expired token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return AuthContext{}, fmt.Errorf("authz: invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return AuthContext{}, fmt.Errorf("authz: token missing sub claim")
	}
	role, _ := claims["role"].(string)

	return AuthContext{Subject: sub, Role: Role(role), Authenticated: true}, nil
}

func (r *Resolver) cacheKey(tokenString string) string {
	return "authz:token:" + tokenString
}

func (r *Resolver) cacheGet(ctx context.Context, tokenString string) (AuthContext, bool) {
	if r.redis == nil {
		return AuthContext{}, false
	}
	cached, err := r.redis.HGetAll(ctx, r.cacheKey(tokenString)).Result()
	if err != nil || cached["subject"] == "" {
		return AuthContext{}, false
	}
	return AuthContext{
		Subject:       cached["subject"],
		Role:          Role(cached["role"]),
		Authenticated: true,
	}, true
}

func (r *Resolver) cacheSet(ctx context.Context, tokenString string, authCtx AuthContext) {
	if r.redis == nil {
		return
	}
	pipe := r.redis.Pipeline()
	pipe.HSet(ctx, r.cacheKey(tokenString), "subject", authCtx.Subject, "role", string(authCtx.Role))
	pipe.Expire(ctx, r.cacheKey(tokenString), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("authz: redis cache write error: %v", err)
	}
}
