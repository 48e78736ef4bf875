package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rzadesk/rzadesk/server/internal/config"
)

// APIKeyActor is the actor recorded for requests authenticated by API key.
const APIKeyActor = "apikey"

type actorKey struct{}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the authenticated caller stored by Middleware, or "" when
// the request was not authenticated.
func Actor(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

// exempt paths are served without credentials.
var exempt = map[string]bool{
	"/api/v1/health": true,
	"/metrics":       true,
}

// Query parameters that carry the credential on the WebSocket stream, where
// browsers cannot set request headers.
const (
	QueryAPIKey = "api_key"
	QueryToken  = "access_token"
)

const streamPrefix = "/ws/sessions/"

// streamCredential returns the query parameter param for a stream request,
// or "" for any other path.
func streamCredential(r *http.Request, param string) string {
	if !strings.HasPrefix(r.URL.Path, streamPrefix) {
		return ""
	}
	return r.URL.Query().Get(param)
}

// Middleware returns next wrapped with the authentication mode in cfg.
// Secrets are resolved from the environment once, when Middleware is called.
func Middleware(cfg config.AuthConfig, next http.Handler) http.Handler {
	switch cfg.Mode {
	case "apikey":
		key := cfg.Key()
		if key == "" {
			return misconfigured(next, cfg.Mode, cfg.KeyEnv)
		}
		header := cfg.EffectiveHeader()
		return guard(next, func(r *http.Request) (string, error) {
			got := r.Header.Get(header)
			if got == "" {
				got = streamCredential(r, QueryAPIKey)
			}
			if got == "" {
				return "", fmt.Errorf("missing %s header", header)
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return "", fmt.Errorf("invalid api key")
			}
			return APIKeyActor, nil
		})

	case "jwt":
		secret := cfg.Secret()
		if secret == "" {
			return misconfigured(next, cfg.Mode, cfg.SecretEnv)
		}
		return guard(next, func(r *http.Request) (string, error) {
			authz := r.Header.Get("Authorization")
			if tok := streamCredential(r, QueryToken); authz == "" && tok != "" {
				authz = "Bearer " + tok
			}
			return verifyBearer(authz, []byte(secret))
		})

	default:
		return next
	}
}

// misconfigured rejects every non-exempt request. It is used when the
// mode's credential resolves empty.
func misconfigured(next http.Handler, mode, env string) http.Handler {
	slog.Error("auth: credential is empty, rejecting requests", "mode", mode, "env", env)
	return guard(next, func(*http.Request) (string, error) {
		return "", fmt.Errorf("server authentication is not configured")
	})
}

func guard(next http.Handler, check func(*http.Request) (string, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := check(r)
		if err != nil {
			unauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// verifyBearer checks an "Authorization: Bearer <token>" value and returns
// the token subject.
func verifyBearer(header string, secret []byte) (string, error) {
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return "", fmt.Errorf("invalid authorization header format")
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}
