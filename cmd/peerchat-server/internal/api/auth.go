package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/coregx/peerchat"
)

type contextKey string

const userContextKey contextKey = "peerchat.user"

// Authenticator verifies HS256 bearer tokens issued by the identity service.
// The user id is read from the first non-empty of the userId, id and _id claims.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates an authenticator for tokens signed with secret.
func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Identify extracts the caller identity from r. Browsers cannot set headers on
// WebSocket upgrades, so the access_token query parameter is accepted too.
func (a *Authenticator) Identify(r *http.Request) (string, error) {
	raw := bearerToken(r)
	if raw == "" {
		return "", peerchat.ErrAuthenticationMissing
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", peerchat.NewErrorWithCause(peerchat.ErrCodeAuthenticationMissing, "invalid token", err)
	}

	for _, key := range []string{"userId", "id", "_id"} {
		if id := claimString(claims[key]); id != "" {
			return id, nil
		}
	}
	return "", peerchat.NewError(peerchat.ErrCodeAuthenticationMissing, "token has no user id")
}

// Middleware rejects requests without a valid identity and stores it in the context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Identify(r)
		if err != nil {
			respondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey, userID)
}

// UserID returns the authenticated user id, or "" when there is none.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userContextKey).(string)
	return id
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func claimString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}
