package main

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// tokenUserID reads the user id from a bearer token without verifying its
// signature; the server does that. The first non-empty of the userId, id and
// _id claims wins.
func tokenUserID(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("token is not a JWT: %w", err)
	}

	for _, key := range []string{"userId", "id", "_id"} {
		switch v := claims[key].(type) {
		case string:
			if id := strings.TrimSpace(v); id != "" {
				return id, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", fmt.Errorf("token carries no userId, id or _id claim")
}

// resolveSelf returns the local identity for a conversation. An explicit
// --self is only accepted when the token agrees with it, or when the token
// cannot be decoded.
func resolveSelf(token, self string) (string, error) {
	fromToken, err := tokenUserID(token)
	switch {
	case self == "" && err != nil:
		return "", fmt.Errorf("cannot determine your user ID (pass --self): %w", err)
	case self == "":
		return fromToken, nil
	case err == nil && fromToken != self:
		return "", fmt.Errorf("--self %q does not match the token's user %q", self, fromToken)
	default:
		return self, nil
	}
}
