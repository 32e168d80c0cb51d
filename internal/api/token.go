package api

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"wirechat/client/internal/domain"
)

// IdentityFromToken extracts the local user identity from the bearer token's
// claims. The token is not verified here; the backend is the verifier, the
// client only needs to know who it is acting as.
func IdentityFromToken(token string) (domain.Identity, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("parse token: %w", err)
	}

	var ident domain.Identity
	switch v := claims["user_id"].(type) {
	case float64:
		ident.UserID = int64(v)
	case string:
		// Some issuers encode the id as a string subject.
		fmt.Sscanf(v, "%d", &ident.UserID)
	}
	if ident.UserID == 0 {
		if sub, ok := claims["sub"].(string); ok {
			fmt.Sscanf(sub, "%d", &ident.UserID)
		}
	}
	if ident.UserID == 0 {
		return domain.Identity{}, fmt.Errorf("token has no user_id claim")
	}

	if name, ok := claims["username"].(string); ok {
		ident.Username = name
	}
	return ident, nil
}
