package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samvad-hq/gotrue-go/pkg/gotrue"
)

// The CLI never holds the signing key, so claims are read without verification and only
// used for cache bookkeeping and audit labels.
var claimsParser = jwt.NewParser(jwt.WithoutClaimsValidation())

func unverifiedClaims(token string) (*jwt.RegisteredClaims, bool) {
	if token == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := claimsParser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// Subject returns the sub claim of an access token, or "" when it cannot be read.
func Subject(accessToken string) string {
	claims, ok := unverifiedClaims(accessToken)
	if !ok {
		return ""
	}
	return claims.Subject
}

// ExpiresAt derives when s stops being usable: expires_in first, then the exp claim,
// then fallback from now.
func ExpiresAt(s gotrue.Session, now time.Time, fallback time.Duration) time.Time {
	if s.ExpiresIn > 0 {
		return now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	if claims, ok := unverifiedClaims(s.AccessToken); ok && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return now.Add(fallback)
}
