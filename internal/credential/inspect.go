package credential

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/glhm/console/internal/domain/auth"
)

// Inspect decodes display metadata from a JWT-shaped credential without
// verifying its signature. Opaque tokens return ok=false. The result is for
// display only and must not drive authorization.
func Inspect(token string) (domainauth.TokenInfo, bool) {
	if strings.Count(token, ".") != 2 {
		return domainauth.TokenInfo{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return domainauth.TokenInfo{}, false
	}
	info := domainauth.TokenInfo{
		Subject: claims.Subject,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}
