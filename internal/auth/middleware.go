package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// claims land on the gin context under this key; read them back with
// ClaimsFrom.
const ctxClaimsKey = "boardhub_claims"

var (
	errNoBearer     = errors.New("missing bearer token")
	errBadToken     = errors.New("invalid token")
	errStaleVersion = errors.New("token revoked")
)

// RequireAuth guards the operator surface (admin refresh, password change,
// logout). It verifies the bearer token signature and then checks the
// token's version against the users table, so logout and password changes
// revoke every token issued before them.
func RequireAuth(tokens TokenService, users *Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(tokens, c.GetHeader("Authorization"))
		if err == nil && users != nil {
			version, verr := users.GetTokenVersion(c.Request.Context(), claims.UserID)
			if verr != nil || version != claims.TokenVersion {
				err = errStaleVersion
			}
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

func bearerClaims(tokens TokenService, header string) (*Claims, error) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, errNoBearer
	}
	claims, err := tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, errBadToken
	}
	return claims, nil
}

// ClaimsFrom returns the claims RequireAuth stored, or nil outside an
// authenticated request.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}
