package middleware

import (
	"net/http"
	"strings"
	"time"

	"transport-requisition/internal/auth"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireAuth and RequireRole.
const (
	CtxUserID         = "userID"
	CtxUserRole       = "userRole"
	CtxUserDepartment = "userDepartment"
)

const accessTokenCookie = "access_token"

func cookieSecurity() (http.SameSite, bool) {
	// Production is cross-origin: SameSite=None needs Secure.
	if gin.Mode() == gin.ReleaseMode {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// SetTokenCookie stores the access token as an HttpOnly cookie that expires with the token.
func SetTokenCookie(c *gin.Context, accessToken string, expiresAt time.Time) {
	sameSite, secure := cookieSecurity()
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, accessToken, maxAge, "/", "", secure, true)
}

func ClearTokenCookie(c *gin.Context) {
	sameSite, secure := cookieSecurity()
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
}

// tokenFromRequest tries the cookie first, then the Authorization header.
func tokenFromRequest(c *gin.Context) (string, string) {
	if token, err := c.Cookie(accessTokenCookie); err == nil && token != "" {
		return token, ""
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "Authorization is missing"
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "Invalid authorization format. Expected 'Bearer <token>'"
	}
	return parts[1], ""
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, response.Error(status, msg).WithRequestID(c.GetString(CtxRequestID)))
}

func authenticate(c *gin.Context, tokens *auth.Tokens) (*auth.Claims, bool) {
	tokenString, problem := tokenFromRequest(c)
	if problem != "" {
		abort(c, http.StatusUnauthorized, problem)
		return nil, false
	}

	claims, err := tokens.Parse(tokenString)
	if err != nil {
		abort(c, http.StatusUnauthorized, "Invalid token: "+err.Error())
		return nil, false
	}

	c.Set(CtxUserID, claims.Subject)
	c.Set(CtxUserRole, claims.Role)
	c.Set(CtxUserDepartment, claims.Department)
	return claims, true
}

// RequireAuth accepts any valid token.
func RequireAuth(tokens *auth.Tokens) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := authenticate(c, tokens); !ok {
			return
		}
		c.Next()
	}
}

// RequireRole validates the JWT token and checks the user's role is in allowedRoles
func RequireRole(tokens *auth.Tokens, allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := authenticate(c, tokens)
		if !ok {
			return
		}

		for _, role := range allowedRoles {
			if claims.Role == role {
				c.Next()
				return
			}
		}

		abort(c, http.StatusForbidden, "Access denied: insufficient permissions")
	}
}
