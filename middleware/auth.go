package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/wize-works/helpNINJA-sub004/internal/auth"
	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

type AuthMiddleware struct {
	config *config.Config
	rdb    *redis.Client
}

func NewAuthMiddleware(cfg *config.Config, rdb *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{
		config: cfg,
		rdb:    rdb,
	}
}

// RequireAuth validates the access token from the Authorization header
// or the access_token cookie. An expired access token is transparently
// refreshed when a valid refresh token cookie is present.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			utils.RespondWithError(c, http.StatusUnauthorized, "unauthorized", "Authentication token is required", nil)
			c.Abort()
			return
		}

		claims, err := auth.ValidateAccessToken(tokenString, a.rdb)
		if err != nil {
			claims = a.tryRefresh(c)
			if claims == nil {
				utils.RespondWithError(c, http.StatusUnauthorized, "session_expired", "Your session has expired. Please log in again.", nil)
				c.Abort()
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("tenant_id", claims.TenantID)
		c.Set("claims", claims)

		c.Next()
	}
}

// tryRefresh rotates the token pair off a valid refresh cookie. Returns
// nil when no usable refresh token exists.
func (a *AuthMiddleware) tryRefresh(c *gin.Context) *auth.Claims {
	refreshToken, err := c.Cookie("refresh_token")
	if err != nil || refreshToken == "" {
		return nil
	}

	refreshClaims, err := auth.ValidateRefreshToken(refreshToken, a.rdb)
	if err != nil {
		return nil
	}

	// Rotate: the old refresh token is dead once a new pair is issued.
	_ = auth.RevokeToken(refreshClaims.ID, true, a.rdb)

	tokenPair, err := auth.IssueTokenPair(refreshClaims.UserID, refreshClaims.TenantID, refreshClaims.Role, a.rdb)
	if err != nil {
		return nil
	}

	a.setAuthCookies(c, tokenPair)

	claims, err := auth.ValidateAccessToken(tokenPair.AccessToken, a.rdb)
	if err != nil {
		return nil
	}
	return claims
}

func (a *AuthMiddleware) setAuthCookies(c *gin.Context, pair *auth.TokenPair) {
	secure := a.config.GinMode == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken, int(time.Hour.Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", pair.RefreshToken, int(7*24*time.Hour.Seconds()), "/", "", secure, true)
}

// OptionalAuth attaches claims when a valid token is present but never
// rejects the request.
func (a *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFromRequest(c); tokenString != "" {
			if claims, err := auth.ValidateAccessToken(tokenString, a.rdb); err == nil {
				c.Set("user_id", claims.UserID)
				c.Set("role", claims.Role)
				c.Set("tenant_id", claims.TenantID)
				c.Set("claims", claims)
			}
		}
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		if token := utils.ExtractTokenFromHeader(header); token != "" {
			return token
		}
	}
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie
	}
	return ""
}

func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

func GetRole(c *gin.Context) string {
	if role, exists := c.Get("role"); exists {
		if r, ok := role.(string); ok {
			return r
		}
	}
	return ""
}

func GetTenantID(c *gin.Context) string {
	if tenantID, exists := c.Get("tenant_id"); exists {
		if id, ok := tenantID.(string); ok {
			return id
		}
	}
	return ""
}
