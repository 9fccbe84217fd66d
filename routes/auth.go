package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wize-works/helpNINJA-sub004/internal/auth"
	"github.com/wize-works/helpNINJA-sub004/internal/config"
	"github.com/wize-works/helpNINJA-sub004/middleware"
	"github.com/wize-works/helpNINJA-sub004/models"
	"github.com/wize-works/helpNINJA-sub004/utils"
)

func SetupAuthRoutes(router *gin.Engine, cfg *config.Config, db *mongo.Database, rdb *redis.Client) {
	group := router.Group("/auth")
	users := db.Collection("users")

	group.POST("/register", func(c *gin.Context) {
		var req models.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var existing models.User
		if err := users.FindOne(c.Request.Context(), bson.M{"username": req.Username}).Decode(&existing); err == nil {
			utils.RespondWithError(c, http.StatusConflict, "username_exists", "Username already exists", nil)
			return
		}

		hashed, err := utils.HashPassword(req.Password, cfg.BcryptCost)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to process password", nil)
			return
		}

		var tenantID *primitive.ObjectID
		if req.TenantID != "" {
			oid, err := primitive.ObjectIDFromHex(req.TenantID)
			if err != nil {
				utils.RespondWithBadRequest(c, "Invalid tenant ID format", nil)
				return
			}
			tenantID = &oid
		}

		now := time.Now()
		user := models.User{
			Username:     req.Username,
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: hashed,
			Role:         "operator",
			TenantID:     tenantID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		result, err := users.InsertOne(c.Request.Context(), user)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to create user", nil)
			return
		}
		user.ID = result.InsertedID.(primitive.ObjectID)

		pair, err := auth.IssueTokenPair(user.ID.Hex(), req.TenantID, user.Role, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		setAuthCookies(c, cfg, pair)
		c.JSON(http.StatusCreated, tokenPairResponse(pair, &user))
	})

	group.POST("/login", func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request data", gin.H{"error": err.Error()})
			return
		}

		var user models.User
		if err := users.FindOne(c.Request.Context(), bson.M{"username": req.Username}).Decode(&user); err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", nil)
			return
		}

		if !utils.CheckPassword(req.Password, user.PasswordHash) {
			utils.RespondWithError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password", nil)
			return
		}

		tenantID := ""
		if user.TenantID != nil {
			tenantID = user.TenantID.Hex()
		}

		pair, err := auth.IssueTokenPair(user.ID.Hex(), tenantID, user.Role, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		setAuthCookies(c, cfg, pair)
		c.JSON(http.StatusOK, tokenPairResponse(pair, &user))
	})

	group.POST("/refresh", func(c *gin.Context) {
		refreshToken, err := c.Cookie("refresh_token")
		if err != nil || refreshToken == "" {
			refreshToken = utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		}
		if refreshToken == "" {
			utils.RespondWithUnauthorized(c, "Refresh token required")
			return
		}

		claims, err := auth.ValidateRefreshToken(refreshToken, rdb)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired refresh token")
			return
		}

		// One-shot refresh tokens: revoke before reissuing.
		_ = auth.RevokeToken(claims.ID, true, rdb)

		pair, err := auth.IssueTokenPair(claims.UserID, claims.TenantID, claims.Role, rdb)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to issue tokens", nil)
			return
		}

		setAuthCookies(c, cfg, pair)
		c.JSON(http.StatusOK, gin.H{
			"access_token":  pair.AccessToken,
			"refresh_token": pair.RefreshToken,
			"access_exp":    pair.AccessExp,
			"refresh_exp":   pair.RefreshExp,
		})
	})

	authMW := middleware.NewAuthMiddleware(cfg, rdb)
	group.POST("/logout", authMW.RequireAuth(), func(c *gin.Context) {
		if claims, exists := c.Get("claims"); exists {
			if cl, ok := claims.(*auth.Claims); ok {
				_ = auth.RevokeToken(cl.ID, false, rdb)
			}
		}
		if refreshToken, err := c.Cookie("refresh_token"); err == nil && refreshToken != "" {
			if cl, err := auth.ValidateRefreshToken(refreshToken, rdb); err == nil {
				_ = auth.RevokeToken(cl.ID, true, rdb)
			}
		}

		clearAuthCookies(c, cfg)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	})

	group.GET("/me", authMW.RequireAuth(), func(c *gin.Context) {
		userID, err := primitive.ObjectIDFromHex(middleware.GetUserID(c))
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid session")
			return
		}

		var user models.User
		if err := users.FindOne(c.Request.Context(), bson.M{"_id": userID}).Decode(&user); err != nil {
			utils.RespondWithNotFound(c, "User not found")
			return
		}
		c.JSON(http.StatusOK, userInfo(&user))
	})
}

func tokenPairResponse(pair *auth.TokenPair, user *models.User) models.TokenPairResponse {
	return models.TokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		AccessExp:    pair.AccessExp,
		RefreshExp:   pair.RefreshExp,
		User:         userInfo(user),
	}
}

func userInfo(user *models.User) models.UserInfo {
	tenantID := ""
	if user.TenantID != nil {
		tenantID = user.TenantID.Hex()
	}
	return models.UserInfo{
		ID:       user.ID.Hex(),
		Username: user.Username,
		Name:     user.Name,
		Email:    user.Email,
		Role:     user.Role,
		TenantID: tenantID,
	}
}

func setAuthCookies(c *gin.Context, cfg *config.Config, pair *auth.TokenPair) {
	secure := cfg.GinMode == "release"
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie("access_token", pair.AccessToken, int(time.Until(pair.AccessExp).Seconds()), "/", "", secure, true)
	c.SetCookie("refresh_token", pair.RefreshToken, int(time.Until(pair.RefreshExp).Seconds()), "/", "", secure, true)
}

func clearAuthCookies(c *gin.Context, cfg *config.Config) {
	secure := cfg.GinMode == "release"
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}
