package middleware

import (
	"context"
	"log"
	"time"

	"shopapi/apperror"
	"shopapi/token"

	"github.com/gin-gonic/gin"
)

const (
	UserIDKey  = "userId"
	EmailKey   = "email"
	IsAdminKey = "isAdmin"
)

// AdminChecker resolves whether an admin principal still exists.
type AdminChecker interface {
	AdminExists(ctx context.Context, id string) (bool, error)
}

func tokenError() error {
	return apperror.Auth("Token error", apperror.Field("code", "Your token has expired"))
}

// AuthMiddleware verifies the bearer session token and stores the principal
// on the context. Password reset tokens are not sessions and are refused.
func AuthMiddleware(tokens *token.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := tokens.Parse(c.GetHeader("Authorization"))
		if err != nil || claims.IsReset() || claims.ID == "" {
			c.Error(tokenError())
			c.Abort()
			return
		}
		c.Set(UserIDKey, claims.ID)
		c.Set(EmailKey, claims.Email)
		c.Set(IsAdminKey, claims.IsAdmin)
		c.Next()
	}
}

// AdminMiddleware requires the isAdmin claim and an admin record that still
// exists, so deleting the record revokes even a non-expiring token.
func AdminMiddleware(admins AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		denied := apperror.Forbidden("Token error", apperror.Field("code", "You are not allowed to perform this action"))
		if !c.GetBool(IsAdminKey) {
			c.Error(denied)
			c.Abort()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		ok, err := admins.AdminExists(ctx, c.GetString(UserIDKey))
		if err != nil {
			log.Println("admin lookup error:", err)
			c.Error(apperror.Persistence("Error validating the token", err))
			c.Abort()
			return
		}
		if !ok {
			c.Error(denied)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SelfMiddleware lets a user act only on the resource named by their own id
// in the given path parameter. Admins pass.
func SelfMiddleware(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetBool(IsAdminKey) || c.GetString(UserIDKey) == c.Param(param) {
			c.Next()
			return
		}
		c.Error(apperror.Forbidden("Token error", apperror.Field("user", "You can only change your own cart and orders")))
		c.Abort()
	}
}
