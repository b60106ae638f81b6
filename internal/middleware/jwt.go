package middleware

import (
	"net/http"
	"strings"

	"flagpole/internal/service"

	"github.com/gin-gonic/gin"
)

// TokenParser validates a bearer token and returns its claims.
type TokenParser interface {
	ParseClaims(tokenString string) (*service.UserClaims, error)
}

// JWTMiddleware authenticates the request and injects the operator identity
// into the request context. The token comes from the Authorization header or,
// for SSE/websocket clients that cannot set headers, the `token` query param.
func JWTMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization missing"})
			return
		}

		claims, err := parser.ParseClaims(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
			return
		}

		ctx := service.WithOperator(c.Request.Context(), &service.OperatorInfo{
			UserID: claims.UserID,
			Email:  claims.Email,
			Name:   claims.Name,
			Role:   claims.Role,
		})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
