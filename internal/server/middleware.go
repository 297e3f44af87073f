package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mkernan/questboard/internal/identity"
)

// actorKey is the gin context key the auth middleware stores the actor under.
const actorKey = "actor"

// requireAuth validates the Bearer token and stores the asserted actor in
// the request context.
func requireAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "unauthorized",
				"error": "missing bearer token",
			})
			return
		}

		actor, err := identity.ParseToken(secret, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":  "unauthorized",
				"error": "invalid token",
			})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// currentActor returns the actor the auth middleware stored.
func currentActor(c *gin.Context) identity.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(identity.Actor)
	return actor
}

// requireGM rejects requests from actors without the gm or admin role.
func requireGM() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentActor(c).IsGM() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":  "forbidden",
				"error": "gm role required",
			})
			return
		}
		c.Next()
	}
}
