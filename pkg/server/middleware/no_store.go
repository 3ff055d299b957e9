// Package middleware holds gin middlewares shared by controllers.
package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore marks responses as not cacheable. Resolved environments often carry
// credentials, so neither clients nor proxies may keep them.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}
