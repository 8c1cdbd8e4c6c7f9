package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids any cache from keeping the response. Exam payloads and
// scores are per-examinee and must never be served to someone else.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Header("Pragma", "no-cache")
		c.Next()
	}
}
