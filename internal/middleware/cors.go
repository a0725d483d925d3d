package middleware

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

const (
	allowedMethods = "GET, POST"
	allowedHeaders = "Content-Type"
)

// CORSMiddleware allows cross-origin calls from a single origin with
// GET and POST and the Content-Type request header. Preflight requests
// are answered directly.
func CORSMiddleware(origin string) func(*ginext.Context) {
	return func(c *ginext.Context) {
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", allowedMethods)
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		c.Header("Vary", "Origin")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
