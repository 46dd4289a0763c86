package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS returns a middleware that sets CORS headers for cross-origin requests.
// AllowedOrigins can be "*" or a comma-separated list (e.g. "http://localhost:5173,https://app.releaselayer.io").
func CORS(allowedOrigins string) gin.HandlerFunc {
	origins := parseOrigins(allowedOrigins)
	return corsHandler(func(origin string) string {
		if len(origins) == 0 || origins["*"] {
			return "*"
		}
		if origin != "" && origins[origin] {
			return origin
		}
		return ""
	})
}

// PublicCORS allows any origin. The widget is embedded on customer sites and authenticates with
// the project SDK key, never with cookies.
func PublicCORS() gin.HandlerFunc {
	return corsHandler(func(string) string { return "*" })
}

// SplitCORS applies PublicCORS to paths under publicPrefix and CORS(allowedOrigins) elsewhere.
// Register it on the engine so preflights for unregistered OPTIONS routes are answered too.
func SplitCORS(allowedOrigins, publicPrefix string) gin.HandlerFunc {
	private := CORS(allowedOrigins)
	public := PublicCORS()
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, publicPrefix) {
			public(c)
			return
		}
		private(c)
	}
}

func corsHandler(allow func(origin string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allowOrigin := allow(c.GetHeader("Origin")); allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			if allowOrigin != "*" {
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-SDK-Key")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func parseOrigins(s string) map[string]bool {
	m := make(map[string]bool)
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			m[o] = true
		}
	}
	return m
}
