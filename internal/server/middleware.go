package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSMiddleware answers preflight requests with a bare 200 so browser
// clients can call the gateway directly.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Language")

		if c.Request.Method == http.MethodOptions {
			c.String(http.StatusOK, "ok")
			c.Abort()
			return
		}
		c.Next()
	}
}

// bearerCredential extracts the opaque credential from the Authorization
// header. The raw header value is accepted without the Bearer prefix too;
// clients of the original endpoints sent the bare token.
func bearerCredential(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}

// parseAcceptLanguage splits the first Accept-Language entry into language
// and region, e.g. "en-US,en;q=0.9" into ("en", "US").
func parseAcceptLanguage(header string) (language, region string) {
	language, region = "en", "US"

	first := strings.TrimSpace(strings.Split(header, ",")[0])
	if idx := strings.Index(first, ";"); idx >= 0 {
		first = first[:idx]
	}
	if first == "" {
		return language, region
	}

	parts := strings.SplitN(first, "-", 2)
	if parts[0] != "" {
		language = parts[0]
	}
	if len(parts) == 2 && parts[1] != "" {
		region = strings.ToUpper(parts[1])
	}
	return language, region
}
