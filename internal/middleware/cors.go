package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// CORSConfig holds CORS configuration. Grounded on auth-service's
// CORSConfig/DefaultCORSConfig.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}

// CORS returns a middleware applying the given CORS configuration.
func CORS(cfg ...CORSConfig) gin.HandlerFunc {
	conf := DefaultCORSConfig()
	if len(cfg) > 0 {
		conf = cfg[0]
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		for _, allowed := range conf.AllowOrigins {
			if allowed == "*" || allowed == origin {
				c.Header("Access-Control-Allow-Origin", origin)
				break
			}
		}
		if len(conf.AllowMethods) > 0 {
			c.Header("Access-Control-Allow-Methods", strings.Join(conf.AllowMethods, ", "))
		}
		if len(conf.AllowHeaders) > 0 {
			c.Header("Access-Control-Allow-Headers", strings.Join(conf.AllowHeaders, ", "))
		}
		if conf.AllowCredentials {
			c.Header("Access-Control-Allow-Credentials", "true")
		}
		if conf.MaxAge > 0 {
			c.Header("Access-Control-Max-Age", strconv.Itoa(int(conf.MaxAge.Seconds())))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
