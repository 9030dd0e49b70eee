package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────
// Bearer Token Authentication Middleware
//
// Reads API_AUTH_TOKEN from environment. If set, the cycle/run and
// policy/tune routes -- the only two that can change the champion State or
// the Policy governing it -- require: Authorization: Bearer <token>
//
// The read-only ledger/health/pcag/stream routes are never gated here.
// ──────────────────────────────────────────────────────────────────

// AuthMiddleware returns a Gin middleware that validates bearer tokens on
// the mutating cycle/policy endpoints. If API_AUTH_TOKEN is not set, all
// requests are allowed (dev mode). WARNING: in GIN_MODE=release, leaving
// API_AUTH_TOKEN unset lets anyone trigger a cycle or retune the Policy.
// Always set a strong token in prod.
//
// Every rejected attempt is logged with the caller's IP and the path it
// tried to reach -- a cycle's Ledger entries are themselves an audit trail
// (spec.md's auditability predicate), and a rejected attempt to mutate
// State belongs in that same trail even though it never reaches the
// Ledger.
func AuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("API_AUTH_TOKEN")

	// Fail loudly in production if auth is not configured.
	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] API_AUTH_TOKEN is not set in release mode. " +
			"Anyone can trigger a cycle or retune the Policy. " +
			"Set API_AUTH_TOKEN in your environment to enforce authentication.")
	}

	return func(c *gin.Context) {
		// If no token is configured, skip auth (development mode)
		if token == "" {
			c.Next()
			return
		}

		auth := c.GetHeader("Authorization")
		if auth == "" {
			logAuthRejection(c, "missing Authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
				"hint":  "Use: Authorization: Bearer <API_AUTH_TOKEN>",
			})
			c.Abort()
			return
		}

		// Parse "Bearer <token>"
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logAuthRejection(c, "malformed Authorization header")
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid Authorization header format"})
			c.Abort()
			return
		}

		// Use constant-time comparison to prevent timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			logAuthRejection(c, "token mismatch")
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func logAuthRejection(c *gin.Context, reason string) {
	log.Printf("[auth] rejected %s %s from %s: %s", c.Request.Method, c.Request.URL.Path, c.ClientIP(), reason)
}
