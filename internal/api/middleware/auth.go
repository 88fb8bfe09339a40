package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Auth issues and verifies admin bearer tokens. The admin secret is stored
// only as a bcrypt hash; an empty hash disables the admin surface entirely.
type Auth struct {
	secretHash    string
	jwtSecret     []byte
	tokenDuration time.Duration
}

func NewAuth(secretHash, jwtSecret string, tokenDuration time.Duration) *Auth {
	if tokenDuration <= 0 {
		tokenDuration = 24 * time.Hour
	}
	return &Auth{
		secretHash:    secretHash,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: tokenDuration,
	}
}

// Enabled reports whether admin login is configured.
func (a *Auth) Enabled() bool {
	return a.secretHash != "" && len(a.jwtSecret) > 0
}

// Login exchanges the admin secret for a signed token.
func (a *Auth) Login(c *gin.Context) {
	if !a.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Admin access is not configured"})
		return
	}

	var req struct {
		Secret string `json:"secret" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Secret is required"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.secretHash), []byte(req.Secret)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid credentials"})
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenDuration)),
	})
	signed, err := token.SignedString(a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"token":     signed,
		"expiresAt": now.Add(a.tokenDuration).UTC().Format(time.RFC3339),
	})
}

// RequireAuth guards admin routes with a bearer token check.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"success": false, "error": "Admin access is not configured"})
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Missing bearer token"})
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return a.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid or expired token"})
			return
		}

		c.Next()
	}
}
