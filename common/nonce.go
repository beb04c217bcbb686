package common

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const nonceSessionKey = "cta_nonce"

// NonceHeader is the header mutating AJAX-style requests carry their token in.
// Form posts may send the same token in the "_nonce" field instead.
const NonceHeader = "X-CTA-Nonce"

// GenerateToken returns a random url-safe token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// EnsureNonce returns the nonce bound to the current session, creating one on
// first use.
func EnsureNonce(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	if existing, ok := session.Get(nonceSessionKey).(string); ok && existing != "" {
		return existing, nil
	}

	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	session.Set(nonceSessionKey, token)
	if err := session.Save(); err != nil {
		return "", err
	}
	return token, nil
}

// RequireNonce is a middleware rejecting mutating requests whose token does
// not match the session nonce.
func RequireNonce(c *gin.Context) {
	session := sessions.Default(c)
	expected, _ := session.Get(nonceSessionKey).(string)

	provided := c.GetHeader(NonceHeader)
	if provided == "" {
		provided = c.PostForm("_nonce")
	}

	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid or missing nonce"})
		c.Abort()
		return
	}

	c.Next()
}
