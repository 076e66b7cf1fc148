package auth0

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"diabuddy/internal/redis"
)

const (
	userIDContextKey = "auth_user_id"
	tokenCacheTTL    = 2 * time.Minute
)

// UserInfoResolver resolves a bearer token to the provider's subject claim.
type UserInfoResolver interface {
	UserInfo(ctx context.Context, accessToken string) (string, error)
}

// TokenVerifier validates bearer tokens against the identity provider and
// stores the authenticated user in the request context. Verified tokens are
// cached briefly so a chatty client does not hammer the provider.
type TokenVerifier struct {
	resolver UserInfoResolver
	cache    *redis.Client
}

func NewTokenVerifier(resolver UserInfoResolver, cache *redis.Client) *TokenVerifier {
	return &TokenVerifier{resolver: resolver, cache: cache}
}

// Middleware rejects requests without a valid bearer token.
func (v *TokenVerifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		userID, err := v.verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

func (v *TokenVerifier) verify(ctx context.Context, token string) (string, error) {
	key := tokenCacheKey(token)
	if v.cache != nil {
		if sub, err := v.cache.Get(ctx, key); err == nil && sub != "" {
			return sub, nil
		}
	}

	sub, err := v.resolver.UserInfo(ctx, token)
	if err != nil {
		return "", err
	}

	if v.cache != nil {
		if err := v.cache.Set(ctx, key, sub, tokenCacheTTL); err != nil {
			log.Printf("cache token verification: %v", err)
		}
	}
	return sub, nil
}

// UserIDFromContext retrieves the authenticated user id from the gin context.
func UserIDFromContext(c *gin.Context) (string, bool) {
	val, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	userID, ok := val.(string)
	return userID, ok
}

func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

// Tokens are cache keys only as digests; the raw credential never lands in
// redis.
func tokenCacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:])
}
