package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer    = "brokerdesk-service"
	contextUserKey = "user_id"
	contextRoleKey = "role"

	// RoleAdmin marks operator tokens issued by the admin CLI.
	RoleAdmin = "admin"
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or claim checks.
var ErrInvalidToken = errors.New("invalid token")

// Authenticator issues and verifies HS256 session tokens carrying a user id.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

func NewAuthenticator(secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{secret: []byte(secret), ttl: ttl}
}

// IssueToken генерує JWT з ID користувача
func (a *Authenticator) IssueToken(userID string) (string, error) {
	return a.issue(userID, "")
}

// IssueAdminToken issues a token that may also use operator-only routes.
func (a *Authenticator) IssueAdminToken(userID string) (string, error) {
	return a.issue(userID, RoleAdmin)
}

func (a *Authenticator) issue(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(a.ttl).Unix(),
		"iss":     tokenIssuer,
	}
	if role != "" {
		claims["role"] = role
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken validates tokenString and returns the user id it carries.
func (a *Authenticator) ParseToken(tokenString string) (string, error) {
	userID, _, err := a.parse(tokenString)
	return userID, err
}

func (a *Authenticator) parse(tokenString string) (userID, role string, err error) {
	token, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", ErrInvalidToken
	}
	userID, _ = claims["user_id"].(string)
	if userID == "" {
		return "", "", fmt.Errorf("%w: missing user_id", ErrInvalidToken)
	}
	role, _ = claims["role"].(string)
	return userID, role, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// caller's user id in the gin context.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, err := a.parse(bearerToken(c))
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid token or expired")
			return
		}
		c.Set(contextUserKey, userID)
		c.Set(contextRoleKey, role)
		c.Next()
	}
}

// RequireAdmin only lets operator tokens through. It runs after Middleware.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(contextRoleKey) != RoleAdmin {
			failWithError(c, errForbidden, "authorize")
			return
		}
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to ?token= for
// websocket hosts that cannot set headers.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return authHeader[len("Bearer "):]
	}
	return c.Query("token")
}

func currentUser(c *gin.Context) string {
	return c.GetString(contextUserKey)
}
