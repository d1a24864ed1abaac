// middleware/auth.go
package middleware

import (
	"context"
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

const (
	localsIdentity = "identity"

	authRequiredMessage = "authentication required"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the verified caller
type Identity struct {
	UserID string
	Email  string
}

// TokenVerifier turns a bearer token into an Identity
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ================== LOCAL JWT ==================

// Claims carried by tokens issued at login
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 session tokens
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID that expires after the configured TTL
func (m *JWTManager) Issue(userID, email string) (string, time.Time, error) {
	now := m.now()
	expires := now.Add(m.ttl)
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return signed, expires, nil
}

func (m *JWTManager) Verify(_ context.Context, tokenString string) (*Identity, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: claims.Subject, Email: claims.Email}, nil
}

// MultiVerifier accepts a token if any of its verifiers does
type MultiVerifier []TokenVerifier

func (mv MultiVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	for _, v := range mv {
		if id, err := v.Verify(ctx, token); err == nil {
			return id, nil
		}
	}
	return nil, ErrInvalidToken
}

// ================== FIBER MIDDLEWARE ==================

// RequireAuth rejects requests without a valid bearer token
func RequireAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return unauthorized(c)
		}
		id, err := v.Verify(c.UserContext(), token)
		if err != nil {
			return unauthorized(c)
		}
		c.Locals(localsIdentity, id)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// otherwise lets the request through anonymously. Websocket clients cannot
// set headers, so the token may also come from the "token" cookie or query
// parameter.
func OptionalAuth(v TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			token = c.Cookies("token")
		}
		if token == "" {
			token = c.Query("token")
		}
		if token != "" {
			if id, err := v.Verify(c.UserContext(), token); err == nil {
				c.Locals(localsIdentity, id)
			}
		}
		return c.Next()
	}
}

// AdminToken guards operational endpoints with a shared secret. An empty
// configured token disables them.
func AdminToken(expected string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if expected == "" {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "error": "not found"})
		}
		got := bearerToken(c)
		if got == "" {
			got = c.Get("X-Admin-Token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "Access denied. Admin privileges required.",
			})
		}
		return c.Next()
	}
}

// GetIdentity returns the verified caller, or nil for anonymous requests
func GetIdentity(c *fiber.Ctx) *Identity {
	id, _ := c.Locals(localsIdentity).(*Identity)
	return id
}

// GetUserID returns the verified caller's id, or "" for anonymous requests
func GetUserID(c *fiber.Ctx) string {
	if id := GetIdentity(c); id != nil {
		return id.UserID
	}
	return ""
}

func bearerToken(c *fiber.Ctx) string {
	parts := strings.Fields(c.Get(fiber.HeaderAuthorization))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   authRequiredMessage,
	})
}
