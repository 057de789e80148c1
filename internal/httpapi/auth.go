package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/identity"
)

// Claims is the portal's JWT payload. Role is baked into the token but
// re-resolved against the directory on every request, so a role change
// takes effect without waiting for expiry.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies portal session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer with the given HMAC secret and TTL.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token for the given user.
func (t *TokenIssuer) Issue(u identity.User, now time.Time) (string, time.Time, error) {
	expires := now.Add(t.ttl)
	claims := &Claims{
		UserID: u.ID,
		Role:   string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies a token and returns its claims.
func (t *TokenIssuer) Parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

const userLocalsKey = "portal_user"

// NewAuthMiddleware returns a Fiber middleware that validates the
// Bearer token and loads the live user record into request locals.
func NewAuthMiddleware(issuer *TokenIssuer, dir *identity.Directory, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/healthz" || path == "/readyz" || path == "/metrics" || path == "/api/v1/login" {
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}

		claims, err := issuer.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.Warn().
				Str("path", path).
				Str("method", c.Method()).
				Msg("unauthorized request: invalid token")
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_token", "Unauthorized",
				"Invalid or expired token")
		}

		user, ok := dir.Get(claims.UserID)
		if !ok {
			return problemResponse(c, fiber.StatusUnauthorized,
				"unknown_user", "Unauthorized",
				"Token subject no longer exists")
		}

		c.Locals(userLocalsKey, user)
		return c.Next()
	}
}

// currentUser extracts the authenticated user from request locals.
func currentUser(c *fiber.Ctx) identity.User {
	u, _ := c.Locals(userLocalsKey).(identity.User)
	return u
}

// requireRole enforces a minimum role level on a route group.
func requireRole(min identity.Role) fiber.Handler {
	level := map[identity.Role]int{
		identity.RoleUser:    1,
		identity.RoleManager: 2,
		identity.RoleAdmin:   3,
	}

	return func(c *fiber.Ctx) error {
		user := currentUser(c)
		if level[user.Role] < level[min] {
			return problemResponse(c, fiber.StatusForbidden,
				"insufficient_role", "Forbidden",
				"Insufficient permissions for this operation")
		}
		return c.Next()
	}
}
