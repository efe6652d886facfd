package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const (
	PermissionMobile = 1
	PermissionAdmin  = 3
)

// Claims is what a token carries; handlers read it from c.Locals("user").
type Claims struct {
	Username   string `json:"username"`
	Permission int    `json:"permission"`
	jwt.RegisteredClaims
}

func IssueToken(secret, username string, permission int, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Username:   username,
		Permission: permission,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    "avicrm",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func tokenFromRequest(c *fiber.Ctx) string {
	if cookie := c.Cookies("jwt"); cookie != "" {
		return cookie
	}
	header := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// Verify requires a token with at least requiredPermission. An empty secret
// turns authentication off.
func Verify(secret string, requiredPermission int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		raw := tokenFromRequest(c)
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Not Logged In.",
			})
		}

		claims, err := ParseToken(secret, raw)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
			})
		}

		c.Locals("user", claims)

		if claims.Permission >= requiredPermission {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Insufficient permissions to access this resource",
		})
	}
}

// SameUser lets a request through only when the :param route value names the
// token's own user; admins may act for anyone. It runs after Verify and is a
// no-op when authentication is off.
func SameUser(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("user").(*Claims)
		if !ok {
			return c.Next()
		}
		if claims.Permission >= PermissionAdmin || strings.EqualFold(claims.Username, c.Params(param)) {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"message": "Token does not belong to this user",
		})
	}
}
