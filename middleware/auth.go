package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"quickpad/crypto"
)

// RequireAuth validates the bearer token and the backing Redis session and
// sets user_id for downstream handlers. A token that parses but whose
// session was revoked is rejected.
func RequireAuth(secret []byte, rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get(fiber.HeaderAuthorization)
		if auth == "" {
			return unauthorized(c, "Missing authorization")
		}
		token := auth
		if len(auth) > 7 && (auth[:7] == "Bearer " || auth[:7] == "bearer ") {
			token = auth[7:]
		}

		parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !parsed.Valid {
			return unauthorized(c, "Invalid token")
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok {
			return unauthorized(c, "Invalid token")
		}
		userIDStr, ok := claims["user_id"].(string)
		if !ok {
			return unauthorized(c, "Missing user_id claim")
		}
		if _, err := uuid.Parse(userIDStr); err != nil {
			return unauthorized(c, "Invalid user_id format")
		}

		// A valid signature is not enough: logout revokes the session key
		if rdb != nil {
			if err := rdb.Get(c.Context(), crypto.SessionKey(token)).Err(); err != nil {
				return unauthorized(c, "Session expired")
			}
		}

		c.Locals("user_id", userIDStr)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
