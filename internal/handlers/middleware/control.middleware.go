package middleware

import (
	"errors"
	"strings"

	"statushub/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const ControlSubjectKey = "controlSubject"

// RequireControlToken guards mutating routes with an HS256 bearer token
// signed with CONTROL_JWT_SECRET. An empty secret disables the guard.
func (m *Middleware) RequireControlToken() fiber.Handler {
	secret := []byte(m.Config.ControlJWTSecret)
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return c.Next()
		}

		log := logger.New("middleware").TraceFromContext(c.UserContext()).Function("RequireControlToken")

		token, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			log.Info("rejected control request", "reason", err.Error(), "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		claims := &jwt.RegisteredClaims{}
		if _, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		}); err != nil {
			log.Info("token validation failed", "error", err.Error(), "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(ControlSubjectKey, claims.Subject)
		return c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("Authorization header required")
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("Invalid authorization header format")
	}

	if parts[1] == "" {
		return "", errors.New("Token required")
	}

	return parts[1], nil
}

// GetControlSubject returns the subject of the verified control token
func GetControlSubject(c *fiber.Ctx) string {
	subject, _ := c.Locals(ControlSubjectKey).(string)
	return subject
}
