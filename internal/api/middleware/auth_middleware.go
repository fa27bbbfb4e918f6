package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/postflow/pkg/utils"
	"go.uber.org/zap"
)

type AuthMiddleware struct {
	secretKey string
	logger    *zap.SugaredLogger
}

func NewAuthMiddleware(secretKey string, logger *zap.SugaredLogger) *AuthMiddleware {
	return &AuthMiddleware{secretKey: secretKey, logger: logger}
}

// AuthMiddleware accepts a service token as "Authorization: Bearer <jwt>".
func (m *AuthMiddleware) AuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing service token",
			})
		}

		claims, err := utils.ValidateServiceToken(m.secretKey, tokenString)
		if err != nil {
			m.logger.Infow("service token rejected", "ip", c.IP(), "error", err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("service", claims.Service)
		return c.Next()
	}
}
