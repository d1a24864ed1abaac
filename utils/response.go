// utils/response.go - JSON response helpers
package utils

import "github.com/gofiber/fiber/v2"

// SendError writes the standard failure body
func SendError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
