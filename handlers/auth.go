// handlers/auth.go - Password accounts and token issue
package handlers

import (
	"time"

	"fitchallenge/models"
	"fitchallenge/utils"

	"github.com/gofiber/fiber/v2"
)

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Success   bool         `json:"success"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt time.Time    `json:"expiresAt,omitempty"`
	User      *models.User `json:"user,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Register creates a password account and signs it in
// POST /api/auth/register
func Register(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := profileService.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return sendError(c, err)
	}
	return respondWithToken(c, fiber.StatusCreated, user)
}

// Login checks credentials and issues a token
// POST /api/auth/login
func Login(c *fiber.Ctx) error {
	var req CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	user, err := profileService.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return sendError(c, err)
	}
	return respondWithToken(c, fiber.StatusOK, user)
}

func respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	if tokenIssuer == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "Password sign-in is not configured")
	}

	token, expiresAt, err := tokenIssuer.Issue(user.ID, user.Email)
	if err != nil {
		return utils.SendError(c, fiber.StatusInternalServerError, "Failed to generate token")
	}

	return c.Status(status).JSON(AuthResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
