// handlers/profiles.go - Signed-in user's profile and history
package handlers

import (
	"fitchallenge/middleware"
	"fitchallenge/services"

	"github.com/gofiber/fiber/v2"
)

// ensureAccount records identities verified by an external provider so
// author lookups can find their email
func ensureAccount(c *fiber.Ctx) error {
	id := middleware.GetIdentity(c)
	if id == nil {
		return profileService.EnsureUser(c.UserContext(), "", "")
	}
	return profileService.EnsureUser(c.UserContext(), id.UserID, id.Email)
}

// GetProfile returns the caller's profile
// GET /api/profile
func GetProfile(c *fiber.Ctx) error {
	if err := ensureAccount(c); err != nil {
		return sendError(c, err)
	}

	userID := middleware.GetUserID(c)
	profile, err := profileService.GetProfile(c.UserContext(), userID)
	if err != nil {
		return sendError(c, err)
	}
	user, err := profileService.GetUser(c.UserContext(), userID)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
		"user":    user,
	})
}

// UpdateProfile creates or replaces the caller's profile
// PUT /api/profile
func UpdateProfile(c *fiber.Ctx) error {
	var input services.ProfileInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}
	if err := ensureAccount(c); err != nil {
		return sendError(c, err)
	}

	profile, err := profileService.UpsertProfile(c.UserContext(), middleware.GetUserID(c), input)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"profile": profile,
	})
}

// GetMyChallenges lists the challenges the caller joined. past=true lists
// only ended ones.
// GET /api/profile/challenges
func GetMyChallenges(c *fiber.Ctx) error {
	filter := services.ChallengeFilter{
		IncludeEnded: true,
		Past:         c.QueryBool("past"),
		Limit:        c.QueryInt("limit"),
		Offset:       c.QueryInt("offset"),
	}

	challenges, err := challengeService.ListForUser(c.UserContext(), middleware.GetUserID(c), filter)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"challenges": challenges,
		"count":      len(challenges),
	})
}
