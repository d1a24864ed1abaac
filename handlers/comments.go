// handlers/comments.go - Challenge comment threads and reactions
package handlers

import (
	"fitchallenge/middleware"
	"fitchallenge/models"
	"fitchallenge/services"

	"github.com/gofiber/fiber/v2"
)

type EditCommentRequest struct {
	Text string `json:"text"`
}

// GetComments returns the challenge's comment threads
// GET /api/challenges/:id/comments
func GetComments(c *fiber.Ctx) error {
	threads, err := commentService.Thread(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"threads": threads,
		"count":   len(threads),
	})
}

// CreateComment posts a comment, or a reply when parentId is set
// POST /api/challenges/:id/comments
func CreateComment(c *fiber.Ctx) error {
	var input services.CreateCommentInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	author := services.Author{}
	if id := middleware.GetIdentity(c); id != nil {
		author = services.Author{ID: id.UserID, Email: id.Email}
	}

	comment, err := commentService.Create(c.UserContext(), author, c.Params("id"), input)
	if err != nil {
		return sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"comment": comment,
	})
}

// EditComment replaces the text of the caller's comment
// PUT /api/challenges/:id/comments/:commentId
func EditComment(c *fiber.Ctx) error {
	var req EditCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c)
	}

	comment, err := commentService.Edit(c.UserContext(), middleware.GetUserID(c),
		c.Params("id"), c.Params("commentId"), req.Text)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"comment": comment,
	})
}

// DeleteComment removes the caller's comment. Deleting a top-level comment
// removes its replies too.
// DELETE /api/challenges/:id/comments/:commentId
func DeleteComment(c *fiber.Ctx) error {
	err := commentService.Delete(c.UserContext(), middleware.GetUserID(c), c.Params("id"), c.Params("commentId"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Comment deleted",
	})
}

// ToggleReaction adds the caller's reaction of :kind, or removes it if present
// POST /api/challenges/:id/comments/:commentId/reactions/:kind
func ToggleReaction(c *fiber.Ctx) error {
	kind := models.ReactionKind(c.Params("kind"))

	comment, err := commentService.ToggleReaction(c.UserContext(), c.Params("id"), c.Params("commentId"),
		middleware.GetUserID(c), kind)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"reactions": comment.Reactions,
		"reacted":   comment.Reactions.Has(kind, middleware.GetUserID(c)),
	})
}
