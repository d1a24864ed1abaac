// handlers/challenges.go - Challenge directory, detail and participation
package handlers

import (
	"errors"
	"time"

	"fitchallenge/middleware"
	"fitchallenge/models"
	"fitchallenge/services"
	"fitchallenge/storage"
	"fitchallenge/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ================== DIRECTORY ==================

// GetChallenges lists challenges newest first. Ended challenges are hidden
// unless all=true.
// GET /api/challenges?search=&difficulty=&category=&all=true&limit=&offset=
func GetChallenges(c *fiber.Ctx) error {
	filter, ok := directoryFilter(c)
	if !ok {
		return utils.SendError(c, fiber.StatusBadRequest, "difficulty must be one of easy, medium, hard")
	}

	challenges, err := challengeService.List(c.UserContext(), filter)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"challenges": challenges,
		"count":      len(challenges),
	})
}

// directoryFilter reads the directory query parameters. ok is false for an
// unknown difficulty.
func directoryFilter(c *fiber.Ctx) (filter services.ChallengeFilter, ok bool) {
	difficulty := models.Difficulty(c.Query("difficulty"))
	if difficulty != "" && !difficulty.Valid() {
		return filter, false
	}

	return services.ChallengeFilter{
		Search:       c.Query("search"),
		Difficulty:   difficulty,
		Category:     c.Query("category"),
		IncludeEnded: c.QueryBool("all"),
		Limit:        c.QueryInt("limit"),
		Offset:       c.QueryInt("offset"),
	}, true
}

// CreateChallenge stores a new challenge owned by the caller
// POST /api/challenges
func CreateChallenge(c *fiber.Ctx) error {
	var input services.CreateChallengeInput
	if err := c.BodyParser(&input); err != nil {
		return invalidBody(c)
	}

	challenge, err := challengeService.Create(c.UserContext(), middleware.GetUserID(c), input)
	if err != nil {
		return sendError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"challenge": challenge,
	})
}

// GetChallenge returns one challenge and whether the caller has joined it
// GET /api/challenges/:id
func GetChallenge(c *fiber.Ctx) error {
	id := c.Params("id")
	userID := middleware.GetUserID(c)

	var (
		challenge *models.Challenge
		joined    bool
	)
	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		var err error
		challenge, err = challengeService.Get(ctx, id)
		return err
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			joined, err = participationService.IsParticipant(ctx, id, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"challenge": challenge,
		"joined":    joined,
		"active":    challenge.IsActive(time.Now().UTC()),
	})
}

// DeleteChallenge removes a challenge the caller created
// DELETE /api/challenges/:id
func DeleteChallenge(c *fiber.Ctx) error {
	if err := challengeService.Delete(c.UserContext(), middleware.GetUserID(c), c.Params("id")); err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Challenge deleted",
	})
}

// UploadChallengeImage stores the multipart "image" field and sets it as the
// challenge image
// POST /api/challenges/:id/image
func UploadChallengeImage(c *fiber.Ctx) error {
	if blobStore == nil {
		return utils.SendError(c, fiber.StatusServiceUnavailable, "Image uploads are not configured")
	}

	id := c.Params("id")
	userID := middleware.GetUserID(c)

	challenge, err := challengeService.Get(c.UserContext(), id)
	if err != nil {
		return sendError(c, err)
	}
	if challenge.CreatedBy != userID {
		return utils.SendError(c, fiber.StatusForbidden, "only the creator can change the image")
	}

	header, err := c.FormFile("image")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "image file is required")
	}
	if header.Size > storage.MaxImageBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, storage.ErrTooLarge.Error())
	}
	file, err := header.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "could not read image")
	}
	defer file.Close()

	img, err := storage.ReadImage(file)
	switch {
	case errors.Is(err, storage.ErrTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrEmpty), errors.Is(err, storage.ErrNotAnImage):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case err != nil:
		return utils.SendError(c, fiber.StatusBadRequest, "could not read image")
	}

	url, err := blobStore.Upload(c.UserContext(), storage.ChallengeImageKey(id, img.Ext), img.Reader(), img.ContentType)
	if err != nil {
		utils.Logger.Error("image upload failed", zap.String("challenge_id", id), zap.Error(err))
		return utils.SendError(c, fiber.StatusBadGateway, "Failed to store image")
	}

	challenge, err = challengeService.SetImage(c.UserContext(), userID, id, url)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"challenge": challenge,
	})
}

// ================== PARTICIPATION ==================

// JoinChallenge adds the caller to the challenge. Joining twice is a no-op.
// POST /api/challenges/:id/join
func JoinChallenge(c *fiber.Ctx) error {
	result, err := participationService.Join(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return sendError(c, err)
	}
	return participationResponse(c, result)
}

// LeaveChallenge removes the caller from the challenge. Leaving without
// having joined is a no-op.
// POST /api/challenges/:id/leave
func LeaveChallenge(c *fiber.Ctx) error {
	result, err := participationService.Leave(c.UserContext(), c.Params("id"), middleware.GetUserID(c))
	if err != nil {
		return sendError(c, err)
	}
	return participationResponse(c, result)
}

func participationResponse(c *fiber.Ctx, result *services.ParticipationResult) error {
	return c.JSON(fiber.Map{
		"success":           true,
		"joined":            result.Joined,
		"participantsCount": result.ParticipantsCount,
		"changed":           result.Changed,
	})
}

// GetParticipants lists the challenge's participants in join order
// GET /api/challenges/:id/participants
func GetParticipants(c *fiber.Ctx) error {
	participants, err := participationService.Participants(c.UserContext(), c.Params("id"))
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"participants": participants,
		"count":        len(participants),
	})
}
