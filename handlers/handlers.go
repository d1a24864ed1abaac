// handlers/handlers.go - Shared handler state and error mapping
package handlers

import (
	"fitchallenge/database"
	"fitchallenge/middleware"
	"fitchallenge/realtime"
	"fitchallenge/services"
	"fitchallenge/storage"
	"fitchallenge/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	challengeService     *services.ChallengeService
	participationService *services.ParticipationService
	commentService       *services.CommentService
	profileService       *services.ProfileService
	blobStore            storage.BlobStore
	tokenIssuer          *middleware.JWTManager
)

// Deps are the collaborators the handlers are built from
type Deps struct {
	DB           *gorm.DB
	Broker       realtime.Broker
	Blobs        storage.BlobStore
	Tokens       *middleware.JWTManager
	TxMaxRetries int
}

// InitHandlers initializes the services used by the handlers
func InitHandlers(deps Deps) {
	if deps.DB == nil {
		deps.DB = database.GetDB()
	}
	if deps.Broker == nil {
		deps.Broker = realtime.NewMemoryBroker(realtime.DefaultBufferSize)
	}

	challengeService = services.NewChallengeService(deps.DB, deps.Broker)
	participationService = services.NewParticipationService(deps.DB, deps.Broker, deps.TxMaxRetries)
	commentService = services.NewCommentService(deps.DB, deps.Broker, deps.TxMaxRetries)
	profileService = services.NewProfileService(deps.DB)
	blobStore = deps.Blobs
	tokenIssuer = deps.Tokens
}

var statusByCode = map[services.ErrorCode]int{
	services.ErrValidation:      fiber.StatusBadRequest,
	services.ErrUnauthenticated: fiber.StatusUnauthorized,
	services.ErrForbidden:       fiber.StatusForbidden,
	services.ErrNotFound:        fiber.StatusNotFound,
	services.ErrConflict:        fiber.StatusConflict,
	services.ErrTransient:       fiber.StatusServiceUnavailable,
	services.ErrInternal:        fiber.StatusInternalServerError,
}

// sendError maps a service error to its HTTP status
func sendError(c *fiber.Ctx, err error) error {
	status, ok := statusByCode[services.CodeOf(err)]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	if status == fiber.StatusInternalServerError {
		utils.Logger.Error("request failed",
			zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	}
	return utils.SendError(c, status, services.MessageOf(err))
}

func invalidBody(c *fiber.Ctx) error {
	return utils.SendError(c, fiber.StatusBadRequest, "Invalid request body")
}
