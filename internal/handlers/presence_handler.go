package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/DietChatBack/internal/models"
	"github.com/saeid-a/DietChatBack/internal/services"
)

type PresenceHandler struct {
	presence *services.PresenceService
}

func NewPresenceHandler(presence *services.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

type setAvailabilityRequest struct {
	Availability string `json:"availability" validate:"required,oneof=online busy offline"`
}

// GetAvailability reads a dietitian's availability flag. Dietitians read
// their own; clients pass the dietitian they are looking at.
func (h *PresenceHandler) GetAvailability(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	dietitianID := userID
	if role != models.RoleDietitian {
		dietitianID = c.Query("dietitianId")
	}

	availability, err := h.presence.GetAvailability(c.Context(), dietitianID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"availability": availability})
}

func (h *PresenceHandler) SetAvailability(c *fiber.Ctx) error {
	userID, role, err := callerIdentity(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if role != models.RoleDietitian {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req setAvailabilityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if err := h.presence.SetAvailability(c.Context(), userID, req.Availability); err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"availability": req.Availability})
}
