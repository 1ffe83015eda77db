package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/mdmstudio/sns-backend/internal/database"
	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/mdmstudio/sns-backend/internal/services"
)

// DeviceHandler exposes the device inventory and the device-facing
// acknowledgment endpoint.
type DeviceHandler struct {
	workflows *services.WorkflowService
}

func NewDeviceHandler(workflows *services.WorkflowService) *DeviceHandler {
	return &DeviceHandler{workflows: workflows}
}

// List returns every known device with its derived display name.
func (h *DeviceHandler) List(c *fiber.Ctx) error {
	var devices []models.Device
	if err := database.DB.Find(&devices).Error; err != nil {
		return fail(c, err)
	}
	if len(devices) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "No devices found",
		})
	}

	list := make([]fiber.Map, 0, len(devices))
	for i := range devices {
		list = append(list, fiber.Map{
			"device_id":   devices[i].DeviceID,
			"device_name": fmt.Sprintf("%s %s", devices[i].OSType, devices[i].DeviceID),
			"device_type": devices[i].DeviceType,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"devices": list,
	})
}

// Register enrolls a new device.
func (h *DeviceHandler) Register(c *fiber.Ctx) error {
	var device models.Device
	if err := c.BodyParser(&device); err != nil || device.DeviceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if err := database.DB.Create(&device).Error; err != nil {
		return fail(c, err)
	}
	database.InvalidateDeviceCache()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"message":   "Device registered successfully",
		"device_id": device.DeviceID,
	})
}

type ackRequest struct {
	WorkflowID string `json:"workflow_id"`
}

// Ack records a device's acknowledgment of a dispatched workflow.
func (h *DeviceHandler) Ack(c *fiber.Ctx) error {
	var req ackRequest
	if err := c.BodyParser(&req); err != nil || req.WorkflowID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	if err := h.workflows.AckDelivery(req.WorkflowID, c.Params("id")); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": "Acknowledgment recorded",
	})
}
