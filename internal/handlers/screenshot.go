package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mdmstudio/sns-backend/internal/database"
	"github.com/mdmstudio/sns-backend/internal/services"
)

// ScreenshotHandler exposes capture requests and recurring capture timers.
type ScreenshotHandler struct {
	screenshots *services.ScreenshotService
	directory   *services.DeviceDirectory
}

func NewScreenshotHandler(screenshots *services.ScreenshotService, directory *services.DeviceDirectory) *ScreenshotHandler {
	return &ScreenshotHandler{screenshots: screenshots, directory: directory}
}

type captureRequest struct {
	DeviceIDs     []string `json:"device_ids"`
	DivisionNames []string `json:"division_names"`
}

// Capture requests an immediate screenshot from the addressed devices.
func (h *ScreenshotHandler) Capture(c *fiber.Ctx) error {
	var req captureRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	results, err := h.screenshots.CaptureNow(req.DeviceIDs, req.DivisionNames)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"results": results,
	})
}

// CaptureAll requests an immediate screenshot from every known device.
func (h *ScreenshotHandler) CaptureAll(c *fiber.Ctx) error {
	devices, err := h.directory.AllDevices()
	if err != nil {
		return fail(c, err)
	}

	deviceIDs := make([]string, 0, len(devices))
	for _, device := range devices {
		deviceIDs = append(deviceIDs, device.DeviceID)
	}

	results, err := h.screenshots.CaptureNow(deviceIDs, nil)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"results": results,
	})
}

// List returns capture history with device info and timer state joined in.
func (h *ScreenshotHandler) List(c *fiber.Ctx) error {
	var details []struct {
		ScreenshotID    uint   `json:"screenshot_id"`
		DeviceID        string `json:"device_id"`
		DeviceInfo      string `json:"device_info"`
		FileName        string `json:"file_name"`
		StorageURL      string `json:"storage_url"`
		CreatedAt       string `json:"created_at"`
		IntervalMinutes int    `json:"interval_minutes"`
		IsEnabled       bool   `json:"is_enabled"`
	}

	err := database.DB.Table("screenshots").
		Select(`screenshots.id AS screenshot_id, screenshots.device_id,
			(devices.os_type || ' ' || devices.device_id) AS device_info,
			screenshots.file_name, screenshots.storage_url, screenshots.timestamp AS created_at,
			COALESCE(auto_screenshot.interval_minutes, 0) AS interval_minutes,
			COALESCE(auto_screenshot.is_enabled, false) AS is_enabled`).
		Joins("JOIN devices ON devices.device_id = screenshots.device_id").
		Joins("LEFT JOIN auto_screenshot ON auto_screenshot.device_id = screenshots.device_id").
		Order("screenshots.timestamp DESC").
		Scan(&details).Error
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":            true,
		"screenshot_details": details,
	})
}

// StartTimer enables recurring captures for the addressed devices.
func (h *ScreenshotHandler) StartTimer(c *fiber.Ctx) error {
	var spec services.TimerSpec
	if err := c.BodyParser(&spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	results, err := h.screenshots.StartTimer(spec)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"results": results,
	})
}

// StopTimer disables recurring captures for the addressed devices.
func (h *ScreenshotHandler) StopTimer(c *fiber.Ctx) error {
	var spec services.StopSpec
	if err := c.BodyParser(&spec); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	stopped, err := h.screenshots.StopTimer(spec)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":        true,
		"status":         "Timers stopped",
		"stopped_timers": stopped,
	})
}
