package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/mdmstudio/sns-backend/internal/database"
	"github.com/mdmstudio/sns-backend/internal/models"
	"gorm.io/gorm"
)

// DivisionHandler manages named device groups.
type DivisionHandler struct{}

func NewDivisionHandler() *DivisionHandler {
	return &DivisionHandler{}
}

type createDivisionRequest struct {
	DivisionName string   `json:"Division_name"`
	DeviceIDs    []string `json:"device_ids"`
}

// Create makes a new division with the given member devices.
func (h *DivisionHandler) Create(c *fiber.Ctx) error {
	var req createDivisionRequest
	if err := c.BodyParser(&req); err != nil || req.DivisionName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	divisionID := uuid.NewString()
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		division := models.Division{
			DivisionID:   divisionID,
			DivisionName: req.DivisionName,
		}
		if err := tx.Create(&division).Error; err != nil {
			return err
		}
		for _, deviceID := range req.DeviceIDs {
			member := models.DivisionDevice{
				DivisionID: divisionID,
				DeviceID:   deviceID,
			}
			if err := tx.Create(&member).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	database.InvalidateDeviceCache()

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"message":     "Division created successfully",
		"division_id": divisionID,
	})
}

// List returns all divisions.
func (h *DivisionHandler) List(c *fiber.Ctx) error {
	var divisions []models.Division
	if err := database.DB.Find(&divisions).Error; err != nil {
		return fail(c, err)
	}
	if len(divisions) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "No divisions found",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"divisions": divisions,
	})
}

// UnassignedDevices returns devices that belong to no division.
func (h *DivisionHandler) UnassignedDevices(c *fiber.Ctx) error {
	var devices []models.Device
	err := database.DB.
		Joins("LEFT JOIN division_devices ON division_devices.device_id = devices.device_id").
		Where("division_devices.device_id IS NULL").
		Find(&devices).Error
	if err != nil {
		return fail(c, err)
	}
	if len(devices) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "No unassigned devices found",
		})
	}

	list := make([]fiber.Map, 0, len(devices))
	for i := range devices {
		list = append(list, fiber.Map{
			"device_id":   devices[i].DeviceID,
			"device_name": fmt.Sprintf("%s %s", devices[i].OSType, devices[i].DeviceID),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":            true,
		"unassigned_devices": list,
	})
}
