package services

import (
	"fmt"

	"github.com/mdmstudio/sns-backend/internal/models"
	"gorm.io/gorm"
)

// Target is one resolved delivery destination. DivisionID is set only when
// the device was reached through a division.
type Target struct {
	DeviceID   string
	DivisionID *string
}

// ResolveTargets turns an addressing mode and id list into concrete delivery
// targets. It runs against the caller's transaction so creation and
// re-targeting share one code path.
//
//   - All: every known device, untagged; ids are ignored.
//   - Division: ids are division ids; one tagged target per (division,
//     member device). A device in two requested divisions yields two targets.
//   - User: ids are device ids, returned verbatim and untagged.
func ResolveTargets(tx *gorm.DB, mode string, ids []string) ([]Target, error) {
	switch mode {
	case models.NotificationTypeAll:
		var deviceIDs []string
		if err := tx.Model(&models.Device{}).Pluck("device_id", &deviceIDs).Error; err != nil {
			return nil, err
		}
		targets := make([]Target, 0, len(deviceIDs))
		for _, id := range deviceIDs {
			targets = append(targets, Target{DeviceID: id})
		}
		return targets, nil

	case models.NotificationTypeDivision:
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: 'ids' must be a list of division ids for division workflows", ErrInvalidRequest)
		}
		var targets []Target
		for _, divisionID := range ids {
			divisionID := divisionID
			var deviceIDs []string
			if err := tx.Model(&models.DivisionDevice{}).
				Where("division_id = ?", divisionID).
				Pluck("device_id", &deviceIDs).Error; err != nil {
				return nil, err
			}
			for _, deviceID := range deviceIDs {
				targets = append(targets, Target{DeviceID: deviceID, DivisionID: &divisionID})
			}
		}
		return targets, nil

	case models.NotificationTypeUser:
		if len(ids) == 0 {
			return nil, fmt.Errorf("%w: 'ids' must be provided for user workflows", ErrInvalidRequest)
		}
		targets := make([]Target, 0, len(ids))
		for _, id := range ids {
			targets = append(targets, Target{DeviceID: id})
		}
		return targets, nil

	default:
		return nil, fmt.Errorf("%w: invalid notification type %q", ErrInvalidRequest, mode)
	}
}

// createDeliveryRecords inserts one unacknowledged delivery record per
// target within the caller's transaction.
func createDeliveryRecords(tx *gorm.DB, workflowID string, targets []Target) error {
	for _, target := range targets {
		record := models.DeviceWorkflow{
			WorkflowID: workflowID,
			DeviceID:   target.DeviceID,
			DivisionID: target.DivisionID,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
	}
	return nil
}
