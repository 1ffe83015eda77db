package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mdmstudio/sns-backend/internal/models"
	"gorm.io/gorm"
)

// WorkflowService owns workflow definitions and their delivery records.
type WorkflowService struct {
	db *gorm.DB
}

func NewWorkflowService(db *gorm.DB) *WorkflowService {
	return &WorkflowService{db: db}
}

// CreateWorkflowRequest is the definition accepted from the API layer.
type CreateWorkflowRequest struct {
	Name             string     `json:"name"`
	Body             string     `json:"body"`
	Priority         int        `json:"priority"`
	WorkflowType     string     `json:"WorkflowType"`
	NotificationType string     `json:"NotificationType"`
	IDs              []string   `json:"ids"`
	Status           string     `json:"status"`
	Timestamp        *time.Time `json:"timestamp"`
}

// WorkflowPatch is a partial update; nil fields are left untouched.
type WorkflowPatch struct {
	Name             *string    `json:"name"`
	Body             *string    `json:"body"`
	Priority         *int       `json:"priority"`
	Status           *string    `json:"status"`
	WorkflowType     *string    `json:"WorkflowType"`
	NotificationType *string    `json:"NotificationType"`
	IDs              []string   `json:"ids"`
	Timestamp        *time.Time `json:"timestamp"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p *WorkflowPatch) IsEmpty() bool {
	return p.Name == nil && p.Body == nil && p.Priority == nil &&
		p.Status == nil && p.WorkflowType == nil && p.NotificationType == nil &&
		p.Timestamp == nil && p.IDs == nil
}

// DeliveryAck is one per-device acknowledgment row.
type DeliveryAck struct {
	DeviceID     string `json:"device_id"`
	Acknowledged bool   `json:"acknowledged"`
	DeviceName   string `json:"device_name"`
}

// displayNotificationType normalizes the addressing mode into the stored
// display form: User mode becomes Single or Multi Select by id count.
func displayNotificationType(mode string, ids []string) string {
	if mode == models.NotificationTypeUser {
		if len(ids) == 1 {
			return models.DisplayTypeSingle
		}
		return models.DisplayTypeMulti
	}
	return mode
}

// Create persists a new workflow as unpublished and writes one delivery
// record per resolved target, all in one transaction. Returns the
// server-generated workflow id.
func (s *WorkflowService) Create(req CreateWorkflowRequest) (string, error) {
	id := uuid.NewString()

	scheduleTime := time.Now()
	if req.Timestamp != nil {
		scheduleTime = *req.Timestamp
	}
	status := req.Status
	if status == "" {
		status = models.StatusLive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		workflow := models.Workflow{
			UniqueID:         id,
			Name:             req.Name,
			Body:             req.Body,
			Priority:         req.Priority,
			WorkflowType:     req.WorkflowType,
			NotificationType: displayNotificationType(req.NotificationType, req.IDs),
			Time:             scheduleTime,
			Status:           status,
		}
		if err := tx.Create(&workflow).Error; err != nil {
			return err
		}

		targets, err := ResolveTargets(tx, req.NotificationType, req.IDs)
		if err != nil {
			return err
		}
		return createDeliveryRecords(tx, id, targets)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Update applies a partial patch to an unpublished workflow. Changing the
// notification type replaces every delivery record with a freshly resolved
// set; field updates and the replacement commit or roll back together.
func (s *WorkflowService) Update(id string, patch WorkflowPatch) (*models.Workflow, error) {
	var updated models.Workflow

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var current models.Workflow
		if err := tx.Where("unique_id = ?", id).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: workflow %s", ErrNotFound, id)
			}
			return err
		}

		if current.Published && !patch.IsEmpty() {
			return fmt.Errorf("%w: cannot update a workflow that has already been published", ErrConflict)
		}

		fields := map[string]interface{}{}
		if patch.Name != nil {
			fields["name"] = *patch.Name
		}
		if patch.Body != nil {
			fields["body"] = *patch.Body
		}
		if patch.Priority != nil {
			fields["priority"] = *patch.Priority
		}
		if patch.Status != nil {
			switch *patch.Status {
			case models.StatusLive, models.StatusDraft, models.StatusCancelled:
			default:
				return fmt.Errorf("%w: invalid status, must be one of: live, draft, cancelled", ErrInvalidRequest)
			}
			fields["status"] = *patch.Status
		}
		if patch.WorkflowType != nil {
			fields["workflow_type"] = *patch.WorkflowType
		}
		if patch.Timestamp != nil {
			fields["time"] = *patch.Timestamp
		}

		if patch.NotificationType != nil && *patch.NotificationType != current.NotificationType {
			newType := *patch.NotificationType

			if err := tx.Where("workflow_id = ?", id).Delete(&models.DeviceWorkflow{}).Error; err != nil {
				return err
			}

			if patch.IDs == nil &&
				(newType == models.NotificationTypeUser || newType == models.NotificationTypeDivision) {
				return fmt.Errorf("%w: 'ids' must be provided when notification type is %s", ErrInvalidRequest, newType)
			}

			targets, err := ResolveTargets(tx, newType, patch.IDs)
			if err != nil {
				return err
			}
			if err := createDeliveryRecords(tx, id, targets); err != nil {
				return err
			}

			fields["notification_type"] = displayNotificationType(newType, patch.IDs)
		}

		if len(fields) == 0 {
			return fmt.Errorf("%w: no fields provided for update", ErrInvalidRequest)
		}

		if err := tx.Model(&models.Workflow{}).Where("unique_id = ?", id).Updates(fields).Error; err != nil {
			return err
		}
		return tx.Where("unique_id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes a workflow and all of its delivery records. Deleting the
// records of a missing workflow is a no-op; the workflow row itself must
// exist.
func (s *WorkflowService) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workflow_id = ?", id).Delete(&models.DeviceWorkflow{}).Error; err != nil {
			return err
		}
		result := tx.Where("unique_id = ?", id).Delete(&models.Workflow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: workflow %s", ErrNotFound, id)
		}
		return nil
	})
}

// History returns all workflows, most recently scheduled first.
func (s *WorkflowService) History() ([]models.Workflow, error) {
	var workflows []models.Workflow
	if err := s.db.Order("time DESC").Find(&workflows).Error; err != nil {
		return nil, err
	}
	return workflows, nil
}

// Acks returns the per-device acknowledgment state for a workflow. A
// workflow with zero delivery records reports not found; existence of the
// workflow row itself is the caller's concern.
func (s *WorkflowService) Acks(workflowID string) ([]DeliveryAck, error) {
	var rows []struct {
		DeviceID string
		Ack      bool
		OSType   string
	}
	err := s.db.Table("device_workflows").
		Select("device_workflows.device_id, device_workflows.ack, devices.os_type").
		Joins("JOIN devices ON devices.device_id = device_workflows.device_id").
		Where("device_workflows.workflow_id = ?", workflowID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no acknowledgements found for this workflow", ErrNotFound)
	}

	acks := make([]DeliveryAck, 0, len(rows))
	for _, row := range rows {
		acks = append(acks, DeliveryAck{
			DeviceID:     row.DeviceID,
			Acknowledged: row.Ack,
			DeviceName:   fmt.Sprintf("%s %s", row.OSType, row.DeviceID),
		})
	}
	return acks, nil
}

// AckDelivery records a device's acknowledgment of a dispatched workflow.
func (s *WorkflowService) AckDelivery(workflowID, deviceID string) error {
	now := time.Now()
	result := s.db.Model(&models.DeviceWorkflow{}).
		Where("workflow_id = ? AND device_id = ?", workflowID, deviceID).
		Updates(map[string]interface{}{"ack": true, "acknowledged_at": &now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: no delivery record for workflow %s on device %s", ErrNotFound, workflowID, deviceID)
	}
	return nil
}
