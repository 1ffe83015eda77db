package services

import (
	"testing"
	"time"

	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestCreateWorkflowNormalizesUserMode(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "patch reminder",
		Body:             "please reboot",
		Priority:         2,
		WorkflowType:     "scheduled",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)

	var workflow models.Workflow
	require.NoError(t, db.Where("unique_id = ?", id).First(&workflow).Error)
	assert.Equal(t, models.DisplayTypeSingle, workflow.NotificationType)
	assert.Equal(t, models.StatusLive, workflow.Status)
	assert.False(t, workflow.Published)

	id2, err := svc.Create(CreateWorkflowRequest{
		Name:             "patch reminder",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1", "dev-2"},
	})
	require.NoError(t, err)

	workflow = models.Workflow{}
	require.NoError(t, db.Where("unique_id = ?", id2).First(&workflow).Error)
	assert.Equal(t, models.DisplayTypeMulti, workflow.NotificationType)
}

func TestCreateWorkflowAllTargetsEveryDevice(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")
	seedDevice(t, db, "dev-3", "Linux")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "fleet notice",
		NotificationType: models.NotificationTypeAll,
	})
	require.NoError(t, err)

	var records []models.DeviceWorkflow
	require.NoError(t, db.Where("workflow_id = ?", id).Find(&records).Error)
	require.Len(t, records, 3)
	for _, record := range records {
		assert.Nil(t, record.DivisionID)
		assert.False(t, record.Ack)
	}
}

func TestCreateWorkflowDivisionTagsRecords(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")
	seedDivision(t, db, "div-a", "Sales", "dev-1", "dev-2")
	seedDivision(t, db, "div-b", "Support", "dev-1")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "division notice",
		NotificationType: models.NotificationTypeDivision,
		IDs:              []string{"div-a", "div-b"},
	})
	require.NoError(t, err)

	var records []models.DeviceWorkflow
	require.NoError(t, db.Where("workflow_id = ?", id).Find(&records).Error)
	require.Len(t, records, 3)
	for _, record := range records {
		require.NotNil(t, record.DivisionID)
	}
}

func TestCreateWorkflowInvalidModeRollsBack(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)

	_, err := svc.Create(CreateWorkflowRequest{
		Name:             "broken",
		NotificationType: "Broadcast",
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	var count int64
	require.NoError(t, db.Model(&models.Workflow{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdatePublishedWorkflowConflicts(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "frozen",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Workflow{}).Where("unique_id = ?", id).Update("published", true).Error)

	_, err = svc.Update(id, WorkflowPatch{Name: strPtr("renamed")})
	assert.ErrorIs(t, err, ErrConflict)

	var workflow models.Workflow
	require.NoError(t, db.Where("unique_id = ?", id).First(&workflow).Error)
	assert.Equal(t, "frozen", workflow.Name)
}

func TestUpdatePartialPatchLeavesOtherFields(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "original",
		Body:             "body",
		Priority:         1,
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(id, WorkflowPatch{Priority: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Priority)
	assert.Equal(t, "original", updated.Name)
	assert.Equal(t, "body", updated.Body)
}

func TestUpdateRejectsInvalidStatus(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "status check",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)

	_, err = svc.Update(id, WorkflowPatch{Status: strPtr("archived")})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateEmptyPatchRejected(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "no-op",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)

	_, err = svc.Update(id, WorkflowPatch{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestUpdateUnknownWorkflowNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)

	_, err := svc.Update("missing-id", WorkflowPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRetargetsOnModeChange(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")
	seedDevice(t, db, "dev-3", "Linux")
	seedDivision(t, db, "div-a", "Sales", "dev-2", "dev-3")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "retarget",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(id, WorkflowPatch{
		NotificationType: strPtr(models.NotificationTypeDivision),
		IDs:              []string{"div-a"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.NotificationTypeDivision, updated.NotificationType)

	var records []models.DeviceWorkflow
	require.NoError(t, db.Where("workflow_id = ?", id).Find(&records).Error)
	require.Len(t, records, 2)
	for _, record := range records {
		require.NotNil(t, record.DivisionID)
		assert.Equal(t, "div-a", *record.DivisionID)
		assert.NotEqual(t, "dev-1", record.DeviceID)
	}
}

func TestUpdateModeChangeRequiresIDs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "needs ids",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
	})
	require.NoError(t, err)

	_, err = svc.Update(id, WorkflowPatch{
		NotificationType: strPtr(models.NotificationTypeDivision),
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// The failed update must roll back the delivery-record deletion.
	var count int64
	require.NoError(t, db.Model(&models.DeviceWorkflow{}).Where("workflow_id = ?", id).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeleteWorkflowRemovesDeliveryRecords(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "short lived",
		NotificationType: models.NotificationTypeAll,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(id))

	var count int64
	require.NoError(t, db.Model(&models.DeviceWorkflow{}).Where("workflow_id = ?", id).Count(&count).Error)
	assert.Zero(t, count)

	_, err = svc.Acks(id)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, svc.Delete(id), ErrNotFound)
}

func TestHistoryOrdersByScheduleTimeDescending(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")

	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)

	_, err := svc.Create(CreateWorkflowRequest{
		Name:             "older",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Timestamp:        &older,
	})
	require.NoError(t, err)
	_, err = svc.Create(CreateWorkflowRequest{
		Name:             "newer",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Timestamp:        &newer,
	})
	require.NoError(t, err)

	history, err := svc.History()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "newer", history[0].Name)
	assert.Equal(t, "older", history[1].Name)
}

func TestAcksJoinsDeviceMetadata(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")

	id, err := svc.Create(CreateWorkflowRequest{
		Name:             "ack check",
		NotificationType: models.NotificationTypeAll,
	})
	require.NoError(t, err)

	acks, err := svc.Acks(id)
	require.NoError(t, err)
	require.Len(t, acks, 2)
	for _, ack := range acks {
		assert.False(t, ack.Acknowledged)
	}

	require.NoError(t, svc.AckDelivery(id, "dev-1"))

	acks, err = svc.Acks(id)
	require.NoError(t, err)
	byDevice := map[string]DeliveryAck{}
	for _, ack := range acks {
		byDevice[ack.DeviceID] = ack
	}
	assert.True(t, byDevice["dev-1"].Acknowledged)
	assert.Equal(t, "Windows dev-1", byDevice["dev-1"].DeviceName)
	assert.False(t, byDevice["dev-2"].Acknowledged)

	var record models.DeviceWorkflow
	require.NoError(t, db.Where("workflow_id = ? AND device_id = ?", id, "dev-1").First(&record).Error)
	require.NotNil(t, record.AcknowledgedAt)
}

func TestAckDeliveryUnknownRecordNotFound(t *testing.T) {
	db := setupTestDB(t)
	svc := NewWorkflowService(db)

	err := svc.AckDelivery("missing", "dev-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
