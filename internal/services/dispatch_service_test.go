package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatch(t *testing.T) (*DispatchService, *WorkflowService, *fakePublisher) {
	t.Helper()
	db := setupTestDB(t)
	publisher := &fakePublisher{}
	return NewDispatchService(db, publisher, "device-notifications", time.Second),
		NewWorkflowService(db), publisher
}

func TestDispatchPassPublishesDueWorkflow(t *testing.T) {
	dispatch, workflows, publisher := newTestDispatch(t)
	db := dispatch.db
	seedDevice(t, db, "dev-1", "Windows")
	seedDevice(t, db, "dev-2", "macOS")
	seedDevice(t, db, "dev-3", "Linux")

	past := time.Now().Add(-time.Minute)
	id, err := workflows.Create(CreateWorkflowRequest{
		Name:             "due",
		Body:             "reboot now",
		Priority:         3,
		NotificationType: models.NotificationTypeAll,
		Timestamp:        &past,
	})
	require.NoError(t, err)

	dispatch.dispatchDue()

	assert.Equal(t, 3, publisher.count())

	var workflow models.Workflow
	require.NoError(t, db.Where("unique_id = ?", id).First(&workflow).Error)
	assert.True(t, workflow.Published)

	var message dispatchMessage
	require.NoError(t, json.Unmarshal(publisher.published[0].Payload, &message))
	assert.Equal(t, id, message.NotificationID)
	assert.Equal(t, "due", message.Name)
	assert.Equal(t, "reboot now", message.Body)
	assert.Equal(t, 3, message.Priority)
	assert.NotEmpty(t, message.DeviceID)
	assert.Equal(t, "device-notifications", publisher.published[0].Topic)
}

func TestDispatchPassSkipsDraftAndFutureWorkflows(t *testing.T) {
	dispatch, workflows, publisher := newTestDispatch(t)
	db := dispatch.db
	seedDevice(t, db, "dev-1", "Windows")

	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	draftID, err := workflows.Create(CreateWorkflowRequest{
		Name:             "draft",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Status:           models.StatusDraft,
		Timestamp:        &past,
	})
	require.NoError(t, err)

	_, err = workflows.Create(CreateWorkflowRequest{
		Name:             "future",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Timestamp:        &future,
	})
	require.NoError(t, err)

	cancelledID, err := workflows.Create(CreateWorkflowRequest{
		Name:             "cancelled",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Status:           models.StatusCancelled,
		Timestamp:        &past,
	})
	require.NoError(t, err)

	dispatch.dispatchDue()

	assert.Zero(t, publisher.count())

	var workflow models.Workflow
	require.NoError(t, db.Where("unique_id = ?", draftID).First(&workflow).Error)
	assert.False(t, workflow.Published)
	workflow = models.Workflow{}
	require.NoError(t, db.Where("unique_id = ?", cancelledID).First(&workflow).Error)
	assert.False(t, workflow.Published)
}

func TestDispatchPassIsIdempotent(t *testing.T) {
	dispatch, workflows, publisher := newTestDispatch(t)
	db := dispatch.db
	seedDevice(t, db, "dev-1", "Windows")

	past := time.Now().Add(-time.Minute)
	_, err := workflows.Create(CreateWorkflowRequest{
		Name:             "once",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Timestamp:        &past,
	})
	require.NoError(t, err)

	dispatch.dispatchDue()
	require.Equal(t, 1, publisher.count())

	dispatch.dispatchDue()
	assert.Equal(t, 1, publisher.count())
}

func TestDispatchPublishFailureStillMarksPublished(t *testing.T) {
	// Best-effort delivery: a failed publish is logged, the workflow is
	// marked published and never retried.
	dispatch, workflows, publisher := newTestDispatch(t)
	db := dispatch.db
	seedDevice(t, db, "dev-1", "Windows")

	past := time.Now().Add(-time.Minute)
	id, err := workflows.Create(CreateWorkflowRequest{
		Name:             "doomed",
		NotificationType: models.NotificationTypeUser,
		IDs:              []string{"dev-1"},
		Timestamp:        &past,
	})
	require.NoError(t, err)

	publisher.failing = true
	dispatch.dispatchDue()

	assert.Zero(t, publisher.count())

	var workflow models.Workflow
	require.NoError(t, db.Where("unique_id = ?", id).First(&workflow).Error)
	assert.True(t, workflow.Published)

	publisher.failing = false
	dispatch.dispatchDue()
	assert.Zero(t, publisher.count())
}
