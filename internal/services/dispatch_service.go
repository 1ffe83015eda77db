package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/mdmstudio/sns-backend/internal/pubsub"
	"gorm.io/gorm"
)

// DispatchService polls for due, unpublished, live workflows and publishes
// one message per delivery record. Delivery is at-most-once: the workflow is
// marked published after the batch even if individual publishes failed, so a
// failed device is not retried on the next pass.
type DispatchService struct {
	db        *gorm.DB
	publisher pubsub.Publisher
	topic     string
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// dispatchMessage is the payload delivered to each target device.
type dispatchMessage struct {
	NotificationID string    `json:"notification_id"`
	Name           string    `json:"name"`
	Body           string    `json:"body"`
	Priority       int       `json:"priority"`
	DeviceID       string    `json:"device_id"`
	Timestamp      time.Time `json:"timestamp"`
}

func NewDispatchService(db *gorm.DB, publisher pubsub.Publisher, topic string, interval time.Duration) *DispatchService {
	return &DispatchService{
		db:        db,
		publisher: publisher,
		topic:     topic,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the dispatch loop.
func (s *DispatchService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("DispatchService started, polling every %v", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.dispatchDue()
			case <-s.stopChan:
				log.Println("DispatchService stopped")
				return
			}
		}
	}()
}

// Stop stops the dispatch loop and waits for the current pass to finish.
func (s *DispatchService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// dispatchDue runs one dispatch pass. A store failure aborts the pass;
// anything already dispatched stays dispatched and the rest is retried on
// the next tick.
func (s *DispatchService) dispatchDue() {
	var due []models.Workflow
	err := s.db.
		Where("time <= ? AND published = ? AND status = ?", time.Now(), false, models.StatusLive).
		Find(&due).Error
	if err != nil {
		log.Printf("Dispatch: failed to query due workflows: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("Dispatch: found %d workflows to publish", len(due))
	for i := range due {
		s.dispatchWorkflow(&due[i])
	}
}

// dispatchWorkflow publishes one message per delivery record, then marks the
// workflow published. A publish failure for one device is logged and does
// not block the remaining devices or the published flag.
func (s *DispatchService) dispatchWorkflow(workflow *models.Workflow) {
	var records []models.DeviceWorkflow
	if err := s.db.Where("workflow_id = ?", workflow.UniqueID).Find(&records).Error; err != nil {
		log.Printf("Dispatch: failed to load delivery records for workflow %s: %v", workflow.UniqueID, err)
		return
	}

	ctx := context.Background()
	for _, record := range records {
		payload, err := json.Marshal(dispatchMessage{
			NotificationID: workflow.UniqueID,
			Name:           workflow.Name,
			Body:           workflow.Body,
			Priority:       workflow.Priority,
			DeviceID:       record.DeviceID,
			Timestamp:      workflow.Time,
		})
		if err != nil {
			log.Printf("Dispatch: failed to encode message for device %s: %v", record.DeviceID, err)
			continue
		}

		messageID, err := s.publisher.Publish(ctx, s.topic, payload)
		if err != nil {
			log.Printf("Dispatch: failed to publish workflow %s to device %s: %v", workflow.UniqueID, record.DeviceID, err)
			continue
		}
		log.Printf("Dispatch: published workflow %s to device %s (message %s)", workflow.UniqueID, record.DeviceID, messageID)
	}

	err := s.db.Model(&models.Workflow{}).
		Where("unique_id = ?", workflow.UniqueID).
		Update("published", true).Error
	if err != nil {
		log.Printf("Dispatch: failed to mark workflow %s published: %v", workflow.UniqueID, err)
	}
}
