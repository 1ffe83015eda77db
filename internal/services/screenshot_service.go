package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/mdmstudio/sns-backend/internal/pubsub"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Timer target spec types
const (
	TimerTargetUsers     = "users"
	TimerTargetDivisions = "divisions"
	TimerTargetAll       = "all"
)

// ScreenshotService owns per-device recurring capture timers and runs the
// polling loop that fires due captures through the publisher.
type ScreenshotService struct {
	db        *gorm.DB
	publisher pubsub.Publisher
	directory *DeviceDirectory
	topic     string
	interval  time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// captureMessage is the payload published for one capture request.
type captureMessage struct {
	DeviceName   string `json:"device_name"`
	ScreenshotID uint   `json:"screenshot_id"`
}

// TimerSpec addresses the devices whose capture timers are started.
type TimerSpec struct {
	Type            string   `json:"type"`
	DeviceIDs       []string `json:"device_ids"`
	DivisionNames   []string `json:"division_names"`
	IntervalMinutes int      `json:"interval_minutes"`
}

// StopSpec addresses the devices whose capture timers are stopped.
type StopSpec struct {
	DeviceIDs     []string `json:"device_ids"`
	DivisionNames []string `json:"division_names"`
	StopAll       bool     `json:"stop_all"`
}

// TimerResult reports the outcome of starting one device timer.
type TimerResult struct {
	DeviceID        string `json:"device_id"`
	DeviceName      string `json:"device_name,omitempty"`
	Status          string `json:"status"`
	IntervalMinutes int    `json:"interval_minutes,omitempty"`
}

// CaptureResult reports one immediate capture request.
type CaptureResult struct {
	DeviceName   string `json:"device_name"`
	ScreenshotID uint   `json:"screenshot_id"`
	MessageID    string `json:"message_id"`
}

func NewScreenshotService(db *gorm.DB, publisher pubsub.Publisher, directory *DeviceDirectory, topic string, interval time.Duration) *ScreenshotService {
	return &ScreenshotService{
		db:        db,
		publisher: publisher,
		directory: directory,
		topic:     topic,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the capture timer loop.
func (s *ScreenshotService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("ScreenshotService started, polling every %v", s.interval)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkTimers()
			case <-s.stopChan:
				log.Println("ScreenshotService stopped")
				return
			}
		}
	}()
}

// Stop stops the capture timer loop.
func (s *ScreenshotService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// checkTimers runs one pass over the enabled timers and captures every
// device whose interval has elapsed. The last-capture timestamp is advanced
// only after a successful store+publish, so a transient failure is retried
// on the next pass rather than silently skipped for a full interval.
func (s *ScreenshotService) checkTimers() {
	var timers []models.AutoScreenshot
	if err := s.db.Where("is_enabled = ?", true).Find(&timers).Error; err != nil {
		log.Printf("Screenshot: failed to load timers: %v", err)
		return
	}

	now := time.Now()
	for _, timer := range timers {
		if timer.Timestamp.IsZero() {
			continue
		}
		next := timer.Timestamp.Add(time.Duration(timer.IntervalMinutes) * time.Minute)
		if now.Before(next) {
			continue
		}

		if _, err := s.capture(timer.DeviceID); err != nil {
			log.Printf("Screenshot: capture failed for device %s: %v", timer.DeviceID, err)
			continue
		}
		err := s.db.Model(&models.AutoScreenshot{}).
			Where("device_id = ?", timer.DeviceID).
			Update("timestamp", now).Error
		if err != nil {
			log.Printf("Screenshot: failed to update capture timestamp for device %s: %v", timer.DeviceID, err)
		}
	}
}

// capture stores one capture request, publishes it, and marks the request
// published.
func (s *ScreenshotService) capture(deviceID string) (*CaptureResult, error) {
	var device models.Device
	if err := s.db.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return nil, err
	}

	screenshot := models.Screenshot{DeviceID: deviceID}
	if err := s.db.Create(&screenshot).Error; err != nil {
		return nil, err
	}

	payload, err := json.Marshal(captureMessage{
		DeviceName:   device.DisplayName(),
		ScreenshotID: screenshot.ID,
	})
	if err != nil {
		return nil, err
	}
	messageID, err := s.publisher.Publish(context.Background(), s.topic, payload)
	if err != nil {
		return nil, err
	}

	err = s.db.Model(&models.Screenshot{}).
		Where("id = ?", screenshot.ID).
		Update("is_published", true).Error
	if err != nil {
		log.Printf("Screenshot: failed to mark screenshot %d published: %v", screenshot.ID, err)
	}

	return &CaptureResult{
		DeviceName:   device.DisplayName(),
		ScreenshotID: screenshot.ID,
		MessageID:    messageID,
	}, nil
}

// CaptureNow requests an immediate capture from the given devices and every
// member of the given divisions.
func (s *ScreenshotService) CaptureNow(deviceIDs, divisionNames []string) ([]CaptureResult, error) {
	if len(divisionNames) > 0 {
		divisionDevices, err := s.directory.DevicesByDivisionNames(divisionNames)
		if err != nil {
			return nil, err
		}
		for _, device := range divisionDevices {
			deviceIDs = append(deviceIDs, device.DeviceID)
		}
	}
	if len(deviceIDs) == 0 {
		return nil, fmt.Errorf("%w: no valid devices found", ErrNotFound)
	}

	seen := make(map[string]bool)
	var results []CaptureResult
	for _, deviceID := range deviceIDs {
		if seen[deviceID] {
			continue
		}
		seen[deviceID] = true

		result, err := s.capture(deviceID)
		if err != nil {
			log.Printf("Screenshot: skipping device %s: %v", deviceID, err)
			continue
		}
		results = append(results, *result)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no valid devices processed", ErrNotFound)
	}
	return results, nil
}

// StartTimer enables recurring captures for the addressed devices. The
// "all" target re-arms every existing timer row; it does not create rows for
// devices that never had one.
func (s *ScreenshotService) StartTimer(spec TimerSpec) ([]TimerResult, error) {
	if spec.IntervalMinutes < 1 {
		return nil, fmt.Errorf("%w: interval must be at least 1 minute", ErrInvalidRequest)
	}

	switch spec.Type {
	case TimerTargetUsers:
		results := make([]TimerResult, 0, len(spec.DeviceIDs))
		for _, deviceID := range spec.DeviceIDs {
			results = append(results, s.startDeviceTimer(deviceID, spec.IntervalMinutes))
		}
		return results, nil

	case TimerTargetDivisions:
		devices, err := s.directory.DevicesByDivisionNames(spec.DivisionNames)
		if err != nil {
			return nil, err
		}
		results := make([]TimerResult, 0, len(devices))
		for _, device := range devices {
			results = append(results, s.startDeviceTimer(device.DeviceID, spec.IntervalMinutes))
		}
		return results, nil

	case TimerTargetAll:
		err := s.db.Model(&models.AutoScreenshot{}).
			Where("1 = 1").
			Updates(map[string]interface{}{
				"interval_minutes": spec.IntervalMinutes,
				"is_enabled":       true,
				"timestamp":        time.Now(),
			}).Error
		if err != nil {
			return nil, err
		}
		var timers []models.AutoScreenshot
		if err := s.db.Find(&timers).Error; err != nil {
			return nil, err
		}
		results := make([]TimerResult, 0, len(timers))
		for _, timer := range timers {
			results = append(results, TimerResult{
				DeviceID:        timer.DeviceID,
				Status:          "Timer started",
				IntervalMinutes: spec.IntervalMinutes,
			})
		}
		return results, nil

	default:
		return nil, fmt.Errorf("%w: invalid timer type %q", ErrInvalidRequest, spec.Type)
	}
}

// startDeviceTimer upserts the timer row for one device.
func (s *ScreenshotService) startDeviceTimer(deviceID string, intervalMinutes int) TimerResult {
	var device models.Device
	if err := s.db.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		return TimerResult{DeviceID: deviceID, Status: "Device not found"}
	}

	timer := models.AutoScreenshot{
		DeviceID:        deviceID,
		IntervalMinutes: intervalMinutes,
		IsEnabled:       true,
		Timestamp:       time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"interval_minutes", "is_enabled", "timestamp"}),
	}).Create(&timer).Error
	if err != nil {
		log.Printf("Screenshot: failed to store timer for device %s: %v", deviceID, err)
		return TimerResult{DeviceID: deviceID, DeviceName: device.DisplayName(), Status: "Failed to store timer"}
	}

	return TimerResult{
		DeviceID:        deviceID,
		DeviceName:      device.DisplayName(),
		Status:          "Timer started",
		IntervalMinutes: intervalMinutes,
	}
}

// StopTimer disables the timers addressed by the spec and returns the
// affected device ids.
func (s *ScreenshotService) StopTimer(spec StopSpec) ([]string, error) {
	whereSQL := "is_enabled = ?"
	whereArgs := []interface{}{true}

	switch {
	case spec.StopAll:
	case len(spec.DivisionNames) > 0:
		devices, err := s.directory.DevicesByDivisionNames(spec.DivisionNames)
		if err != nil {
			return nil, err
		}
		deviceIDs := make([]string, 0, len(devices))
		for _, device := range devices {
			deviceIDs = append(deviceIDs, device.DeviceID)
		}
		whereSQL += " AND device_id IN ?"
		whereArgs = append(whereArgs, deviceIDs)
	case len(spec.DeviceIDs) > 0:
		whereSQL += " AND device_id IN ?"
		whereArgs = append(whereArgs, spec.DeviceIDs)
	default:
		return nil, fmt.Errorf("%w: no device ids or division names provided", ErrInvalidRequest)
	}

	var stopped []string
	err := s.db.Model(&models.AutoScreenshot{}).
		Where(whereSQL, whereArgs...).
		Pluck("device_id", &stopped).Error
	if err != nil {
		return nil, err
	}
	if len(stopped) == 0 {
		return nil, fmt.Errorf("%w: no active timers found for the provided devices or divisions", ErrNotFound)
	}

	err = s.db.Model(&models.AutoScreenshot{}).
		Where(whereSQL, whereArgs...).
		Update("is_enabled", false).Error
	if err != nil {
		return nil, err
	}
	return stopped, nil
}
