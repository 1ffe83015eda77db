package models

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// Workflow statuses
const (
	StatusLive      = "live"
	StatusDraft     = "draft"
	StatusCancelled = "cancelled"
)

// Addressing modes accepted from clients
const (
	NotificationTypeAll      = "All"
	NotificationTypeDivision = "Division"
	NotificationTypeUser     = "User"
)

// Display forms stored on the workflow row
const (
	DisplayTypeSingle = "Single"
	DisplayTypeMulti  = "Multi Select"
)

// Workflow is a notification definition with schedule, priority and
// addressing mode. A published workflow is immutable.
type Workflow struct {
	UniqueID         string    `gorm:"column:unique_id;primaryKey;size:36" json:"workflow_id"`
	Name             string    `gorm:"column:name;size:200;not null" json:"name"`
	Body             string    `gorm:"column:body;type:text" json:"body"`
	Priority         int       `gorm:"column:priority;default:0" json:"priority"`
	WorkflowType     string    `gorm:"column:workflow_type;size:50" json:"type"`
	NotificationType string    `gorm:"column:notification_type;size:20" json:"notification_type"`
	Time             time.Time `gorm:"column:time;index" json:"schedule_time"`
	Status           string    `gorm:"column:status;size:20;default:live" json:"status"`
	Published        bool      `gorm:"column:published;default:false" json:"published"`
	Ack              bool      `gorm:"column:ack;default:false" json:"ack"`
}

func (Workflow) TableName() string {
	return "workflow"
}

// DeviceWorkflow is one delivery record per (workflow, target device).
// DivisionID is set only when the workflow was addressed to divisions.
type DeviceWorkflow struct {
	ID             uint       `gorm:"column:id;primaryKey" json:"id"`
	WorkflowID     string     `gorm:"column:workflow_id;size:36;not null;index" json:"workflow_id"`
	DeviceID       string     `gorm:"column:device_id;size:100;not null;index" json:"device_id"`
	DivisionID     *string    `gorm:"column:division_id;size:36" json:"division_id,omitempty"`
	Ack            bool       `gorm:"column:ack;default:false" json:"ack"`
	AcknowledgedAt *time.Time `gorm:"column:acknowledged_at" json:"acknowledged_at,omitempty"`
}

func (DeviceWorkflow) TableName() string {
	return "device_workflows"
}

// Device is a managed endpoint. DeviceName may be empty, in which case the
// display name is derived from the OS type and id.
type Device struct {
	DeviceID   string    `gorm:"column:device_id;primaryKey;size:100" json:"device_id"`
	OSType     string    `gorm:"column:os_type;size:50" json:"os_type"`
	DeviceType string    `gorm:"column:device_type;size:50" json:"device_type"`
	DeviceName string    `gorm:"column:device_name;size:200" json:"device_name"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Device) TableName() string {
	return "devices"
}

// DisplayName returns the stored device name, falling back to
// "{os_type} {device_id}".
func (d *Device) DisplayName() string {
	if d.DeviceName != "" {
		return d.DeviceName
	}
	return fmt.Sprintf("%s %s", d.OSType, d.DeviceID)
}

// Division is a named group of devices.
type Division struct {
	DivisionID   string `gorm:"column:division_id;primaryKey;size:36" json:"division_id"`
	DivisionName string `gorm:"column:division_name;size:200;not null" json:"division_name"`
}

func (Division) TableName() string {
	return "divisions"
}

// DivisionDevice joins devices to divisions.
type DivisionDevice struct {
	ID         uint   `gorm:"column:id;primaryKey" json:"id"`
	DivisionID string `gorm:"column:division_id;size:36;not null;index" json:"division_id"`
	DeviceID   string `gorm:"column:device_id;size:100;not null;index" json:"device_id"`
}

func (DivisionDevice) TableName() string {
	return "division_devices"
}

// AutoScreenshot holds the recurring capture interval for one device.
// Timestamp is the last successful capture time.
type AutoScreenshot struct {
	ID              uint      `gorm:"column:id;primaryKey" json:"id"`
	DeviceID        string    `gorm:"column:device_id;size:100;not null;uniqueIndex" json:"device_id"`
	IntervalMinutes int       `gorm:"column:interval_minutes" json:"interval_minutes"`
	IsEnabled       bool      `gorm:"column:is_enabled;default:false" json:"is_enabled"`
	Timestamp       time.Time `gorm:"column:timestamp" json:"timestamp"`
}

func (AutoScreenshot) TableName() string {
	return "auto_screenshot"
}

// Screenshot is one capture request. IsPublished flips once the capture
// message has been handed to the publisher.
type Screenshot struct {
	ID          uint      `gorm:"column:id;primaryKey" json:"screenshot_id"`
	DeviceID    string    `gorm:"column:device_id;size:100;not null;index" json:"device_id"`
	FileName    string    `gorm:"column:file_name;size:255" json:"file_name"`
	StorageURL  string    `gorm:"column:storage_url;size:500" json:"storage_url"`
	IsPublished bool      `gorm:"column:is_published;default:false" json:"is_published"`
	Timestamp   time.Time `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`
}

func (Screenshot) TableName() string {
	return "screenshots"
}

// User is a dashboard operator account.
type User struct {
	ID        uint      `gorm:"column:id;primaryKey" json:"id"`
	Username  string    `gorm:"column:username;size:100;uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"column:password;size:255;not null" json:"-"`
	Email     string    `gorm:"column:email;size:200" json:"email"`
	FullName  string    `gorm:"column:full_name;size:200" json:"full_name"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&Device{},
		&Division{},
		&DivisionDevice{},
		&Workflow{},
		&DeviceWorkflow{},
		&AutoScreenshot{},
		&Screenshot{},
		&User{},
	); err != nil {
		return err
	}

	log.Println("Database migrations completed successfully")
	return nil
}
