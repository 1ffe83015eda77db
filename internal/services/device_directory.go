package services

import (
	"log"
	"strings"

	"github.com/mdmstudio/sns-backend/internal/database"
	"github.com/mdmstudio/sns-backend/internal/models"
	"gorm.io/gorm"
)

// DeviceInfo is the directory's view of a device.
type DeviceInfo struct {
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
}

// DeviceDirectory resolves device lists by division name or wholesale.
// Results are cached in Redis; writes to devices or divisions must call
// database.InvalidateDeviceCache.
type DeviceDirectory struct {
	db *gorm.DB
}

func NewDeviceDirectory(db *gorm.DB) *DeviceDirectory {
	return &DeviceDirectory{db: db}
}

// AllDevices returns every known device.
func (d *DeviceDirectory) AllDevices() ([]DeviceInfo, error) {
	var cached []DeviceInfo
	if err := database.CacheGet(database.CacheKeyAllDevices, &cached); err == nil {
		return cached, nil
	}

	var devices []models.Device
	if err := d.db.Find(&devices).Error; err != nil {
		return nil, err
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		infos = append(infos, DeviceInfo{
			DeviceID:   devices[i].DeviceID,
			DeviceName: devices[i].DisplayName(),
		})
	}

	if err := database.CacheSet(database.CacheKeyAllDevices, infos, database.CacheTTLDevices); err != nil {
		log.Printf("Directory: failed to cache device list: %v", err)
	}
	return infos, nil
}

// DevicesByDivisionNames returns the member devices of the named divisions.
func (d *DeviceDirectory) DevicesByDivisionNames(names []string) ([]DeviceInfo, error) {
	if len(names) == 0 {
		return nil, nil
	}

	cacheKey := database.CacheKeyDivisionDevices + strings.Join(names, ",")
	var cached []DeviceInfo
	if err := database.CacheGet(cacheKey, &cached); err == nil {
		return cached, nil
	}

	var devices []models.Device
	err := d.db.
		Joins("JOIN division_devices ON division_devices.device_id = devices.device_id").
		Joins("JOIN divisions ON divisions.division_id = division_devices.division_id").
		Where("divisions.division_name IN ?", names).
		Find(&devices).Error
	if err != nil {
		return nil, err
	}

	infos := make([]DeviceInfo, 0, len(devices))
	for i := range devices {
		infos = append(infos, DeviceInfo{
			DeviceID:   devices[i].DeviceID,
			DeviceName: devices[i].DisplayName(),
		})
	}

	if err := database.CacheSet(cacheKey, infos, database.CacheTTLDevices); err != nil {
		log.Printf("Directory: failed to cache division device list: %v", err)
	}
	return infos, nil
}
