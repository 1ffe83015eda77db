package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mdmstudio/sns-backend/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	return db
}

func seedDevice(t *testing.T, db *gorm.DB, deviceID, osType string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Device{DeviceID: deviceID, OSType: osType}).Error)
}

func seedDivision(t *testing.T, db *gorm.DB, divisionID, name string, deviceIDs ...string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Division{DivisionID: divisionID, DivisionName: name}).Error)
	for _, deviceID := range deviceIDs {
		require.NoError(t, db.Create(&models.DivisionDevice{DivisionID: divisionID, DeviceID: deviceID}).Error)
	}
}

type publishedMessage struct {
	Topic   string
	Payload []byte
}

// fakePublisher records publishes and can be forced to fail.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	failing   bool
}

func (f *fakePublisher) Publish(_ context.Context, topic string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return "", errors.New("publisher unavailable")
	}
	f.published = append(f.published, publishedMessage{Topic: topic, Payload: data})
	return fmt.Sprintf("msg-%d", len(f.published)), nil
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}
