package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/mdmstudio/sns-backend/internal/config"
	"github.com/mdmstudio/sns-backend/internal/models"
	"gorm.io/gorm"
)

// ArchiveService exports aged screenshot records to an FTP server as JSON
// and prunes them from the store. It is a best-effort housekeeping loop; a
// failed export leaves the rows in place for the next pass.
type ArchiveService struct {
	cfg       *config.Config
	db        *gorm.DB
	stopChan  chan struct{}
	wg        sync.WaitGroup
	lastRunAt time.Time
}

func NewArchiveService(cfg *config.Config, db *gorm.DB) *ArchiveService {
	return &ArchiveService{
		cfg:      cfg,
		db:       db,
		stopChan: make(chan struct{}),
	}
}

// Start begins the archive loop. No-op when no FTP host is configured.
func (s *ArchiveService) Start() {
	if s.cfg.ArchiveFTPHost == "" {
		log.Println("ArchiveService disabled, no FTP host configured")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Println("ArchiveService started, checking every 1 hour")

		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkAndRun()
			case <-s.stopChan:
				log.Println("ArchiveService stopped")
				return
			}
		}
	}()
}

// Stop stops the archive loop.
func (s *ArchiveService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// checkAndRun archives at most once per day.
func (s *ArchiveService) checkAndRun() {
	now := time.Now()
	if !s.lastRunAt.IsZero() && now.Sub(s.lastRunAt) < 24*time.Hour {
		return
	}
	s.lastRunAt = now

	if err := s.archive(now); err != nil {
		log.Printf("Archive: export failed: %v", err)
	}
}

// archive exports screenshots older than the retention window and deletes
// the exported rows once the upload has succeeded.
func (s *ArchiveService) archive(now time.Time) error {
	cutoff := now.AddDate(0, 0, -s.cfg.ArchiveRetentionDays)

	var screenshots []models.Screenshot
	if err := s.db.Where("timestamp < ?", cutoff).Find(&screenshots).Error; err != nil {
		return err
	}
	if len(screenshots) == 0 {
		return nil
	}

	data, err := json.Marshal(screenshots)
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("screenshots_%s.json", now.Format("20060102_150405"))
	if err := s.upload(filename, data); err != nil {
		return err
	}

	result := s.db.Where("timestamp < ?", cutoff).Delete(&models.Screenshot{})
	if result.Error != nil {
		return result.Error
	}

	log.Printf("Archive: exported %d screenshots to %s, pruned %d rows", len(screenshots), filename, result.RowsAffected)
	return nil
}

// upload stores one file on the configured FTP server.
func (s *ArchiveService) upload(filename string, data []byte) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ArchiveFTPHost, s.cfg.ArchiveFTPPort)
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("FTP connection failed: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(s.cfg.ArchiveFTPUsername, s.cfg.ArchiveFTPPassword); err != nil {
		return fmt.Errorf("FTP login failed: %w", err)
	}

	if s.cfg.ArchiveFTPPath != "" && s.cfg.ArchiveFTPPath != "/" {
		if err := conn.ChangeDir(s.cfg.ArchiveFTPPath); err != nil {
			// Directory may not exist yet
			conn.MakeDir(s.cfg.ArchiveFTPPath)
			if err := conn.ChangeDir(s.cfg.ArchiveFTPPath); err != nil {
				return fmt.Errorf("FTP directory change failed: %w", err)
			}
		}
	}

	if err := conn.Stor(filename, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("FTP upload failed: %w", err)
	}
	return nil
}
