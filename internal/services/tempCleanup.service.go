package services

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"statushub/config"
	"statushub/internal/events"
	"statushub/internal/types"
	"statushub/pkg/logger"
)

type TempCleanupService struct {
	channel  *events.Channel
	reporter *events.Reporter
	dir      string
	maxAge   time.Duration
	now      func() time.Time
	log      logger.Logger
}

func NewTempCleanupService(config config.Config, channel *events.Channel) *TempCleanupService {
	return &TempCleanupService{
		channel:  channel,
		reporter: events.NewReporter(channel, types.OpTempCleanup),
		dir:      config.TempDir,
		maxAge:   config.TempMaxAge(),
		now:      time.Now,
		log:      logger.New("tempCleanupService"),
	}
}

type StoredFile struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListExpiredFiles returns files under the temp directory older than the max age
func (s *TempCleanupService) ListExpiredFiles(ctx context.Context) ([]StoredFile, error) {
	log := s.log.Function("ListExpiredFiles")

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		log.Info("Temp directory does not exist", "directory", s.dir)
		return []StoredFile{}, nil
	}

	cutoff := s.now().Add(-s.maxAge)
	files := []StoredFile{}

	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !info.ModTime().Before(cutoff) {
			return nil
		}

		files = append(files, StoredFile{
			Path:       path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})

		return nil
	})

	if err != nil {
		return nil, log.Err("failed to walk directory", err, "directory", s.dir)
	}

	return files, nil
}

// CleanupExpiredFiles removes expired temp files and returns how many were
// deleted. Files that cannot be removed are reported as access errors.
func (s *TempCleanupService) CleanupExpiredFiles(ctx context.Context) (int, error) {
	log := s.log.Function("CleanupExpiredFiles")

	if s.dir == "" {
		log.Debug("No temp directory configured, skipping cleanup")
		return 0, nil
	}

	s.reporter.Start(0, map[string]string{"dir": s.dir})

	files, err := s.ListExpiredFiles(ctx)
	if err != nil {
		s.reporter.Fail(err)
		return 0, err
	}

	removed := 0
	total := int64(len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			s.reporter.Fail(err)
			return removed, log.Err("cleanup cancelled", err, "removed", removed)
		}

		if err := os.Remove(file.Path); err != nil {
			log.Er("failed to remove file", err, "path", file.Path)
			if pubErr := s.channel.Publish(accessError(file.Path, err)); pubErr != nil {
				log.Warn("Failed to publish access error", "error", pubErr)
			}
		} else {
			removed++
		}

		s.reporter.Update(int64(i+1), total, filepath.Base(file.Path))
	}

	s.reporter.Finish(map[string]string{"removed": strconv.Itoa(removed)})
	log.Info("Temp cleanup finished", "directory", s.dir, "removed", removed, "expired", len(files))
	return removed, nil
}
