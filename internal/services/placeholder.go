package services

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"statushub/internal/events"
)

// Placeholder is a cloud stub waiting to be materialized. Path is the stub
// itself and identifies the pending entry.
type Placeholder struct {
	Path     string
	Filename string
	Target   string
	Size     int64
}

// PlaceholderName maps ".Name.ext<suffix>" to "Name.ext"
func PlaceholderName(name, suffix string) (string, bool) {
	if suffix == "" || !strings.HasSuffix(name, suffix) {
		return "", false
	}

	realName := strings.TrimSuffix(name, suffix)
	realName = strings.TrimPrefix(realName, ".")
	if realName == "" {
		return "", false
	}
	return realName, true
}

// FindPlaceholders walks dir for placeholder files. Unreadable entries are
// returned as access errors and the walk continues.
func FindPlaceholders(dir, suffix string) ([]Placeholder, []events.FileAccessError, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, err
	}

	var (
		found    []Placeholder
		failures []events.FileAccessError
	)

	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			failures = append(failures, accessError(path, err))
			if entry != nil && entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if entry.IsDir() {
			return nil
		}

		realName, ok := PlaceholderName(entry.Name(), suffix)
		if !ok {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			failures = append(failures, accessError(path, err))
			return nil
		}

		found = append(found, Placeholder{
			Path:     path,
			Filename: realName,
			Target:   filepath.Join(filepath.Dir(path), realName),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return found, failures, nil
}

func accessError(path string, err error) events.FileAccessError {
	errorType := "io"
	switch {
	case os.IsPermission(err):
		errorType = "permission"
	case os.IsNotExist(err):
		errorType = "notFound"
	}

	return events.FileAccessError{
		Path:      path,
		Filename:  filepath.Base(path),
		Error:     err.Error(),
		ErrorType: errorType,
		Timestamp: time.Now(),
	}
}
