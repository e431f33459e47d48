package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"detectreview/internal/config"
	"detectreview/internal/logger"
)

const capturedPrefix = "captured_"

// ImageSaver writes annotated frames under the save directory with unique
// names.
type ImageSaver struct {
	imagesDir string
	mu        sync.Mutex
	logger    *logger.Logger
}

// NewImageSaver creates an ImageSaver for the configured save directory.
func NewImageSaver(config *config.Config, logger *logger.Logger) *ImageSaver {
	return &ImageSaver{
		imagesDir: config.SaveDirectory,
		logger:    logger,
	}
}

// Save writes the image as captured_<uuid>.jpg and returns its path.
func (s *ImageSaver) Save(image []byte) (string, error) {
	if len(image) == 0 {
		return "", errors.New("no image data")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.imagesDir, 0755); err != nil {
		s.logger.Error("Error creating directory: %v", err)
		return "", errors.Wrap(err, "failed to create save directory")
	}

	filename := capturedPrefix + strings.ReplaceAll(uuid.NewString(), "-", "") + ".jpg"
	fullpath := filepath.Join(s.imagesDir, filename)

	if err := os.WriteFile(fullpath, image, 0644); err != nil {
		s.logger.Error("Error saving image %s: %v", filename, err)
		return "", errors.Wrapf(err, "failed to write %s", filename)
	}

	s.logger.Info("Saved captured image %s (%d bytes)", fullpath, len(image))
	return fullpath, nil
}

// Remove deletes a previously saved image. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to remove %s", path)
	}
	return nil
}
