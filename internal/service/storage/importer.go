package storage

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"detectreview/internal/model"
)

// Registry is the part of the record repository the importer needs.
type Registry interface {
	GetAll() ([]model.CapturedRecord, error)
	Insert(filePath, detections string) (int64, error)
}

// ImportResult counts what ImportOrphans did.
type ImportResult struct {
	Imported int
	Known    int
	Skipped  int
}

// ImportOrphans registers every .jpg under dir that has no record yet, with
// an empty detection list. Existing records are matched by file path.
func ImportOrphans(dir string, registry Registry) (ImportResult, error) {
	var result ImportResult

	records, err := registry.GetAll()
	if err != nil {
		return result, errors.Wrap(err, "failed to list records")
	}
	known := make(map[string]bool, len(records))
	for _, rec := range records {
		known[filepath.Clean(rec.ImagePath)] = true
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		return result, errors.Wrapf(err, "failed to read images directory %s", dir)
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			result.Skipped++
			continue
		}
		path := filepath.Join(dir, file.Name())
		if known[filepath.Clean(path)] {
			result.Known++
			continue
		}
		if _, err := registry.Insert(path, "[]"); err != nil {
			return result, errors.Wrapf(err, "failed to register %s", path)
		}
		result.Imported++
	}
	return result, nil
}
