package repository

import (
	"detectreview/internal/model"
)

// RecordRepository defines the storage operations of the review store.
type RecordRepository interface {
	// Create operations
	Insert(filePath, detections string) (int64, error)

	// Read operations
	GetByID(id int64) (*model.CapturedRecord, error)
	GetAll() ([]model.CapturedRecord, error)

	// Update operations
	UpdateNotes(id int64, notes *string) (*model.CapturedRecord, error)

	// Delete operations
	Delete(id int64) error
}
