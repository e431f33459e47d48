package dto

import "detectreview/internal/model"

// SaveImageRequest creates a record. Detections is a JSON encoded array.
type SaveImageRequest struct {
	FilePath   string `json:"file_path"`
	Detections string `json:"detections"`
}

// SaveImageResponse carries the store assigned identifier.
type SaveImageResponse struct {
	ImageID int64  `json:"image_id"`
	Message string `json:"message,omitempty"`
}

// ImagesResponse lists every record in store order.
type ImagesResponse struct {
	Images  []model.CapturedRecord `json:"images"`
	Message string                 `json:"message,omitempty"`
}

// ImageResponse wraps a single record.
type ImageResponse struct {
	Image   model.CapturedRecord `json:"image"`
	Message string               `json:"message,omitempty"`
}

// UpdateNotesRequest replaces the notes of a record. A nil Notes keeps the
// stored value.
type UpdateNotesRequest struct {
	Notes *string `json:"notes"`
}

// DeleteResponse reports a deletion. Warning is set when the record was
// removed but its image file could not be.
type DeleteResponse struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}
