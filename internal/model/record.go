package model

// CapturedRecord is a persisted, annotated frame. The ID is assigned by the
// review store and is never generated locally.
type CapturedRecord struct {
	ID         int64       `json:"id"`
	ImagePath  string      `json:"file_path"`
	Detections []Detection `json:"detections"`
	Notes      *string     `json:"notes"`
}

// NotesText returns the notes or "" when none were set.
func (r CapturedRecord) NotesText() string {
	if r.Notes == nil {
		return ""
	}
	return *r.Notes
}
