package sqlite

import (
	"database/sql"
	"fmt"

	"detectreview/internal/model"
)

// RecordRepository implements repository.RecordRepository for SQLite.
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new SQLite record repository.
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*model.CapturedRecord, error) {
	var (
		rec        model.CapturedRecord
		detections sql.NullString
		notes      sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.ImagePath, &detections, &notes); err != nil {
		return nil, err
	}

	decoded, err := model.UnmarshalDetections(detections.String)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	rec.Detections = decoded
	if notes.Valid {
		n := notes.String
		rec.Notes = &n
	}
	return &rec, nil
}

// Insert adds a new record. detections is stored as given.
func (r *RecordRepository) Insert(filePath, detections string) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO images (file_path, detections)
		VALUES (?, ?)
	`, filePath, detections)
	if err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a record by its ID. It returns nil when there is none.
func (r *RecordRepository) GetByID(id int64) (*model.CapturedRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.getByID(id)
}

func (r *RecordRepository) getByID(id int64) (*model.CapturedRecord, error) {
	rec, err := scanRecord(r.db.Conn().QueryRow(`
		SELECT id, file_path, detections, notes
		FROM images WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// GetAll retrieves every record in insertion order.
func (r *RecordRepository) GetAll() ([]model.CapturedRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT id, file_path, detections, notes FROM images ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	records := []model.CapturedRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

// UpdateNotes sets the notes of a record and returns the updated record, or
// nil when there is none. A nil notes keeps the stored value.
func (r *RecordRepository) UpdateNotes(id int64, notes *string) (*model.CapturedRecord, error) {
	r.db.Lock()
	defer r.db.Unlock()

	rec, err := r.getByID(id)
	if err != nil || rec == nil {
		return nil, err
	}
	if notes == nil {
		return rec, nil
	}

	if _, err := r.db.Conn().Exec(`UPDATE images SET notes = ? WHERE id = ?`, *notes, id); err != nil {
		return nil, fmt.Errorf("failed to update notes: %w", err)
	}
	n := *notes
	rec.Notes = &n
	return rec, nil
}

// Delete removes a record by its ID.
func (r *RecordRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}
