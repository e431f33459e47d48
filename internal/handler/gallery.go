package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"detectreview/internal/config"
	"detectreview/internal/dto"
	"detectreview/internal/logger"
	"detectreview/internal/model"
	"detectreview/internal/repository"
	"detectreview/internal/service/storage"
)

// SaveImageHandler registers a captured image and its detections.
func SaveImageHandler(repo repository.RecordRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.SaveImageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"}, logger)
			return
		}
		if req.FilePath == "" || req.Detections == "" {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "file_path and detections are required"}, logger)
			return
		}
		if _, err := model.UnmarshalDetections(req.Detections); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}, logger)
			return
		}

		id, err := repo.Insert(req.FilePath, req.Detections)
		if err != nil {
			logger.Error("Error saving image record: %v", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}, logger)
			return
		}

		logger.Info("Saved image %s with ID %d", req.FilePath, id)
		writeJSON(w, http.StatusOK, dto.SaveImageResponse{
			ImageID: id,
			Message: fmt.Sprintf("Saved image with ID: %d", id),
		}, logger)
	}
}

// GetImagesHandler returns every record in store order.
func GetImagesHandler(repo repository.RecordRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := repo.GetAll()
		if err != nil {
			logger.Error("Error querying images from database: %v", err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}, logger)
			return
		}

		writeJSON(w, http.StatusOK, dto.ImagesResponse{
			Images:  records,
			Message: fmt.Sprintf("Fetched %d images", len(records)),
		}, logger)
	}
}

// GetImageHandler returns one record.
func GetImageHandler(repo repository.RecordRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupRecord(w, r, repo, logger)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, dto.ImageResponse{
			Image:   *rec,
			Message: fmt.Sprintf("Fetched image with ID: %d", rec.ID),
		}, logger)
	}
}

// UpdateImageNotesHandler replaces the notes of a record; an absent notes
// field keeps the old value.
func UpdateImageNotesHandler(repo repository.RecordRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}, logger)
			return
		}

		var req dto.UpdateNotesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"}, logger)
			return
		}

		rec, err := repo.UpdateNotes(id, req.Notes)
		if err != nil {
			logger.Error("Error updating notes of image %d: %v", id, err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}, logger)
			return
		}
		if rec == nil {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: fmt.Sprintf("image %d not found", id)}, logger)
			return
		}

		writeJSON(w, http.StatusOK, dto.ImageResponse{
			Image:   *rec,
			Message: fmt.Sprintf("Updated notes for image with ID: %d", id),
		}, logger)
	}
}

// DeleteImageHandler removes a record and then, best-effort, its image file.
func DeleteImageHandler(repo repository.RecordRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, ok := lookupRecord(w, r, repo, logger)
		if !ok {
			return
		}

		if err := repo.Delete(rec.ID); err != nil {
			logger.Error("Failed to delete image %d: %v", rec.ID, err)
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}, logger)
			return
		}

		resp := dto.DeleteResponse{Message: fmt.Sprintf("Deleted image with ID: %d", rec.ID)}
		if err := storage.Remove(rec.ImagePath); err != nil {
			logger.Warning("Deleted image %d but kept its file: %v", rec.ID, err)
			resp.Warning = err.Error()
		}

		logger.Info("Deleted image %d (%s)", rec.ID, rec.ImagePath)
		writeJSON(w, http.StatusOK, resp, logger)
	}
}

func lookupRecord(w http.ResponseWriter, r *http.Request, repo repository.RecordRepository, logger *logger.Logger) (*model.CapturedRecord, bool) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()}, logger)
		return nil, false
	}

	rec, err := repo.GetByID(id)
	if err != nil {
		logger.Error("Error reading image %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()}, logger)
		return nil, false
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: fmt.Sprintf("image %d not found", id)}, logger)
		return nil, false
	}
	return rec, true
}

// ViewPictureHandler serves a saved image named by the "image" query parameter.
func ViewPictureHandler(config *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		image := r.URL.Query().Get("image")
		if image == "" {
			http.Error(w, "Image parameter is required", http.StatusBadRequest)
			return
		}
		filePath := filepath.Join(config.SaveDirectory, filepath.Base(image))
		http.ServeFile(w, r, filePath)
	}
}
