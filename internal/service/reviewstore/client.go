// Package reviewstore talks to the review store service over HTTP.
package reviewstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"detectreview/internal/dto"
	"detectreview/internal/errs"
	"detectreview/internal/logger"
	"detectreview/internal/model"
)

// Client implements review.Store against the store's REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a store client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Create registers an image path and its detections and returns the new id.
func (c *Client) Create(ctx context.Context, imagePath string, detections []model.Detection) (int64, error) {
	encoded, err := model.MarshalDetections(detections)
	if err != nil {
		return 0, errs.Wrapf(errs.ErrPersistFailed, "%v", err)
	}

	var out dto.SaveImageResponse
	err = c.do(ctx, http.MethodPost, "/save_image/", dto.SaveImageRequest{FilePath: imagePath, Detections: encoded}, &out)
	if err != nil {
		return 0, err
	}
	return out.ImageID, nil
}

// List fetches every record in store order.
func (c *Client) List(ctx context.Context) ([]model.CapturedRecord, error) {
	var out dto.ImagesResponse
	if err := c.do(ctx, http.MethodGet, "/images/", nil, &out); err != nil {
		return nil, err
	}
	if out.Images == nil {
		out.Images = []model.CapturedRecord{}
	}
	return out.Images, nil
}

// Update replaces the notes of one record.
func (c *Client) Update(ctx context.Context, id int64, notes string) (model.CapturedRecord, error) {
	var out dto.ImageResponse
	if err := c.do(ctx, http.MethodPut, imagePath(id), dto.UpdateNotesRequest{Notes: &notes}, &out); err != nil {
		return model.CapturedRecord{}, err
	}
	return out.Image, nil
}

// Delete removes one record and its image.
func (c *Client) Delete(ctx context.Context, id int64) (string, error) {
	var out dto.DeleteResponse
	if err := c.do(ctx, http.MethodDelete, imagePath(id), nil, &out); err != nil {
		return "", err
	}
	return out.Warning, nil
}

func imagePath(id int64) string {
	return fmt.Sprintf("/images/%d", id)
}

// do sends one JSON request and decodes a 200 response into out. Failures
// map to RecordNotFound (404), PersistFailed (a refused create) or
// StoreUnavailable.
func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errs.Wrapf(errs.ErrPersistFailed, "failed to encode request: %v", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errs.Wrapf(errs.ErrStoreUnavailable, "failed to build request: %v", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Wrapf(errs.ErrStoreUnavailable, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrapf(errs.ErrStoreUnavailable, "failed to read response: %v", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound && path != "/save_image/":
		return errs.Wrapf(errs.ErrRecordNotFound, "%s", errorMessage(raw, resp.Status))
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && method == http.MethodPost:
		return errs.Wrapf(errs.ErrPersistFailed, "store refused record: %s", errorMessage(raw, resp.Status))
	default:
		c.logger.Warning("Review store %s %s returned %s", method, path, resp.Status)
		return errs.Wrapf(errs.ErrStoreUnavailable, "%s %s: %s", method, path, errorMessage(raw, resp.Status))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrapf(errs.ErrStoreUnavailable, "malformed store response: %v", err)
	}
	return nil
}

func errorMessage(raw []byte, status string) string {
	var e dto.ErrorResponse
	if err := json.Unmarshal(raw, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return status
}
