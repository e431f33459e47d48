package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/pkg/errors"

	"detectreview/internal/dto"
	"detectreview/internal/errs"
	"detectreview/internal/logger"
	"detectreview/internal/model"
)

// maxResponseSize bounds how much of an oracle response is read.
const maxResponseSize = 32 << 20

// Client sends single frames to the detection oracle. It holds no state
// between calls and never retries.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a detection client for the oracle image endpoint.
func NewClient(endpoint string, timeout time.Duration, logger *logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Detect uploads one encoded frame and returns the annotated image with its
// detections in oracle order.
func (c *Client) Detect(ctx context.Context, frame []byte) (model.DetectionResult, error) {
	if len(frame) == 0 {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrInvalidFrame, "empty frame")
	}

	body, contentType, err := encodeFrame(frame)
	if err != nil {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrInvalidFrame, "failed to encode frame: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleUnavailable, "failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleUnavailable, "%v", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleUnavailable, "failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warning("Oracle rejected frame with status %d", resp.StatusCode)
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleRejected, "oracle returned %d: %s",
			resp.StatusCode, errorMessage(payload))
	}

	return decodeResult(payload)
}

// encodeFrame builds the multipart body the oracle expects: one "file" part
// holding a JPEG.
func encodeFrame(frame []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(frame); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func decodeResult(payload []byte) (model.DetectionResult, error) {
	var out dto.DetectResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleRejected, "malformed oracle response: %v", err)
	}

	encoded := out.EncodedImage()
	if encoded == "" {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleRejected, "oracle response has no annotated image")
	}
	image, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return model.DetectionResult{}, errs.Wrapf(errs.ErrOracleRejected, "annotated image is not base64: %v", err)
	}

	detections := out.Detections
	if detections == nil {
		detections = []model.Detection{}
	}
	for _, d := range detections {
		if err := d.Validate(); err != nil {
			return model.DetectionResult{}, errors.Wrap(errs.ErrOracleRejected, err.Error())
		}
	}

	return model.DetectionResult{
		AnnotatedImage: image,
		Detections:     detections,
		Message:        out.Message,
	}, nil
}

// errorMessage extracts {"error": ...} from a failure body, falling back to
// the raw text.
func errorMessage(payload []byte) string {
	var e dto.ErrorResponse
	if err := json.Unmarshal(payload, &e); err == nil && e.Error != "" {
		return e.Error
	}
	text := string(bytes.TrimSpace(payload))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
