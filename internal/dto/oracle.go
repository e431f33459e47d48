package dto

import "detectreview/internal/model"

// DetectResponse is the oracle's success body. The oracle sends the annotated
// JPEG base64 encoded under image_data; annotated_image is accepted as well.
type DetectResponse struct {
	ImageData      string            `json:"image_data"`
	AnnotatedImage string            `json:"annotated_image"`
	Detections     []model.Detection `json:"detections"`
	Message        string            `json:"message"`
}

// EncodedImage returns whichever image field the oracle populated.
func (r DetectResponse) EncodedImage() string {
	if r.ImageData != "" {
		return r.ImageData
	}
	return r.AnnotatedImage
}

// ErrorResponse is the failure body shared by the oracle, the review store
// and the command API. Kind names the error category where one applies.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
