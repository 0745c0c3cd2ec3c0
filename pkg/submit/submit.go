package submit

import (
	"context"

	"github.com/dermoscan/capture-engine/pkg/annotation"
)

// Payload is the serialized outcome of a capture case: the ordered image
// references with their annotation snapshots and the class label chosen at
// save time. Image order matches capture order; index 0 is the first
// accepted image.
type Payload struct {
	CaseID       string         `json:"caseId"`
	Label        string         `json:"label"`
	PrimaryIndex int            `json:"primaryIndex"`
	Images       []ImagePayload `json:"images"`
}

// ImagePayload pairs one captured image with its annotation snapshot
type ImagePayload struct {
	Index       int                 `json:"index"`
	Path        string              `json:"path"`
	BlurScore   float64             `json:"blurScore"`
	Annotations annotation.Snapshot `json:"annotations"`
}

// Ack is the opaque acknowledgment from the backend. The engine never
// parses backend response bodies beyond it.
type Ack struct {
	CaseID string `json:"caseId"`
}

// Uploader hands a finished payload to the remote prediction service
type Uploader interface {
	Upload(ctx context.Context, payload Payload) (Ack, error)
}
