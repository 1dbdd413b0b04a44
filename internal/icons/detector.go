// Package icons implements an HTTP-backed icon detector: a thin client for
// an external object-detection service that accepts a frame's screenshot
// and an icon name and reports whether the icon was found.
package icons

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smilemakc/avtrace/internal/condition"
	"github.com/smilemakc/avtrace/internal/domain"
)

// Detector calls a remote icon-detection endpoint. It implements
// condition.IconDetector.
type Detector struct {
	endpoint string
	client   *http.Client
}

// New builds a Detector that posts to endpoint.
func New(endpoint string) *Detector {
	return &Detector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

type detectRequest struct {
	ImageBase64 string `json:"image_base64"`
	IconName    string `json:"icon_name"`
}

type detectResponse struct {
	Found      bool    `json:"found"`
	Confidence float64 `json:"confidence"`
}

// Detect asks the remote service whether iconName is present in frame's
// screenshot.
func (d *Detector) Detect(ctx context.Context, frame *domain.Frame, iconName string) (condition.DetectResult, error) {
	if frame.ScreenshotB64 == "" {
		return condition.DetectResult{}, fmt.Errorf("frame %d has no screenshot to detect icons in", frame.Index)
	}

	payload, err := json.Marshal(detectRequest{
		ImageBase64: frame.ScreenshotB64,
		IconName:    iconName,
	})
	if err != nil {
		return condition.DetectResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return condition.DetectResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return condition.DetectResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return condition.DetectResult{}, fmt.Errorf("icon detector returned status %d", resp.StatusCode)
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return condition.DetectResult{}, err
	}

	return condition.DetectResult{Found: out.Found, Confidence: out.Confidence}, nil
}
