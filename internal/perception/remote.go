package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/autoflux/autoflux/internal/sensors"
)

// Remote calls an inference service over HTTP. Frames are posted as raw
// pixel bytes with the geometry in headers; results come back as JSON.
type Remote struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewRemote builds a client for the inference service at baseURL. The
// request timeout is a backstop; per-call ctx deadlines bind tighter.
func NewRemote(baseURL string, timeout time.Duration, log zerolog.Logger) *Remote {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Remote{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

func (r *Remote) post(ctx context.Context, path string, frame sensors.CameraFrame, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(frame.Data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-Width", strconv.Itoa(frame.Width))
	req.Header.Set("X-Frame-Height", strconv.Itoa(frame.Height))
	req.Header.Set("X-Frame-Format", frame.Format)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// DetectObjects runs object detection on the remote service.
func (r *Remote) DetectObjects(ctx context.Context, frame sensors.CameraFrame) (ObjectResult, error) {
	var out ObjectResult
	if err := r.post(ctx, "/v1/detect/objects", frame, &out); err != nil {
		return ObjectResult{}, err
	}
	return out, nil
}

// DetectLanes runs lane detection on the remote service.
func (r *Remote) DetectLanes(ctx context.Context, frame sensors.CameraFrame) (LaneResult, error) {
	var out LaneResult
	if err := r.post(ctx, "/v1/detect/lanes", frame, &out); err != nil {
		return LaneResult{}, err
	}
	return out, nil
}
