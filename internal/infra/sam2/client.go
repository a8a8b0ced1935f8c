// Package sam2 is the HTTP client for the SAM2 video predictor runtime, the
// GPU-side collaborator that owns the pretrained weights. The runtime loads
// the model once per worker instance; this client is built once per process
// and reused across all chunk sessions.
package sam2

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type newSessionRequest struct {
	Frames []string `json:"frames"`
	Width  int      `json:"width"`
	Height int      `json:"height"`
}

type newSessionResponse struct {
	SessionID string `json:"session_id"`
}

// NewSession uploads the chunk's frames and initializes fresh tracking state
// scoped to them. Local frame indices start at zero within the session.
func (c *Client) NewSession(ctx context.Context, frames [][]byte, width, height int) (port.TrackingSession, error) {
	req := newSessionRequest{
		Frames: make([]string, len(frames)),
		Width:  width,
		Height: height,
	}
	for i, f := range frames {
		req.Frames[i] = base64.StdEncoding.EncodeToString(f)
	}

	var resp newSessionResponse
	if err := c.postJSON(ctx, "/v1/sessions", req, &resp); err != nil {
		return nil, fmt.Errorf("init tracking state: %w", err)
	}
	if resp.SessionID == "" {
		return nil, fmt.Errorf("predictor returned empty session id")
	}

	c.logger.Debug("tracking session opened",
		zap.String("session_id", resp.SessionID),
		zap.Int("frames", len(frames)),
	)

	return &session{client: c, id: resp.SessionID, pixels: width * height}, nil
}

type session struct {
	client *Client
	id     string
	pixels int
}

type addPointRequest struct {
	FrameIndex int          `json:"frame_index"`
	ObjectID   int          `json:"object_id"`
	Points     [][2]float64 `json:"points"`
	Labels     []int        `json:"labels"`
}

func (s *session) AddPoint(ctx context.Context, frameIndex, objectID int, pt port.Point, label int) error {
	req := addPointRequest{
		FrameIndex: frameIndex,
		ObjectID:   objectID,
		Points:     [][2]float64{{pt.X, pt.Y}},
		Labels:     []int{label},
	}
	path := fmt.Sprintf("/v1/sessions/%s/points", s.id)
	if err := s.client.postJSON(ctx, path, req, nil); err != nil {
		return fmt.Errorf("add point prompt: %w", err)
	}
	return nil
}

type propagateFrame struct {
	FrameIndex int               `json:"frame_index"`
	Objects    []propagateObject `json:"objects"`
}

type propagateObject struct {
	ObjectID int    `json:"object_id"`
	Logits   string `json:"logits"`
}

// Propagate streams one NDJSON line per local frame index in increasing
// order. Logits arrive as base64 little-endian float32, width*height values.
func (s *session) Propagate(ctx context.Context, fn func(port.FrameMasks) error) error {
	path := fmt.Sprintf("/v1/sessions/%s/propagate", s.id)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("propagate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("propagate: %s", readError(resp))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 1<<20), maxPropagateLine(s.pixels))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var frame propagateFrame
		if err := json.Unmarshal(line, &frame); err != nil {
			return fmt.Errorf("decode propagate frame: %w", err)
		}

		masks := port.FrameMasks{FrameIndex: frame.FrameIndex}
		for _, obj := range frame.Objects {
			logits, err := decodeLogits(obj.Logits, s.pixels)
			if err != nil {
				return fmt.Errorf("frame %d object %d: %w", frame.FrameIndex, obj.ObjectID, err)
			}
			masks.Objects = append(masks.Objects, port.ObjectMask{
				ObjectID: obj.ObjectID,
				Logits:   logits,
			})
		}

		if err := fn(masks); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *session) Close(ctx context.Context) error {
	path := fmt.Sprintf("/v1/sessions/%s", s.id)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.client.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.httpc.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("predictor runtime: %s", readError(resp))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeLogits unpacks base64 little-endian float32 scores and checks the
// pixel count matches the session's frame dimensions.
func decodeLogits(encoded string, pixels int) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode logits: %w", err)
	}
	if len(raw) != pixels*4 {
		return nil, fmt.Errorf("logits payload is %d bytes, want %d", len(raw), pixels*4)
	}

	logits := make([]float32, pixels)
	for i := range logits {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		logits[i] = math.Float32frombits(bits)
	}
	return logits, nil
}

func maxPropagateLine(pixels int) int {
	// base64 of 4-byte floats plus JSON framing, with slack for multiple
	// objects per frame.
	return pixels*6 + 4096
}

func readError(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Sprintf("%s (%s)", apiErr.Error, resp.Status)
	}
	return resp.Status
}
