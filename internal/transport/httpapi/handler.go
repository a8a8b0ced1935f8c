package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/usecase"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SegmentService runs the full segmentation pipeline over raw video bytes.
type SegmentService interface {
	Execute(ctx context.Context, video []byte) (*usecase.Result, error)
}

type Handler struct {
	svc    SegmentService
	logger *zap.Logger
}

func NewHandler(svc SegmentService, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/segment", h.handleSegment).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

type segmentRequest struct {
	VideoBase64 string `json:"video_base64"`
}

type segmentResponse struct {
	MaskVideoBase64 string  `json:"mask_video_base64"`
	NumFrames       int     `json:"num_frames"`
	FPS             float64 `json:"fps"`
	ProcessingTime  float64 `json:"processing_time"`
	Chunks          int     `json:"chunks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, &entity.InputError{Reason: "invalid request body"})
		return
	}

	video, err := decodeVideoPayload(req.VideoBase64)
	if err != nil {
		h.respondError(w, err)
		return
	}

	result, err := h.svc.Execute(r.Context(), video)
	if err != nil {
		h.respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, segmentResponse{
		MaskVideoBase64: base64.StdEncoding.EncodeToString(result.MaskVideo),
		NumFrames:       result.NumFrames,
		FPS:             result.FPS,
		ProcessingTime:  result.ProcessingTime,
		Chunks:          result.Chunks,
	})
}

// decodeVideoPayload strips an optional "data:...," prefix and decodes the
// base64 body. An empty payload is an input error before any work happens.
func decodeVideoPayload(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, &entity.InputError{Reason: "no video_base64 provided"}
	}

	if _, rest, found := strings.Cut(encoded, ","); found {
		encoded = rest
	}

	video, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &entity.InputError{Reason: "video_base64 is not valid base64"}
	}
	if len(video) == 0 {
		return nil, &entity.InputError{Reason: "no video_base64 provided"}
	}
	return video, nil
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	var inputErr *entity.InputError
	var extractionErr *entity.ExtractionError
	switch {
	case errors.As(err, &inputErr):
		status = http.StatusBadRequest
	case errors.As(err, &extractionErr):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("segment request failed", zap.Error(err))
	} else {
		h.logger.Warn("segment request rejected", zap.Error(err))
	}

	h.respondJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
