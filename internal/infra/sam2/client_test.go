package sam2

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func encodeLogits(logits []float32) string {
	raw := make([]byte, len(logits)*4)
	for i, v := range logits {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestClientSessionLifecycle(t *testing.T) {
	const width, height = 2, 2

	var gotInit newSessionRequest
	var gotPoints addPointRequest
	var deleted bool

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInit))
		json.NewEncoder(w).Encode(newSessionResponse{SessionID: "sess-1"})
	})
	mux.HandleFunc("/v1/sessions/sess-1/points", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPoints))
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("/v1/sessions/sess-1/propagate", func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 2; i++ {
			frame := propagateFrame{
				FrameIndex: i,
				Objects: []propagateObject{
					{ObjectID: 1, Logits: encodeLogits([]float32{1, -1, 0.5, float32(i)})},
				},
			}
			line, _ := json.Marshal(frame)
			fmt.Fprintf(w, "%s\n", line)
		}
	})
	mux.HandleFunc("/v1/sessions/sess-1", func(w http.ResponseWriter, r *http.Request) {
		deleted = true
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	ctx := context.Background()

	frames := [][]byte{[]byte("jpeg-0"), []byte("jpeg-1")}
	session, err := client.NewSession(ctx, frames, width, height)
	require.NoError(t, err)

	require.Len(t, gotInit.Frames, 2)
	assert.Equal(t, base64.StdEncoding.EncodeToString(frames[0]), gotInit.Frames[0])
	assert.Equal(t, width, gotInit.Width)
	assert.Equal(t, height, gotInit.Height)

	err = session.AddPoint(ctx, 0, 1, port.Point{X: 1, Y: 1}, port.LabelForeground)
	require.NoError(t, err)
	assert.Equal(t, [][2]float64{{1, 1}}, gotPoints.Points)
	assert.Equal(t, []int{1}, gotPoints.Labels)
	assert.Equal(t, 1, gotPoints.ObjectID)

	var streamed []port.FrameMasks
	err = session.Propagate(ctx, func(fm port.FrameMasks) error {
		streamed = append(streamed, fm)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, streamed, 2)
	assert.Equal(t, 0, streamed[0].FrameIndex)
	assert.Equal(t, 1, streamed[1].FrameIndex)
	require.Len(t, streamed[0].Objects, 1)
	assert.Equal(t, []float32{1, -1, 0.5, 0}, streamed[0].Objects[0].Logits)
	assert.Equal(t, []float32{1, -1, 0.5, 1}, streamed[1].Objects[0].Logits)

	require.NoError(t, session.Close(ctx))
	assert.True(t, deleted)
}

func TestClientSurfacesRuntimeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "CUDA out of memory"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.NewSession(context.Background(), [][]byte{{1}}, 2, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

func TestClientRejectsTruncatedLogits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(newSessionResponse{SessionID: "sess-2"})
	})
	mux.HandleFunc("/v1/sessions/sess-2/propagate", func(w http.ResponseWriter, r *http.Request) {
		frame := propagateFrame{
			FrameIndex: 0,
			Objects:    []propagateObject{{ObjectID: 1, Logits: encodeLogits([]float32{1})}},
		}
		line, _ := json.Marshal(frame)
		fmt.Fprintf(w, "%s\n", line)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	session, err := client.NewSession(context.Background(), [][]byte{{1}}, 2, 2)
	require.NoError(t, err)

	err = session.Propagate(context.Background(), func(port.FrameMasks) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4 bytes, want 16")
}

func TestClientRejectsEmptySessionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 5*time.Second, zap.NewNop())
	_, err := client.NewSession(context.Background(), [][]byte{{1}}, 2, 2)
	assert.Error(t, err)
}
