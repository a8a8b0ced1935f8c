package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aryankeluskar/jigglewiggle-deployed/internal/domain/entity"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/dispatch"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/ffmpeg"
	miniostorage "github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/minio"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/postgres"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/rabbitmq"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/infra/sam2"
	"github.com/aryankeluskar/jigglewiggle-deployed/internal/usecase"
	"github.com/aryankeluskar/jigglewiggle-deployed/pkg/logger"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	gorillamux "github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

// makeTestVideo renders a clip with a white square centered on a black
// 64x48 frame, so the center point prompt lands inside the object.
func makeTestVideo(t *testing.T, path string, seconds, fps int) {
	t.Helper()
	filter := fmt.Sprintf(
		"color=c=black:s=64x48:d=%d:r=%d,drawbox=x=20:y=12:w=24:h=24:color=white:t=fill",
		seconds, fps,
	)
	cmd := exec.Command("ffmpeg", "-y",
		"-f", "lavfi", "-i", filter,
		"-c:v", "libx264", "-pix_fmt", "yuv420p",
		path,
	)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "generate test video: %s", output)
}

// fakePredictor stands in for the GPU runtime. Every session reports the
// tracked object as a fixed rectangle: positive logits inside x [20,44),
// y [12,36), negative outside, matching the square drawn by makeTestVideo.
type fakePredictor struct {
	mu       sync.Mutex
	sessions map[string]fakeSessionState
}

type fakeSessionState struct {
	frames int
	width  int
	height int
}

func newFakePredictor() *fakePredictor {
	return &fakePredictor{sessions: map[string]fakeSessionState{}}
}

func (p *fakePredictor) handler() http.Handler {
	mux := gorillamux.NewRouter()

	mux.HandleFunc("/v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Frames []string `json:"frames"`
			Width  int      `json:"width"`
			Height int      `json:"height"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		id := uuid.NewString()
		p.mu.Lock()
		p.sessions[id] = fakeSessionState{frames: len(req.Frames), width: req.Width, height: req.Height}
		p.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"session_id": id})
	}).Methods(http.MethodPost)

	mux.HandleFunc("/v1/sessions/{id}/points", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}).Methods(http.MethodPost)

	mux.HandleFunc("/v1/sessions/{id}/propagate", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		state, ok := p.sessions[gorillamux.Vars(r)["id"]]
		p.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "unknown session"})
			return
		}

		logits := rectangleLogits(state.width, state.height)
		for i := 0; i < state.frames; i++ {
			frame := map[string]any{
				"frame_index": i,
				"objects": []map[string]any{
					{"object_id": 1, "logits": logits},
				},
			}
			line, _ := json.Marshal(frame)
			fmt.Fprintf(w, "%s\n", line)
		}
	}).Methods(http.MethodPost)

	mux.HandleFunc("/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		delete(p.sessions, gorillamux.Vars(r)["id"])
		p.mu.Unlock()
	}).Methods(http.MethodDelete)

	return mux
}

func (p *fakePredictor) openSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

func rectangleLogits(width, height int) string {
	raw := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := float32(-8)
			if x >= 20 && x < 44 && y >= 12 && y < 36 {
				v = 8
			}
			binary.LittleEndian.PutUint32(raw[(y*width+x)*4:], math.Float32bits(v))
		}
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestSegmentVideoEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	requireFFmpeg(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("jobs"),
		tcpostgres.WithUsername("job_user"),
		tcpostgres.WithPassword("job_pass"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	require.NoError(t, postgres.RunMigrations(pgConnStr, "../../migrations"))

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	// Fake predictor runtime
	predictor := newFakePredictor()
	runtime := httptest.NewServer(predictor.handler())
	defer runtime.Close()

	log, err := logger.New("debug")
	require.NoError(t, err)

	client := sam2.NewClient(runtime.URL, time.Minute, log)
	segmenter := usecase.NewChunkSegmenter(client, log)

	uc := usecase.NewSegmentVideoUseCase(
		postgres.NewJobRepository(pool),
		ffmpeg.NewExtractor(2, log),
		dispatch.NewLocal(segmenter, entity.MaxParallelChunks, log),
		ffmpeg.NewAssembler(log),
		nil,
		log,
		usecase.SegmentVideoConfig{
			TempDir:           t.TempDir(),
			MaxParallelChunks: entity.MaxParallelChunks,
			DispatchMode:      "local",
		},
	)

	videoPath := filepath.Join(t.TempDir(), "input.mp4")
	makeTestVideo(t, videoPath, 2, 5)
	video, err := os.ReadFile(videoPath)
	require.NoError(t, err)

	result, err := uc.Execute(ctx, video)
	require.NoError(t, err)

	// 10 frames at ceil(10/8)=2 per chunk is 5 chunks.
	assert.Equal(t, 10, result.NumFrames)
	assert.Equal(t, 5.0, result.FPS)
	assert.Equal(t, 5, result.Chunks)
	assert.NotEmpty(t, result.MaskVideo)
	assert.GreaterOrEqual(t, result.ProcessingTime, 0.0)

	// Every tracking session must have been torn down.
	assert.Equal(t, 0, predictor.openSessions())

	// Job record
	var dbStatus string
	var dbFrames, dbChunks, dbNum, dbDen int
	err = pool.QueryRow(ctx,
		"SELECT status, frame_count, chunk_count, frame_rate_num, frame_rate_den FROM segmentation_jobs",
	).Scan(&dbStatus, &dbFrames, &dbChunks, &dbNum, &dbDen)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", dbStatus)
	assert.Equal(t, 10, dbFrames)
	assert.Equal(t, 5, dbChunks)
	assert.Equal(t, 5, dbNum)
	assert.Equal(t, 1, dbDen)

	// Decode the mask video and check the mask is white inside the tracked
	// square and black outside it.
	maskPath := filepath.Join(t.TempDir(), "mask.mp4")
	require.NoError(t, os.WriteFile(maskPath, result.MaskVideo, 0644))

	framesDir := t.TempDir()
	extraction, err := ffmpeg.NewExtractor(2, log).ExtractFrames(ctx, maskPath, framesDir)
	require.NoError(t, err)
	require.Equal(t, 10, extraction.FrameCount)

	img, err := imaging.Open(extraction.FramePaths[0])
	require.NoError(t, err)

	cr, _, _, _ := img.At(32, 24).RGBA()
	assert.Greater(t, cr>>8, uint32(200), "center of tracked square should be white")

	er, _, _, _ := img.At(2, 2).RGBA()
	assert.Less(t, er>>8, uint32(50), "corner outside the object should be black")

	t.Logf("Test passed: %d frames in %d chunks, %.1fs", result.NumFrames, result.Chunks, result.ProcessingTime)
}

// tagSegmenter is the worker-side stand-in for model inference: each mask is
// the frame payload with a tag prefix, so ordering survives the round trip
// and is checkable. Frames containing "poison" fail the chunk.
type tagSegmenter struct{}

func (tagSegmenter) SegmentChunk(_ context.Context, frames [][]byte, _, _ int) ([][]byte, error) {
	masks := make([][]byte, len(frames))
	for i, f := range frames {
		if bytes.Contains(f, []byte("poison")) {
			return nil, fmt.Errorf("segmentation rejected frame %q", f)
		}
		masks[i] = append([]byte("mask:"), f...)
	}
	return masks, nil
}

func TestDistributedChunkDispatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx,
		"rabbitmq:3.12-management-alpine",
	)
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:    minioEndpoint,
		AccessKey:   "minioadmin",
		SecretKey:   "minioadmin",
		UseSSL:      false,
		ChunkBucket: "chunks",
		MaskBucket:  "masks",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBuckets(ctx))

	log, err := logger.New("debug")
	require.NoError(t, err)

	const queue = "sam2.chunks.test"

	// Worker side: consumer + publisher + chunk use case
	workerConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer workerConn.Close()

	publisher, err := rabbitmq.NewPublisher(workerConn)
	require.NoError(t, err)

	chunkUC := usecase.NewProcessChunkUseCase(storage, tagSegmenter{}, publisher, log)

	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         rmqURL,
		Queue:       queue,
		Prefetch:    1,
		WorkerCount: 2,
	}, chunkUC.Execute, log)
	require.NoError(t, err)
	defer consumer.Close()

	consumerCtx, consumerCancel := context.WithCancel(ctx)
	defer consumerCancel()
	go func() {
		consumer.Start(consumerCtx)
	}()

	// Give consumer time to start
	time.Sleep(500 * time.Millisecond)

	// Dispatcher side
	dispConn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer dispConn.Close()

	dispatcher, err := rabbitmq.NewDispatcher(dispConn, queue, storage, tagSegmenter{}, 2*time.Minute, log)
	require.NoError(t, err)

	frames := make([][]byte, 12)
	for i := range frames {
		frames[i] = []byte(fmt.Sprintf("frame-%02d", i))
	}
	chunks := entity.BuildChunks(frames, entity.PartitionFrames(len(frames), 4))
	require.Len(t, chunks, 4)

	masks, err := dispatcher.Dispatch(ctx, chunks, 64, 48)
	require.NoError(t, err)

	require.Len(t, masks, 12)
	for i, mask := range masks {
		assert.Equal(t, fmt.Sprintf("mask:frame-%02d", i), string(mask))
	}

	// A chunk failure on the worker comes back as an inference error naming
	// the failed chunk.
	frames[7] = []byte("poison-frame")
	chunks = entity.BuildChunks(frames, entity.PartitionFrames(len(frames), 4))

	_, err = dispatcher.Dispatch(ctx, chunks, 64, 48)
	var infErr *entity.InferenceError
	require.ErrorAs(t, err, &infErr)
	// Frame 7 lands in chunk 2 with 3 frames per chunk.
	assert.Equal(t, 2, infErr.ChunkIndex)
	assert.Contains(t, infErr.Error(), "poison-frame")

	consumerCancel()
	t.Log("Test passed: distributed dispatch reassembled masks in order")
}
