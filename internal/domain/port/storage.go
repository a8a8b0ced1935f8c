package port

import "context"

// ChunkStorage moves frame and mask archives between the dispatcher and
// remote chunk workers.
type ChunkStorage interface {
	UploadFrames(ctx context.Context, objectKey string, data []byte) error
	DownloadFrames(ctx context.Context, objectKey string) ([]byte, error)
	UploadMasks(ctx context.Context, objectKey string, data []byte) error
	DownloadMasks(ctx context.Context, objectKey string) ([]byte, error)
	RemoveChunkArtifacts(ctx context.Context, jobPrefix string) error
}
