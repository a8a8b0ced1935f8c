package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage carries chunk frame archives out to remote workers and mask
// archives back.
type Storage struct {
	client      *miniogo.Client
	chunkBucket string
	maskBucket  string
}

type StorageConfig struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	UseSSL      bool
	ChunkBucket string
	MaskBucket  string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:      client,
		chunkBucket: cfg.ChunkBucket,
		maskBucket:  cfg.MaskBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.chunkBucket, s.maskBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

func (s *Storage) UploadFrames(ctx context.Context, objectKey string, data []byte) error {
	return s.put(ctx, s.chunkBucket, objectKey, data)
}

func (s *Storage) DownloadFrames(ctx context.Context, objectKey string) ([]byte, error) {
	return s.get(ctx, s.chunkBucket, objectKey)
}

func (s *Storage) UploadMasks(ctx context.Context, objectKey string, data []byte) error {
	return s.put(ctx, s.maskBucket, objectKey, data)
}

func (s *Storage) DownloadMasks(ctx context.Context, objectKey string) ([]byte, error) {
	return s.get(ctx, s.maskBucket, objectKey)
}

// RemoveChunkArtifacts deletes every transfer object written under a job's
// prefix once the request is done.
func (s *Storage) RemoveChunkArtifacts(ctx context.Context, jobPrefix string) error {
	for _, bucket := range []string{s.chunkBucket, s.maskBucket} {
		objects := s.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{
			Prefix:    jobPrefix,
			Recursive: true,
		})
		for obj := range objects {
			if obj.Err != nil {
				return fmt.Errorf("list %s/%s: %w", bucket, jobPrefix, obj.Err)
			}
			if err := s.client.RemoveObject(ctx, bucket, obj.Key, miniogo.RemoveObjectOptions{}); err != nil {
				return fmt.Errorf("remove %s/%s: %w", bucket, obj.Key, err)
			}
		}
	}
	return nil
}

func (s *Storage) put(ctx context.Context, bucket, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		miniogo.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Storage) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}
