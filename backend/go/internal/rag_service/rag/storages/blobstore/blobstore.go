// Package blobstore keeps the original bytes of uploaded documents, either
// on the local filesystem or in a MinIO bucket.
package blobstore

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

const minioScheme = "minio://"

// Local writes blobs under a root directory. Locations are file paths.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := filepath.Join(l.root, filepath.Clean("/"+key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob %s: %w", key, err)
	}
	return path, nil
}

// Delete ignores blobs that are already gone.
func (l *Local) Delete(ctx context.Context, location string) error {
	if location == "" {
		return nil
	}
	if err := os.Remove(location); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", location, err)
	}
	return nil
}

// MinIO stores blobs as objects in one bucket. Locations look like minio://bucket/key.
type MinIO struct {
	client *minio.Client
	bucket string
}

// NewMinIO expects the bucket to exist already.
func NewMinIO(client *minio.Client, bucket string) *MinIO {
	return &MinIO{client: client, bucket: bucket}
}

func (m *MinIO) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object to MinIO: %w", err)
	}
	return minioScheme + m.bucket + "/" + key, nil
}

func (m *MinIO) Delete(ctx context.Context, location string) error {
	if location == "" {
		return nil
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(location, minioScheme), "/")
	if !ok || !strings.HasPrefix(location, minioScheme) {
		return fmt.Errorf("not a minio location: %s", location)
	}
	if err := m.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object from MinIO: %w", err)
	}
	return nil
}

// Key builds the object key for an uploaded file: documents/<id>/<base name>.
func Key(documentID, fileName string) string {
	name := filepath.Base(filepath.Clean("/" + fileName))
	if name == "/" || name == "." {
		name = "upload"
	}
	return "documents/" + documentID + "/" + name
}

var (
	_ interfaces.BlobStore = (*Local)(nil)
	_ interfaces.BlobStore = (*MinIO)(nil)
)
