package ledger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/config"
)

// Archiver ships finished trail segments to S3-compatible object storage.
type Archiver struct {
	client     *minio.Client
	bucket     string
	pruneLocal bool
}

// NewArchiver builds an archiver from configuration. A disabled config
// returns (nil, nil); callers treat a nil archiver as "keep segments local".
func NewArchiver(cfg *config.ArchiveConfig) (*Archiver, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("archive requires both an endpoint and a bucket")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.ResolveAccessKey(), cfg.ResolveSecretKey(), ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	return &Archiver{
		client:     client,
		bucket:     cfg.Bucket,
		pruneLocal: cfg.PruneLocal,
	}, nil
}

// Upload stores one compressed segment under its base name and, when
// configured, removes the local copy after a successful upload.
func (a *Archiver) Upload(ctx context.Context, path string) error {
	object := filepath.Base(path)
	_, err := a.client.FPutObject(ctx, a.bucket, object, path, minio.PutObjectOptions{
		ContentType: "application/zstd",
	})
	if err != nil {
		return fmt.Errorf("failed to upload segment %s: %w", object, err)
	}
	log.Infof("Archived trail segment %s to bucket %s", object, a.bucket)

	if a.pruneLocal {
		if err := os.Remove(path); err != nil {
			log.Warnf("Failed to prune archived segment %s: %v", path, err)
		}
	}
	return nil
}

// compressSegment writes a zstd-compressed copy of the segment next to it
// and removes the original. Returns the compressed path.
func compressSegment(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer src.Close()

	dstPath := path + ".zst"
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", err
	}

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		dst.Close()
		return "", err
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		return "", err
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		return "", err
	}
	if err := dst.Close(); err != nil {
		return "", err
	}

	if err := os.Remove(path); err != nil {
		return "", err
	}
	return dstPath, nil
}
