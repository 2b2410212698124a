// Package archive keeps JSON snapshots of run reports in an S3 compatible
// bucket.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver stores one report and returns the key it was written under.
type Archiver interface {
	Archive(ctx context.Context, kind string, v any) (string, error)
}

// ObjectKey names a report snapshot: <kind>/<UTC timestamp>.json
func ObjectKey(kind string, at time.Time) string {
	return kind + "/" + at.UTC().Format("20060102T150405.000Z") + ".json"
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Region skips the bucket location lookup when set
	Region string
}

type Minio struct {
	client *minio.Client
	bucket string
	now    func() time.Time
}

// NewMinio connects to the object store and creates the bucket if needed.
func NewMinio(ctx context.Context, opts Options) (*Minio, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
	}
	return &Minio{client: client, bucket: opts.Bucket, now: time.Now}, nil
}

func (m *Minio) Archive(ctx context.Context, kind string, v any) (string, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s report: %w", kind, err)
	}
	key := ObjectKey(kind, m.now())
	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}
