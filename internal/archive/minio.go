// Package archive exports approved final artifacts to object storage so
// destinations and audits can fetch them long after the review queue has
// moved on.
package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/config"
)

type Archiver struct {
	client *minio.Client
	bucket string
	config *config.ArchiveConfig
}

// New builds an archiver against the configured object store. Returns nil
// (archival disabled) when no endpoint is configured.
func New(cfg *config.ArchiveConfig) (*Archiver, error) {
	if cfg == nil || cfg.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *Archiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StoreFinal uploads the approved content of one version. Object names are
// tenant/deliverableID/version-N.<ext> so history stays navigable per
// deliverable.
func (a *Archiver) StoreFinal(ctx context.Context, tenant, deliverableID string, number int, content, format string) (string, error) {
	objectName := fmt.Sprintf("%s/%s/version-%d.%s", tenant, deliverableID, number, extension(format))
	reader := strings.NewReader(content)

	_, err := a.client.PutObject(ctx, a.bucket, objectName, reader, int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType(format),
	})
	if err != nil {
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}

	return objectName, nil
}

func extension(format string) string {
	switch strings.ToLower(format) {
	case "html":
		return "html"
	case "text", "plain":
		return "txt"
	default:
		return "md"
	}
}

func contentType(format string) string {
	switch strings.ToLower(format) {
	case "html":
		return "text/html"
	case "text", "plain":
		return "text/plain"
	default:
		return "text/markdown"
	}
}
