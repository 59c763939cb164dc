package backup

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-id/internal/config"
)

// NewSink builds the sink selected by cfg.Target.
func NewSink(ctx context.Context, cfg config.BackupConfig) (Sink, error) {
	switch cfg.Target {
	case "", "local":
		return NewLocalSink(cfg.Dir)
	case "s3":
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("BACKUP_BUCKET is required for s3 backups")
		}
		return NewS3Sink(ctx, cfg.Bucket, cfg.Prefix, cfg.Region)
	case "minio":
		if cfg.Bucket == "" || cfg.MinioEndpoint == "" {
			return nil, fmt.Errorf("BACKUP_BUCKET and MINIO_ENDPOINT are required for minio backups")
		}
		return NewMinioSink(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey,
			cfg.MinioUseSSL, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown backup target %q (want local, s3 or minio)", cfg.Target)
	}
}
