package imagehost

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/supplierbot/internal/common"
	"github.com/dmitrijs2005/supplierbot/internal/config"
	"github.com/dmitrijs2005/supplierbot/internal/imagehost/memhost"
	"github.com/dmitrijs2005/supplierbot/internal/imagehost/s3host"
)

// Open builds the host selected by cfg.ImageDriver.
func Open(ctx context.Context, cfg *config.Config) (Host, error) {
	switch cfg.ImageDriver {
	case config.ImageS3:
		return s3host.New(ctx, s3host.Options{
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			Bucket:       cfg.S3Bucket,
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			Prefix:       cfg.S3Prefix,
			PublicURL:    cfg.S3PublicURL,
		})
	case config.ImageMemory:
		return memhost.New(), nil
	default:
		return nil, fmt.Errorf("image host %q: %w", cfg.ImageDriver, common.ErrorUnknownDriver)
	}
}
