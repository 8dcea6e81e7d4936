package blob

import (
	"context"
	"fmt"

	"github.com/giygas/tdm-reports/config"
)

// Open selects a Store from the configuration. An empty driver disables
// publishing and returns a nil store.
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch Driver(cfg.BlobDriver) {
	case "":
		return nil, nil
	case DriverFilesystem:
		fs, err := NewFilesystem(cfg.BlobFSRoot)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		store, err := NewS3(ctx, S3Config{
			Region:    cfg.BlobS3Region,
			Bucket:    cfg.BlobS3Bucket,
			Endpoint:  cfg.BlobS3Endpoint,
			PathStyle: cfg.BlobS3PathStyle,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", cfg.BlobDriver)
	}
}
