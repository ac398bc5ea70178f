package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/drive/v3"

	"worksync/internal/config"
	"worksync/internal/googleauth"
)

var ErrNotFound = errors.New("remote file not found")

// FileStore moves whole files between a local path and a named remote object.
type FileStore interface {
	Download(ctx context.Context, name, dest string) error
	Upload(ctx context.Context, src, name string) error
}

// New builds the store named by CLOUD_PROVIDER; "none" returns nil.
func New(ctx context.Context, cfg config.Config) (FileStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.CloudProvider)) {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocalStore(cfg.CloudLocalDir), nil
	case "drive":
		opts, err := googleauth.ClientOptions(ctx, cfg, drive.DriveScope)
		if err != nil {
			return nil, err
		}
		return NewDriveStore(ctx, cfg.CloudFolderID, opts...)
	default:
		return nil, fmt.Errorf("unknown CLOUD_PROVIDER %q", cfg.CloudProvider)
	}
}
