// Package provision creates the per-user input and output folder markers.
package provision

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/cyberchip-wang/s3uploader-ui/internal/logging"
	"github.com/cyberchip-wang/s3uploader-ui/internal/metrics"
	"github.com/cyberchip-wang/s3uploader-ui/internal/paths"
	"github.com/cyberchip-wang/s3uploader-ui/internal/storage"
)

// CreateFolder stores the zero-byte marker for userID's folderType folder at
// the protected level and returns the folder key. Storage errors are returned
// as-is.
func CreateFolder(ctx context.Context, client storage.Client, userID string, folderType paths.FolderType) (string, error) {
	if client == nil {
		return "", fmt.Errorf("%w: storage client is required", paths.ErrInvalidArgument)
	}
	key, err := paths.GenerateFolderPath(userID, folderType)
	if err != nil {
		return "", err
	}
	if err := client.Put(ctx, key, nil, storage.Options{Level: storage.LevelProtected}); err != nil {
		return "", err
	}
	return key, nil
}

// Provisioner makes sure every user has both folders.
type Provisioner struct {
	folders []paths.FolderType
}

// New returns a Provisioner for the input and output folders.
func New() *Provisioner {
	return &Provisioner{folders: paths.FolderTypes}
}

// EnsureUserFolders creates every folder for userID. All folders are
// attempted even when one fails; the returned error combines the failures.
func (p *Provisioner) EnsureUserFolders(ctx context.Context, client storage.Client, userID string) error {
	log := logging.WithContext(ctx).With(zap.String("user", userID))

	var errs error
	for _, folder := range p.folders {
		key, err := CreateFolder(ctx, client, userID, folder)
		metrics.RecordProvision(string(folder), err == nil)
		if err != nil {
			log.Warn("folder provisioning failed", zap.String("folder", string(folder)), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		log.Debug("folder provisioned", zap.String("key", key))
	}
	return errs
}
