package provisioning

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/imamik/fleetctl/internal/platform/s3"
)

// ErrNoUploader is returned for "s3://" locations when object storage is not configured.
var ErrNoUploader = errors.New("object storage is not configured")

// WriteHostList writes names as a comma-separated list to location, a
// local path or an "s3://bucket/key" location.
func WriteHostList(ctx context.Context, location string, names []string, uploader Uploader) error {
	data := []byte(strings.Join(names, ","))

	if s3.IsURI(location) {
		if uploader == nil {
			return fmt.Errorf("failed to write %s: %w", location, ErrNoUploader)
		}
		if err := uploader.Upload(ctx, location, data); err != nil {
			return fmt.Errorf("failed to upload host list: %w", err)
		}
		return nil
	}

	if dir := filepath.Dir(location); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", location, err)
		}
	}
	if err := os.WriteFile(location, data, 0o644); err != nil {
		return fmt.Errorf("failed to write host list: %w", err)
	}
	return nil
}
