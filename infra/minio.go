package infra

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tnqbao/gau-plugin-installer/config"
)

// MinioClient downloads plugin UI bundles stored as <bucket>/<plugin>/...
type MinioClient struct {
	Client *minio.Client
	Bucket string
	UIDir  string
}

// InitMinioClient returns nil when no endpoint is configured; sync_ui steps
// then fail with a configuration error.
func InitMinioClient(cfg *config.EnvConfig) (*MinioClient, error) {
	if cfg.Minio.Endpoint == "" {
		return nil, nil
	}

	client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return &MinioClient{
		Client: client,
		Bucket: cfg.Minio.UIBucket,
		UIDir:  cfg.Installer.UIDir,
	}, nil
}

// SyncUI mirrors every object under the plugin's prefix into UIDir.
func (m *MinioClient) SyncUI(ctx context.Context, pluginName string) (string, error) {
	prefix := pluginName + "/"
	objectCh := m.Client.ListObjects(ctx, m.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	count := 0
	for obj := range objectCh {
		if obj.Err != nil {
			return "", fmt.Errorf("failed to list ui objects for %s: %w", pluginName, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		target, err := LocalObjectPath(m.UIDir, obj.Key)
		if err != nil {
			return "", err
		}
		if err := m.Client.FGetObject(ctx, m.Bucket, obj.Key, target, minio.GetObjectOptions{}); err != nil {
			return "", fmt.Errorf("failed to download %s: %w", obj.Key, err)
		}
		count++
	}

	if count == 0 {
		return "", fmt.Errorf("no ui bundle found for %s in bucket %s", pluginName, m.Bucket)
	}

	return fmt.Sprintf("synced %d objects for %s into %s", count, pluginName, m.UIDir), nil
}

// LocalObjectPath maps an object key under root, refusing keys that escape it.
func LocalObjectPath(root, key string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(key))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q escapes ui directory", key)
	}
	return target, nil
}
