package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("media object not found")

// MediaBucket stores user uploaded media and builds their public URLs.
type MediaBucket interface {
	Upload(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type MediaConfig struct {
	Bucket        string
	CDNDomain     string
	PublicBaseURL string
	Credentials   string
	Storage       StorageConfig
	UploadTimeout time.Duration
}

type mediaBucket struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	cdnDomain     string
	publicBaseURL string
	storage       StorageConfig
	uploadTimeout time.Duration
}

func NewMediaBucket(ctx context.Context, log *logger.Logger, cfg MediaConfig) (MediaBucket, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("missing GCS_MEDIA_BUCKET")
	}
	if err := ValidateStorageConfig(cfg.Storage); err != nil {
		return nil, fmt.Errorf("validate media storage config: %w", err)
	}
	publicBaseURL, source, err := resolvePublicBaseURL(cfg.PublicBaseURL, cfg.Storage)
	if err != nil {
		return nil, err
	}

	client, err := newStorageClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	serviceLog := log.With("service", "MediaBucket")
	serviceLog.Info("Media storage initialized",
		"mode", cfg.Storage.Mode,
		"mode_source", cfg.Storage.ModeSource(),
		"bucket", cfg.Bucket,
		"public_base_source", source,
	)
	return newMediaBucket(serviceLog, client, cfg, publicBaseURL), nil
}

func newMediaBucket(log *logger.Logger, client *storage.Client, cfg MediaConfig, publicBaseURL string) *mediaBucket {
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &mediaBucket{
		log:           log,
		client:        client,
		bucket:        strings.TrimSpace(cfg.Bucket),
		cdnDomain:     strings.TrimSpace(cfg.CDNDomain),
		publicBaseURL: publicBaseURL,
		storage:       cfg.Storage,
		uploadTimeout: timeout,
	}
}

func newStorageClient(ctx context.Context, cfg MediaConfig) (*storage.Client, error) {
	switch cfg.Storage.Mode {
	case StorageModeGCS:
		opts := ClientOptions(cfg.Credentials)
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case StorageModeGCSEmulator:
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.Storage.EmulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &StorageConfigError{Code: StorageConfigErrorInvalidMode, Mode: string(cfg.Storage.Mode)}
	}
}

func resolvePublicBaseURL(raw string, sc StorageConfig) (baseURL string, source string, err error) {
	raw = strings.TrimSpace(raw)
	if raw != "" {
		parsed, parseErr := url.Parse(raw)
		if parseErr != nil || strings.TrimSpace(parsed.Scheme) == "" || strings.TrimSpace(parsed.Host) == "" {
			return "", "", fmt.Errorf("invalid MEDIA_PUBLIC_BASE_URL=%q; expected absolute URL like http://localhost:4443", raw)
		}
		return strings.TrimRight(raw, "/"), "media_public_base_url", nil
	}
	if sc.IsEmulator() {
		return sc.EmulatorHost, "storage_emulator_host", nil
	}
	return "", "gcs_default", nil
}

func (b *mediaBucket) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, b.uploadTimeout)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *mediaBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := b.client.Bucket(b.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete GCS object %q in bucket %q: %w", key, b.bucket, err)
	}
	return nil
}

func (b *mediaBucket) PublicURL(key string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if b.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", b.cdnDomain, key)
	}
	if b.storage.IsEmulator() && b.publicBaseURL != "" {
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", b.publicBaseURL, url.PathEscape(b.bucket), url.PathEscape(key))
	}
	if b.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", b.publicBaseURL, b.bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", b.bucket, key)
}
