package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/apierr"
	"github.com/yungbote/galaxychat-backend/internal/platform/gcp"
	"github.com/yungbote/galaxychat-backend/internal/platform/logger"
)

const (
	MediaFolder        = "galaxy-chat"
	MaxUploadBytes     = 10 << 20
	DefaultUploadLimit = 30 * time.Second
)

// allowedImageTypes maps each accepted media type to the extension used in object keys.
var allowedImageTypes = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

var ErrMediaNotConfigured = errors.New("media storage not configured")

type UploadInput struct {
	UserID      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadResult struct {
	Success  bool   `json:"success"`
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type MediaService interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	Delete(ctx context.Context, userID, publicID string) error
}

type mediaService struct {
	log     *logger.Logger
	bucket  gcp.MediaBucket
	timeout time.Duration
}

func NewMediaService(log *logger.Logger, bucket gcp.MediaBucket, timeout time.Duration) MediaService {
	if timeout <= 0 {
		timeout = DefaultUploadLimit
	}
	return &mediaService{log: log.With("service", "MediaService"), bucket: bucket, timeout: timeout}
}

func (ms *mediaService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return nil, pkgerrors.ErrUnauthorized
	}
	if in.Body == nil {
		return nil, apierr.New(http.StatusBadRequest, "No file provided", pkgerrors.ErrInvalidArgument)
	}
	if in.Size > MaxUploadBytes {
		return nil, apierr.New(http.StatusBadRequest, "File size exceeds 10MB limit", pkgerrors.ErrInvalidArgument)
	}
	mediaType := normalizeMediaType(in.ContentType)
	ext, ok := allowedImageTypes[mediaType]
	if !ok {
		return nil, apierr.New(http.StatusBadRequest, "File type not supported. Only images are allowed.", pkgerrors.ErrInvalidArgument)
	}
	if ms.bucket == nil {
		return nil, uploadFailed(ErrMediaNotConfigured)
	}

	key := fmt.Sprintf("%s/%s/%s%s", MediaFolder, url.PathEscape(in.UserID), uuid.NewString(), ext)

	uctx, cancel := context.WithTimeout(ctx, ms.timeout)
	defer cancel()
	// guards against a body longer than the declared size
	body := io.LimitReader(in.Body, MaxUploadBytes+1)
	counted := &countingReader{r: body}
	if err := ms.bucket.Upload(uctx, key, mediaType, counted); err != nil {
		ms.log.Error("media upload failed", "user_id", in.UserID, "key", key, "error", err)
		return nil, uploadFailed(err)
	}
	if counted.n > MaxUploadBytes {
		_ = ms.bucket.Delete(context.WithoutCancel(ctx), key)
		return nil, apierr.New(http.StatusBadRequest, "File size exceeds 10MB limit", pkgerrors.ErrInvalidArgument)
	}

	ms.log.Info("media uploaded", "user_id", in.UserID, "key", key, "bytes", counted.n, "media_type", mediaType)
	return &UploadResult{Success: true, URL: ms.bucket.PublicURL(key), PublicID: key}, nil
}

func (ms *mediaService) Delete(ctx context.Context, userID, publicID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.ErrUnauthorized
	}
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return apierr.New(http.StatusBadRequest, "No publicId provided", pkgerrors.ErrInvalidArgument)
	}
	// keys are scoped by owner, so the prefix is the ownership check
	prefix := fmt.Sprintf("%s/%s/", MediaFolder, url.PathEscape(userID))
	if !strings.HasPrefix(publicID, prefix) || strings.Contains(publicID[len(prefix):], "/") {
		return pkgerrors.ErrUnauthorized
	}
	if ms.bucket == nil {
		return ErrMediaNotConfigured
	}
	if err := ms.bucket.Delete(ctx, publicID); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return apierr.New(http.StatusNotFound, "File not found", pkgerrors.ErrNotFound)
		}
		return fmt.Errorf("delete media %s: %w", publicID, err)
	}
	ms.log.Info("media deleted", "user_id", userID, "key", publicID)
	return nil
}

func normalizeMediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(mt)
}

func uploadFailed(err error) error {
	return apierr.New(http.StatusInternalServerError, "Upload failed: internal error", err)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
