package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	pkgerrors "github.com/yungbote/galaxychat-backend/internal/pkg/errors"
	"github.com/yungbote/galaxychat-backend/internal/platform/apierr"
	"github.com/yungbote/galaxychat-backend/internal/platform/gcp"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	failUp  error
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *fakeBucket) Upload(_ context.Context, key, contentType string, r io.Reader) error {
	if b.failUp != nil {
		return b.failUp
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *fakeBucket) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.objects[key]; !ok {
		return gcp.ErrObjectNotFound
	}
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func wantAPIError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("want *apierr.Error, got %v", err)
	}
	if ae.Status != status || ae.Message != msg {
		t.Fatalf("got status=%d message=%q, want %d %q", ae.Status, ae.Message, status, msg)
	}
}

func TestMediaUploadStoresUnderUserFolder(t *testing.T) {
	bucket := newFakeBucket()
	svc := NewMediaService(testLogger(t), bucket, 0)

	res, err := svc.Upload(context.Background(), UploadInput{
		UserID:      "user_1",
		Filename:    "cat.png",
		ContentType: "image/png",
		Size:        3,
		Body:        strings.NewReader("png"),
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !res.Success || !strings.HasPrefix(res.PublicID, "galaxy-chat/user_1/") || !strings.HasSuffix(res.PublicID, ".png") {
		t.Fatalf("result=%+v", res)
	}
	if res.URL != "https://cdn.example.com/"+res.PublicID {
		t.Fatalf("url=%q", res.URL)
	}
	if bucket.types[res.PublicID] != "image/png" {
		t.Fatalf("content type=%q", bucket.types[res.PublicID])
	}
}

func TestMediaUploadValidation(t *testing.T) {
	svc := NewMediaService(testLogger(t), newFakeBucket(), 0)
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{UserID: "u", ContentType: "image/png"})
	wantAPIError(t, err, http.StatusBadRequest, "No file provided")

	_, err = svc.Upload(ctx, UploadInput{UserID: "u", ContentType: "image/png", Size: MaxUploadBytes + 1, Body: strings.NewReader("x")})
	wantAPIError(t, err, http.StatusBadRequest, "File size exceeds 10MB limit")

	_, err = svc.Upload(ctx, UploadInput{UserID: "u", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x")})
	wantAPIError(t, err, http.StatusBadRequest, "File type not supported. Only images are allowed.")

	if _, err := svc.Upload(ctx, UploadInput{UserID: "u", ContentType: "image/svg+xml; charset=utf-8", Size: 1, Body: strings.NewReader("x")}); err != nil {
		t.Fatalf("svg with params: %v", err)
	}

	_, err = svc.Upload(ctx, UploadInput{ContentType: "image/png", Body: strings.NewReader("x")})
	if !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
}

func TestMediaUploadRejectsUnderstatedSize(t *testing.T) {
	bucket := newFakeBucket()
	svc := NewMediaService(testLogger(t), bucket, 0)

	body := bytes.Repeat([]byte("a"), MaxUploadBytes+10)
	_, err := svc.Upload(context.Background(), UploadInput{UserID: "u", ContentType: "image/gif", Size: 1, Body: bytes.NewReader(body)})
	wantAPIError(t, err, http.StatusBadRequest, "File size exceeds 10MB limit")
	if len(bucket.objects) != 0 {
		t.Fatalf("oversized object left behind: %d", len(bucket.objects))
	}
}

func TestMediaUploadFailureIsGeneric(t *testing.T) {
	bucket := newFakeBucket()
	bucket.failUp = errors.New("gcs: permission denied on bucket secret-bucket")
	svc := NewMediaService(testLogger(t), bucket, 0)

	_, err := svc.Upload(context.Background(), UploadInput{UserID: "u", ContentType: "image/jpeg", Size: 1, Body: strings.NewReader("x")})
	var ae *apierr.Error
	if !errors.As(err, &ae) || ae.Status != http.StatusInternalServerError {
		t.Fatalf("err=%v", err)
	}
	if strings.Contains(ae.Message, "secret-bucket") || !strings.HasPrefix(ae.Message, "Upload failed: ") {
		t.Fatalf("message leaks detail: %q", ae.Message)
	}
}

func TestMediaDeleteChecksOwnership(t *testing.T) {
	bucket := newFakeBucket()
	svc := NewMediaService(testLogger(t), bucket, 0)
	ctx := context.Background()

	res, err := svc.Upload(ctx, UploadInput{UserID: "owner", ContentType: "image/webp", Size: 1, Body: strings.NewReader("x")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := svc.Delete(ctx, "intruder", res.PublicID); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if err := svc.Delete(ctx, "owner", "galaxy-chat/owner/../other/x.png"); !errors.Is(err, pkgerrors.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for nested key, got %v", err)
	}
	if err := svc.Delete(ctx, "owner", res.PublicID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	err = svc.Delete(ctx, "owner", res.PublicID)
	wantAPIError(t, err, http.StatusNotFound, "File not found")
}
