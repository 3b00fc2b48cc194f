// Package resumes stores uploaded resumes in object storage and records the
// object path on the user row.
package resumes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

var ErrValidation = errors.New("validation error")

const maxResumeBytes = 10 << 20

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

type UserStore interface {
	EnsureUser(ctx context.Context, email string) error
	SetResumePath(ctx context.Context, email, path string) error
}

type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Service struct {
	objects ObjectStore
	users   UserStore
	bucket  string
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(objects ObjectStore, users UserStore, bucket string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		objects: objects,
		users:   users,
		bucket:  bucket,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload stores the resume under a per-user key and persists the path.
// Repeat uploads overwrite nothing: each upload gets a timestamped key and
// the user row points at the newest one.
func (s *Service) Upload(ctx context.Context, email, filename string, size int64, contentType string, body io.Reader) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	if s.objects == nil || s.users == nil {
		return "", fmt.Errorf("resume dependencies are not configured")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: unsupported resume type %q", ErrValidation, ext)
	}
	if size <= 0 || size > maxResumeBytes {
		return "", fmt.Errorf("%w: resume size out of bounds", ErrValidation)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("resumes/%s/%d%s", email, s.now().UnixNano(), ext)
	if _, err := s.objects.PutObject(ctx, s.bucket, objectName, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("store resume object: %w", err)
	}

	if err := s.users.EnsureUser(ctx, email); err != nil {
		return "", err
	}
	if err := s.users.SetResumePath(ctx, email, objectName); err != nil {
		return "", err
	}

	s.logger.Info("resume stored",
		zap.String("email", email),
		zap.String("object", objectName),
	)
	return objectName, nil
}
