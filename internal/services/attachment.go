package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/chatline-backend/internal/platform/apierr"
	"github.com/yungbote/chatline-backend/internal/platform/azblob"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/utils"
)

// AttachmentService fronts the blob store for the HTTP layer: uploads with
// size policy applied, and signed download URLs on demand.
type AttachmentService interface {
	Upload(ctx context.Context, data []byte, contentType, filename string) (*azblob.UploadedObject, error)
	// DownloadURL signs a download URL for objectID. expiresIn <= 0 uses the
	// store's default TTL.
	DownloadURL(ctx context.Context, objectID string, expiresIn time.Duration) (string, error)
}

type attachmentService struct {
	log      *logger.Logger
	blob     azblob.BlobService
	maxBytes int
}

func NewAttachmentService(log *logger.Logger, blob azblob.BlobService) AttachmentService {
	return &attachmentService{
		log:      log.With("service", "AttachmentService"),
		blob:     blob,
		maxBytes: utils.GetEnvAsInt("UPLOAD_MAX_BYTES", 25<<20, log),
	}
}

func (s *attachmentService) Upload(ctx context.Context, data []byte, contentType, filename string) (*azblob.UploadedObject, error) {
	if len(data) == 0 {
		return nil, apierr.Validation("empty_file", fmt.Errorf("empty upload body"))
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return nil, apierr.Validation("file_too_large", fmt.Errorf("upload of %d bytes exceeds limit %d", len(data), s.maxBytes))
	}
	obj, err := s.blob.Upload(ctx, data, contentType, filename)
	if err != nil {
		return nil, apierr.Backend("upload_failed", err)
	}
	s.log.Info("attachment uploaded", "object_id", obj.ID, "size", obj.Size, "content_type", obj.ContentType)
	return obj, nil
}

func (s *attachmentService) DownloadURL(ctx context.Context, objectID string, expiresIn time.Duration) (string, error) {
	if objectID == "" {
		return "", apierr.Validation("missing_object_id", fmt.Errorf("objectId is required"))
	}
	if expiresIn <= 0 {
		expiresIn = azblob.DefaultDownloadURLTTL
	}
	url, err := s.blob.SignedDownloadURL(objectID, expiresIn)
	if err != nil {
		return "", apierr.Backend("sign_failed", err)
	}
	return url, nil
}
