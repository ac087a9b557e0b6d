package azblob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	azsdk "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/google/uuid"

	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/utils"
)

const DefaultDownloadURLTTL = 15 * time.Minute

// UploadedObject describes a blob after a successful upload. Objects are
// immutable after creation; the only later operations are signing and delete.
type UploadedObject struct {
	ID           string    `json:"id"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"lastModified,omitempty"`
}

type BlobService interface {
	// Upload stores the payload under a generated object ID
	// (<prefix>/<yyyy>/<mm>/<uuid><ext>) and returns its metadata.
	Upload(ctx context.Context, data []byte, contentType, filename string) (*UploadedObject, error)
	// SignedDownloadURL mints a read-only SAS URL for the object. It does not
	// verify the object exists; a GET against the URL 404s in that case.
	SignedDownloadURL(objectID string, expiresIn time.Duration) (string, error)
	// Delete removes the object. Deleting a missing object is success.
	Delete(ctx context.Context, objectID string) error
}

type blobService struct {
	log        *logger.Logger
	client     *azsdk.Client
	credential *azsdk.SharedKeyCredential
	endpoint   string
	container  string
	pathPrefix string
	defaultTTL time.Duration

	ensureOnce sync.Once
	ensureErr  error
}

func NewBlobService(log *logger.Logger) (BlobService, error) {
	serviceLog := log.With("service", "BlobService")

	accountName := utils.GetEnv("AZURE_STORAGE_ACCOUNT", "", log)
	accountKey := utils.GetEnv("AZURE_STORAGE_ACCOUNT_KEY", "", log)
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT and AZURE_STORAGE_ACCOUNT_KEY must be set")
	}

	endpoint := utils.GetEnv("AZURE_STORAGE_BLOB_ENDPOINT", "", log)
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}
	endpoint = strings.TrimRight(endpoint, "/")

	container := strings.TrimSpace(utils.GetEnv("AZURE_STORAGE_CONTAINER", "attachments", log))
	if container == "" {
		container = "attachments"
	}
	pathPrefix := utils.GetEnv("AZURE_STORAGE_PATH_PREFIX", "attachments", log)
	ttlSeconds := utils.GetEnvAsInt("AZURE_STORAGE_DOWNLOAD_URL_TTL_SECONDS", int(DefaultDownloadURLTTL/time.Second), log)

	cred, err := azsdk.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("build storage credential: %w", err)
	}
	client, err := azsdk.NewClientWithSharedKeyCredential(endpoint, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}

	serviceLog.Info(
		"Blob storage initialized",
		"endpoint", endpoint,
		"container", container,
		"path_prefix", pathPrefix,
		"url_ttl_seconds", ttlSeconds,
	)

	return &blobService{
		log:        serviceLog,
		client:     client,
		credential: cred,
		endpoint:   endpoint,
		container:  container,
		pathPrefix: strings.Trim(pathPrefix, "/"),
		defaultTTL: time.Duration(ttlSeconds) * time.Second,
	}, nil
}

// ensureContainer creates the backing container at most once per process.
// A 409 from a concurrent or earlier create counts as success.
func (bs *blobService) ensureContainer(ctx context.Context) error {
	bs.ensureOnce.Do(func() {
		_, err := bs.client.CreateContainer(ctx, bs.container, nil)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
				return
			}
			bs.log.Error("Failed to ensure blob container", "container", bs.container, "error", err)
			bs.ensureErr = fmt.Errorf("ensure container %q: %w", bs.container, err)
			return
		}
		bs.log.Info("Blob container created", "container", bs.container)
	})
	return bs.ensureErr
}

func (bs *blobService) Upload(ctx context.Context, data []byte, contentType, filename string) (*UploadedObject, error) {
	if err := bs.ensureContainer(ctx); err != nil {
		return nil, err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	objectID := bs.buildObjectID(filename)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	resp, err := bs.client.UploadBuffer(ctx, bs.container, objectID, data, &azsdk.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata:    map[string]*string{"filename": &filename},
	})
	if err != nil {
		return nil, fmt.Errorf("upload blob %q: %w", objectID, err)
	}

	out := &UploadedObject{
		ID:          objectID,
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	if resp.ETag != nil {
		out.ETag = string(*resp.ETag)
	}
	if resp.LastModified != nil {
		out.LastModified = *resp.LastModified
	}

	bs.log.Debug("Uploaded attachment blob",
		"object_id", objectID,
		"size", out.Size,
		"content_type", contentType,
	)
	return out, nil
}

func (bs *blobService) SignedDownloadURL(objectID string, expiresIn time.Duration) (string, error) {
	return bs.signedDownloadURLAt(time.Now().UTC(), objectID, expiresIn)
}

func (bs *blobService) signedDownloadURLAt(now time.Time, objectID string, expiresIn time.Duration) (string, error) {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return "", fmt.Errorf("missing object id")
	}
	if expiresIn <= 0 {
		expiresIn = bs.defaultTTL
	}

	perms := sas.BlobPermissions{Read: true}
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		ExpiryTime:    now.Add(expiresIn),
		Permissions:   perms.String(),
		ContainerName: bs.container,
		BlobName:      objectID,
	}
	qp, err := values.SignWithSharedKey(bs.credential)
	if err != nil {
		return "", fmt.Errorf("sign download url for %q: %w", objectID, err)
	}
	return fmt.Sprintf("%s/%s/%s?%s", bs.endpoint, bs.container, objectID, qp.Encode()), nil
}

func (bs *blobService) Delete(ctx context.Context, objectID string) error {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return fmt.Errorf("missing object id")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := bs.client.DeleteBlob(ctx, bs.container, objectID, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil
		}
		return fmt.Errorf("delete blob %q: %w", objectID, err)
	}
	return nil
}

// buildObjectID produces <prefix>/<UTC year>/<UTC month>/<uuid><ext>. The
// month bucket keeps the container scannable by prefix without a separate
// index; the original filename never enters the ID, only its extension.
func (bs *blobService) buildObjectID(filename string) string {
	now := time.Now().UTC()
	name := uuid.NewString() + sanitizeExtension(filename)
	if bs.pathPrefix == "" {
		return fmt.Sprintf("%04d/%02d/%s", now.Year(), int(now.Month()), name)
	}
	return fmt.Sprintf("%s/%04d/%02d/%s", bs.pathPrefix, now.Year(), int(now.Month()), name)
}

func sanitizeExtension(filename string) string {
	ext := path.Ext(strings.TrimSpace(filename))
	if ext == "." {
		return ""
	}
	return ext
}
