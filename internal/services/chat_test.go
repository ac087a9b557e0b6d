package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	chatrepo "github.com/yungbote/chatline-backend/internal/data/repos/chat"
	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/apierr"
	"github.com/yungbote/chatline-backend/internal/platform/azblob"
	"github.com/yungbote/chatline-backend/internal/platform/dbctx"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

type fakeThreadRepo struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*types.ChatThread
}

func newFakeThreadRepo() *fakeThreadRepo {
	return &fakeThreadRepo{rows: map[uuid.UUID]*types.ChatThread{}}
}

func (r *fakeThreadRepo) Create(_ dbctx.Context, row *types.ChatThread) (*types.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *row
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
		cp.UpdatedAt = cp.CreatedAt
	}
	r.rows[cp.ID] = &cp
	return &cp, nil
}

func (r *fakeThreadRepo) GetByID(_ dbctx.Context, id uuid.UUID) (*types.ChatThread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (r *fakeThreadRepo) List(_ dbctx.Context, limit int, cursor string) ([]*types.ChatThread, string, error) {
	if cursor != "" {
		return nil, "", fmt.Errorf("%w: unsupported in fake", chatrepo.ErrBadCursor)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ChatThread
	for _, row := range r.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, "", nil
}

func (r *fakeThreadRepo) UpdateFields(_ dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["title"].(string); ok {
		row.Title = v
	}
	if v, ok := updates["archived"].(bool); ok {
		row.Archived = v
	}
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *fakeThreadRepo) HardDeleteByID(_ dbctx.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

type fakeMessageRepo struct {
	mu   sync.Mutex
	rows []*types.ChatMessage
}

func (r *fakeMessageRepo) Create(_ dbctx.Context, row *types.ChatMessage) (*types.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *row
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.rows = append(r.rows, &cp)
	return &cp, nil
}

func (r *fakeMessageRepo) ListByThreadID(_ dbctx.Context, threadID uuid.UUID) ([]*types.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.ChatMessage
	for _, row := range r.rows {
		if row.ThreadID == threadID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) HardDeleteByThreadID(_ dbctx.Context, threadID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*types.ChatMessage
	for _, row := range r.rows {
		if row.ThreadID != threadID {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	return nil
}

type fakeBlob struct {
	mu      sync.Mutex
	signs   int64
	deleted []string
	failIDs map[string]bool
}

func (b *fakeBlob) Upload(_ context.Context, data []byte, contentType, filename string) (*azblob.UploadedObject, error) {
	return &azblob.UploadedObject{ID: "attachments/2020/08/" + filename, ContentType: contentType, Size: int64(len(data))}, nil
}

func (b *fakeBlob) SignedDownloadURL(objectID string, _ time.Duration) (string, error) {
	atomic.AddInt64(&b.signs, 1)
	return "https://blob.example/" + objectID + "?sig=fresh", nil
}

func (b *fakeBlob) Delete(_ context.Context, objectID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failIDs[objectID] {
		return fmt.Errorf("delete %s: storage unavailable", objectID)
	}
	b.deleted = append(b.deleted, objectID)
	return nil
}

func newChatFixture(t *testing.T) (ChatService, *fakeThreadRepo, *fakeMessageRepo, *fakeBlob) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	threads := newFakeThreadRepo()
	messages := &fakeMessageRepo{}
	blob := &fakeBlob{failIDs: map[string]bool{}}
	normalizer := NewAttachmentNormalizer(log, blob, 15*time.Minute)
	return NewChatService(log, threads, messages, blob, normalizer), threads, messages, blob
}

func mustAppend(t *testing.T, svc ChatService, threadID uuid.UUID, atts []types.Attachment) *types.ChatMessage {
	t.Helper()
	msg, err := svc.AppendMessage(context.Background(), threadID, MessageInput{
		Role:        types.RoleUser,
		Content:     json.RawMessage(`"hello"`),
		Attachments: atts,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	return msg
}

func TestAppendMessagePersistsNormalizedAttachments(t *testing.T) {
	svc, _, messages, _ := newChatFixture(t)
	th, err := svc.CreateThread(context.Background(), ThreadInput{})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	if th.Title != types.DefaultThreadTitle {
		t.Fatalf("default title not applied: %q", th.Title)
	}

	mustAppend(t, svc, th.ID, []types.Attachment{
		blobAttachment("a1", "attachments/2020/08/pic.png",
			types.ContentPart{Type: types.PartTypeImage, Image: "https://blob.example/pic.png?sig=LEAK"},
		),
	})

	rows, _ := messages.ListByThreadID(dbctx.Context{}, th.ID)
	if len(rows) != 1 {
		t.Fatalf("expected 1 stored message, got %d", len(rows))
	}
	if strings.Contains(string(rows[0].Attachments), "sig=") {
		t.Fatalf("credential stored at rest: %s", rows[0].Attachments)
	}
}

func TestGetMessagesRehydratesAttachments(t *testing.T) {
	svc, _, _, _ := newChatFixture(t)
	th, _ := svc.CreateThread(context.Background(), ThreadInput{Title: "t"})

	mustAppend(t, svc, th.ID, []types.Attachment{
		blobAttachment("a1", "attachments/2020/08/pic.png",
			types.ContentPart{Type: types.PartTypeImage, Image: "https://blob.example/pic.png?sig=LEAK"},
		),
	})

	out, err := svc.GetMessages(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 message, got %d", len(out))
	}
	atts, err := types.DecodeAttachments(out[0].Attachments)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := atts[0].Content[0].Image; !strings.Contains(got, "sig=fresh") {
		t.Fatalf("attachment not rehydrated with a fresh signed url: %q", got)
	}
}

func TestGetMessagesSignsSharedObjectOnceAcrossMessages(t *testing.T) {
	svc, _, _, blob := newChatFixture(t)
	th, _ := svc.CreateThread(context.Background(), ThreadInput{Title: "t"})

	// Three messages, all referencing the same stored object.
	for i := 0; i < 3; i++ {
		mustAppend(t, svc, th.ID, []types.Attachment{
			blobAttachment(fmt.Sprintf("a%d", i), "attachments/2020/08/shared.png",
				types.ContentPart{Type: types.PartTypeImage, Image: ""},
			),
		})
	}

	out, err := svc.GetMessages(context.Background(), th.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(out))
	}
	for i, msg := range out {
		atts, err := types.DecodeAttachments(msg.Attachments)
		if err != nil {
			t.Fatalf("decode message %d: %v", i, err)
		}
		if got := atts[0].Content[0].Image; !strings.Contains(got, "sig=fresh") {
			t.Fatalf("message %d not rehydrated: %q", i, got)
		}
	}
	if got := atomic.LoadInt64(&blob.signs); got != 1 {
		t.Fatalf("expected 1 signing call for a shared object, got %d", got)
	}
}

func TestDeleteThreadRemovesDistinctBlobsOnce(t *testing.T) {
	svc, threads, messages, blob := newChatFixture(t)
	th, _ := svc.CreateThread(context.Background(), ThreadInput{Title: "t"})

	// Three messages referencing two distinct objects.
	mustAppend(t, svc, th.ID, []types.Attachment{blobAttachment("a", "obj-1")})
	mustAppend(t, svc, th.ID, []types.Attachment{blobAttachment("b", "obj-1")})
	mustAppend(t, svc, th.ID, []types.Attachment{blobAttachment("c", "obj-2")})

	if err := svc.DeleteThread(context.Background(), th.ID); err != nil {
		t.Fatalf("delete thread: %v", err)
	}

	if _, err := threads.GetByID(dbctx.Context{}, th.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("thread row survived delete: %v", err)
	}
	left, _ := messages.ListByThreadID(dbctx.Context{}, th.ID)
	if len(left) != 0 {
		t.Fatalf("message rows survived delete: %d", len(left))
	}

	sort.Strings(blob.deleted)
	if len(blob.deleted) != 2 || blob.deleted[0] != "obj-1" || blob.deleted[1] != "obj-2" {
		t.Fatalf("expected one delete per distinct object, got %v", blob.deleted)
	}
}

func TestDeleteThreadReportsPartialFailure(t *testing.T) {
	svc, threads, _, blob := newChatFixture(t)
	th, _ := svc.CreateThread(context.Background(), ThreadInput{Title: "t"})

	mustAppend(t, svc, th.ID, []types.Attachment{blobAttachment("a", "obj-ok")})
	mustAppend(t, svc, th.ID, []types.Attachment{blobAttachment("b", "obj-stuck")})
	blob.failIDs["obj-stuck"] = true

	err := svc.DeleteThread(context.Background(), th.ID)
	if !apierr.IsPartialFailure(err) {
		t.Fatalf("expected partial failure, got %v", err)
	}
	var pf *apierr.PartialFailure
	errors.As(err, &pf)
	if len(pf.FailedIDs) != 1 || pf.FailedIDs[0] != "obj-stuck" {
		t.Fatalf("wrong failed ids: %v", pf.FailedIDs)
	}

	// Rows are gone even though a blob remains.
	if _, err := threads.GetByID(dbctx.Context{}, th.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("thread row should be gone on partial failure: %v", err)
	}
	if len(blob.deleted) != 1 || blob.deleted[0] != "obj-ok" {
		t.Fatalf("healthy blob not deleted: %v", blob.deleted)
	}
}

func TestDeleteThreadMissingIsIdempotent(t *testing.T) {
	svc, _, _, blob := newChatFixture(t)
	if err := svc.DeleteThread(context.Background(), uuid.New()); err != nil {
		t.Fatalf("delete of missing thread should succeed: %v", err)
	}
	if len(blob.deleted) != 0 {
		t.Fatalf("no blobs should be touched: %v", blob.deleted)
	}
}

func TestUpdateThreadValidation(t *testing.T) {
	svc, _, _, _ := newChatFixture(t)
	th, _ := svc.CreateThread(context.Background(), ThreadInput{Title: "t"})

	if _, err := svc.UpdateThread(context.Background(), th.ID, ThreadUpdate{}); err == nil {
		t.Fatalf("empty update should be rejected")
	}
	blank := "   "
	if _, err := svc.UpdateThread(context.Background(), th.ID, ThreadUpdate{Title: &blank}); err == nil {
		t.Fatalf("blank title should be rejected")
	}

	title := "renamed"
	archived := true
	got, err := svc.UpdateThread(context.Background(), th.ID, ThreadUpdate{Title: &title, Archived: &archived})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "renamed" || !got.Archived {
		t.Fatalf("update not applied: %+v", got)
	}

	if _, err := svc.UpdateThread(context.Background(), uuid.New(), ThreadUpdate{Title: &title}); err == nil {
		t.Fatalf("unknown thread should 404")
	}
}

func TestAppendMessageRejectsUnknownRole(t *testing.T) {
	svc, _, _, _ := newChatFixture(t)
	th, _ := svc.CreateThread(context.Background(), ThreadInput{Title: "t"})
	_, err := svc.AppendMessage(context.Background(), th.ID, MessageInput{Role: "moderator"})
	if err == nil {
		t.Fatalf("unknown role should be rejected")
	}
}
