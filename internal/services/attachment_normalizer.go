package services

import (
	"context"
	"strings"
	"sync"
	"time"

	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

// AttachmentNormalizer owns the two content transforms around persistence:
// NormalizeForStorage before a message row is written, Rehydrate before
// stored attachments are returned to a client.
type AttachmentNormalizer struct {
	log    *logger.Logger
	signer URLSigner
	ttl    time.Duration
}

func NewAttachmentNormalizer(log *logger.Logger, signer URLSigner, ttl time.Duration) *AttachmentNormalizer {
	return &AttachmentNormalizer{
		log:    log.With("service", "AttachmentNormalizer"),
		signer: signer,
		ttl:    ttl,
	}
}

// NormalizeForStorage strips credential-bearing material from attachment
// content so nothing time-limited or secret lands at rest. Query strings
// (SAS tokens) are cut from http(s) URLs; inline data URIs and raw base64
// payloads are dropped entirely, whether or not the attachment carries a
// storage reference they could be rehydrated from. Input is not mutated.
func (n *AttachmentNormalizer) NormalizeForStorage(atts []types.Attachment) []types.Attachment {
	if len(atts) == 0 {
		return atts
	}
	out := make([]types.Attachment, len(atts))
	for i, att := range atts {
		parts := make([]types.ContentPart, len(att.Content))
		for j, part := range att.Content {
			switch part.Type {
			case types.PartTypeImage:
				part.Image = sanitizePayload(part.Image)
			case types.PartTypeFile:
				part.Data = sanitizePayload(part.Data)
			}
			parts[j] = part
		}
		att.Content = parts
		out[i] = att
	}
	return out
}

// NewCache builds a signed-URL cache bound to the normalizer's signer and
// TTL. Callers scope one cache to one read cycle and share it across every
// Rehydrate call in that cycle, so a repeated object id is signed once per
// read without ever serving a URL signed on a previous read.
func (n *AttachmentNormalizer) NewCache() *SignedURLCache {
	return NewSignedURLCache(n.signer, n.ttl)
}

// Rehydrate replaces the payload of storage-backed attachments with fresh
// signed download URLs drawn from cache. All attachments are signed
// concurrently; a signing failure for one attachment is logged and that
// attachment passes through unchanged, so one bad blob never blocks the rest
// of a read. Order is preserved.
func (n *AttachmentNormalizer) Rehydrate(ctx context.Context, cache *SignedURLCache, atts []types.Attachment) []types.Attachment {
	if len(atts) == 0 {
		return atts
	}
	out := make([]types.Attachment, len(atts))
	var wg sync.WaitGroup
	for i := range atts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = n.rehydrateOne(cache, atts[i])
		}(i)
	}
	wg.Wait()
	return out
}

func (n *AttachmentNormalizer) rehydrateOne(cache *SignedURLCache, att types.Attachment) types.Attachment {
	ref, ok := att.StorageRef()
	if !ok {
		return att
	}
	url, err := cache.Get(ref.ObjectID)
	if err != nil {
		n.log.Warn("attachment rehydration failed, passing through",
			"attachment_id", att.ID,
			"object_id", ref.ObjectID,
			"error", err.Error(),
		)
		return att
	}

	parts := make([]types.ContentPart, len(att.Content))
	for j, part := range att.Content {
		switch part.Type {
		case types.PartTypeImage:
			part.Image = url
		case types.PartTypeFile:
			part.Data = url
		}
		parts[j] = part
	}
	att.Content = parts
	return att
}

// sanitizePayload removes whatever must not be stored from a single part
// payload.
func sanitizePayload(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		if i := strings.IndexByte(v, '?'); i >= 0 {
			return v[:i]
		}
		return v
	}
	// data: URI or raw base64, never stored.
	return ""
}
