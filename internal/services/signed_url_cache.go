package services

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// URLSigner produces a time-limited download URL for a stored object.
type URLSigner interface {
	SignedDownloadURL(objectID string, expiresIn time.Duration) (string, error)
}

// SignedURLCache memoizes signed download URLs per object id and collapses
// concurrent requests for the same id into a single signing call. Failures
// are never cached, so a later call retries cleanly.
type SignedURLCache struct {
	signer URLSigner
	ttl    time.Duration

	group singleflight.Group

	mu   sync.Mutex
	urls map[string]string
}

func NewSignedURLCache(signer URLSigner, ttl time.Duration) *SignedURLCache {
	return &SignedURLCache{
		signer: signer,
		ttl:    ttl,
		urls:   make(map[string]string),
	}
}

func (c *SignedURLCache) Get(objectID string) (string, error) {
	if objectID == "" {
		return "", fmt.Errorf("missing object id")
	}

	c.mu.Lock()
	if u, ok := c.urls[objectID]; ok {
		c.mu.Unlock()
		return u, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(objectID, func() (interface{}, error) {
		u, sErr := c.signer.SignedDownloadURL(objectID, c.ttl)
		if sErr != nil {
			return nil, sErr
		}
		c.mu.Lock()
		c.urls[objectID] = u
		c.mu.Unlock()
		return u, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
