package services

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSigner struct {
	calls   int64
	failFor int64 // fail the first N calls
}

func (s *countingSigner) SignedDownloadURL(objectID string, expiresIn time.Duration) (string, error) {
	n := atomic.AddInt64(&s.calls, 1)
	if n <= atomic.LoadInt64(&s.failFor) {
		return "", fmt.Errorf("signer unavailable")
	}
	return "https://example.test/" + objectID + "?sig=abc", nil
}

func TestSignedURLCacheDedupesConcurrentGets(t *testing.T) {
	signer := &countingSigner{}
	cache := NewSignedURLCache(signer, 15*time.Minute)

	const workers = 16
	urls := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			urls[i], errs[i] = cache.Get("a/b/c.png")
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("get %d: %v", i, errs[i])
		}
		if urls[i] != urls[0] {
			t.Fatalf("url mismatch at %d: %q vs %q", i, urls[i], urls[0])
		}
	}
	if got := atomic.LoadInt64(&signer.calls); got != 1 {
		t.Fatalf("expected exactly 1 signing call, got %d", got)
	}
}

func TestSignedURLCacheDoesNotCacheFailures(t *testing.T) {
	signer := &countingSigner{failFor: 1}
	cache := NewSignedURLCache(signer, 15*time.Minute)

	if _, err := cache.Get("obj-1"); err == nil {
		t.Fatalf("expected first get to fail")
	}
	url, err := cache.Get("obj-1")
	if err != nil {
		t.Fatalf("second get should retry and succeed: %v", err)
	}
	if url == "" {
		t.Fatalf("empty url after retry")
	}
	if got := atomic.LoadInt64(&signer.calls); got != 2 {
		t.Fatalf("expected 2 signing calls, got %d", got)
	}

	// Third get hits the memo, no new signing call.
	if _, err := cache.Get("obj-1"); err != nil {
		t.Fatalf("third get: %v", err)
	}
	if got := atomic.LoadInt64(&signer.calls); got != 2 {
		t.Fatalf("expected memoized hit, got %d calls", got)
	}
}

func TestSignedURLCacheRejectsEmptyID(t *testing.T) {
	cache := NewSignedURLCache(&countingSigner{}, time.Minute)
	if _, err := cache.Get(""); err == nil {
		t.Fatalf("expected error for empty object id")
	}
}
