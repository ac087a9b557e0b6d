package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/chatline-backend/internal/platform/logger"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func newTestClient(t *testing.T, srv *httptest.Server) *client {
	t.Helper()
	return &client{
		log:        newTestLogger(t).With("component", "openai"),
		endpoint:   srv.URL,
		apiKey:     "test-key",
		deployment: "gpt-4o",
		apiVersion: "2024-10-21",
		httpClient: srv.Client(),
		maxRetries: 2,
	}
}

func TestStreamSSEJoinsDataLines(t *testing.T) {
	input := ": comment ignored\n" +
		"event: message\n" +
		"data: first\n" +
		"data: second\n" +
		"\n" +
		"data: lone\n" +
		"\n"

	var events []string
	var datas []string
	err := streamSSE(strings.NewReader(input), func(ev, data string) error {
		events = append(events, ev)
		datas = append(datas, data)
		return nil
	})
	if err != nil {
		t.Fatalf("streamSSE: %v", err)
	}
	if len(datas) != 2 {
		t.Fatalf("expected 2 events, got %d: %v", len(datas), datas)
	}
	if events[0] != "message" || datas[0] != "first\nsecond" {
		t.Fatalf("first event wrong: event=%q data=%q", events[0], datas[0])
	}
	if events[1] != "" || datas[1] != "lone" {
		t.Fatalf("second event wrong: event=%q data=%q", events[1], datas[1])
	}
}

func TestGenerateText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "test-key" {
			t.Errorf("missing api-key header, got %q", got)
		}
		if !strings.Contains(r.URL.Path, "/openai/deployments/gpt-4o/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.GenerateText(context.Background(), "sys", "hi")
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "hello there" {
		t.Fatalf("got %q", out)
	}
}

func TestGenerateTextRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.GenerateText(context.Background(), "", "hi")
	if err != nil {
		t.Fatalf("GenerateText after retry: %v", err)
	}
	if out != "ok" || attempts != 2 {
		t.Fatalf("out=%q attempts=%d", out, attempts)
	}
}

func TestStreamChatAssemblesDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{}}]}`,
			`[DONE]`,
		}
		for _, ch := range chunks {
			w.Write([]byte("data: " + ch + "\n\n"))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	var deltas []string
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	full, err := c.StreamChat(ctx, "sys", []Turn{{Role: "user", Content: "hi"}}, func(d string) {
		deltas = append(deltas, d)
	})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	if full != "Hello" {
		t.Fatalf("full=%q", full)
	}
	if len(deltas) != 2 || deltas[0] != "Hel" || deltas[1] != "lo" {
		t.Fatalf("deltas=%v", deltas)
	}
}
