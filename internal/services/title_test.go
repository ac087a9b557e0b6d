package services

import (
	"context"
	"fmt"
	"testing"

	types "github.com/yungbote/chatline-backend/internal/domain/chat"
	"github.com/yungbote/chatline-backend/internal/platform/logger"
	"github.com/yungbote/chatline-backend/internal/platform/openai"
)

type fakeLLM struct {
	reply    string
	err      error
	deltas   []string
	lastUser string
}

func (f *fakeLLM) GenerateText(_ context.Context, _ string, user string) (string, error) {
	f.lastUser = user
	return f.reply, f.err
}

func (f *fakeLLM) StreamChat(_ context.Context, _ string, _ []openai.Turn, onDelta func(string)) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	full := ""
	for _, d := range f.deltas {
		full += d
		if onDelta != nil {
			onDelta(d)
		}
	}
	return full, nil
}

func newTitleFixture(t *testing.T, llm *fakeLLM) (TitleService, ChatService) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	chat, _, _, _ := newChatFixture(t)
	return NewTitleService(log, llm, chat), chat
}

func TestGenerateTitleFromSuppliedMessages(t *testing.T) {
	llm := &fakeLLM{reply: "\"Tax Filing Questions\"\nextra line ignored"}
	titles, chat := newTitleFixture(t, llm)

	th, err := chat.CreateThread(context.Background(), ThreadInput{})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}

	got, err := titles.GenerateTitle(context.Background(), th.ID, []openai.Turn{
		{Role: "user", Content: "how do I file my taxes?"},
	})
	if err != nil {
		t.Fatalf("generate title: %v", err)
	}
	if got.Title != "Tax Filing Questions" {
		t.Fatalf("title not cleaned: %q", got.Title)
	}
	if llm.lastUser == "" || llm.lastUser == "user: " {
		t.Fatalf("transcript not built from supplied turns: %q", llm.lastUser)
	}
}

func TestGenerateTitleFallsBackToStoredHistory(t *testing.T) {
	llm := &fakeLLM{reply: "Stored History Title"}
	titles, chat := newTitleFixture(t, llm)

	th, _ := chat.CreateThread(context.Background(), ThreadInput{})
	if _, err := chat.AppendMessage(context.Background(), th.ID, MessageInput{
		Role:    types.RoleUser,
		Content: []byte(`"tell me about turtles"`),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := titles.GenerateTitle(context.Background(), th.ID, nil)
	if err != nil {
		t.Fatalf("generate title: %v", err)
	}
	if got.Title != "Stored History Title" {
		t.Fatalf("got %q", got.Title)
	}
}

func TestGenerateTitleEmptyThreadRejected(t *testing.T) {
	llm := &fakeLLM{reply: "should not be called"}
	titles, chat := newTitleFixture(t, llm)
	th, _ := chat.CreateThread(context.Background(), ThreadInput{})
	if _, err := titles.GenerateTitle(context.Background(), th.ID, nil); err == nil {
		t.Fatalf("expected error for thread with no text content")
	}
}

func TestGenerateTitleLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("model unavailable")}
	titles, chat := newTitleFixture(t, llm)
	th, _ := chat.CreateThread(context.Background(), ThreadInput{})
	_, err := titles.GenerateTitle(context.Background(), th.ID, []openai.Turn{{Role: "user", Content: "hi"}})
	if err == nil {
		t.Fatalf("expected error when model fails")
	}
	got, gErr := chat.GetThread(context.Background(), th.ID)
	if gErr != nil {
		t.Fatalf("get thread: %v", gErr)
	}
	if got.Title != types.DefaultThreadTitle {
		t.Fatalf("title changed despite failure: %q", got.Title)
	}
}

func TestCleanTitle(t *testing.T) {
	cases := []struct{ in, want string }{
		{"\"Quoted\"", "Quoted"},
		{"  spaced  ", "spaced"},
		{"first\nsecond", "first"},
		{"'single quoted'", "single quoted"},
		{"unchanged title", "unchanged title"},
	}
	for _, tc := range cases {
		if got := cleanTitle(tc.in); got != tc.want {
			t.Fatalf("cleanTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
