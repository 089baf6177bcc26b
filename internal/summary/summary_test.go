package summary

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/inletd/inlet/pkg/message"
)

func msg(sender message.Sender, text string) *message.InboundMessage {
	return &message.InboundMessage{
		ID:      "m-" + text,
		Channel: "telegram",
		Sender:  sender,
		Chat:    message.Chat{ID: "chat-1", Type: message.ChatDM},
		Text:    text,
	}
}

func TestTruncator_RendersTranscript(t *testing.T) {
	tr := NewTruncator(0)
	got, err := tr.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{DisplayName: "Alice"}, "deploy is red"),
		msg(message.Sender{DisplayName: "Bob"}, "rolling back"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Alice: deploy is red\nBob: rolling back"
	if got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}
}

func TestTruncator_SenderFallbacks(t *testing.T) {
	tr := NewTruncator(0)
	got, err := tr.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{DisplayName: "Alice", Username: "alice42"}, "a"),
		msg(message.Sender{Username: "bob7"}, "b"),
		msg(message.Sender{ID: "u-3"}, "c"),
		msg(message.Sender{}, "d"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Alice: a\nbob7: b\nu-3: c\nd"
	if got != want {
		t.Errorf("digest = %q, want %q", got, want)
	}
}

func TestTruncator_ClipsWithEllipsis(t *testing.T) {
	tr := NewTruncator(12)
	got, err := tr.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{Username: "alice"}, strings.Repeat("x", 50)),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utf8.RuneCountInString(got) != 12 {
		t.Errorf("clipped digest is %d runes, want 12", utf8.RuneCountInString(got))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("clipped digest should end with ellipsis: %q", got)
	}
}

func TestTruncator_ShortInputUntouched(t *testing.T) {
	tr := NewTruncator(100)
	got, err := tr.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{Username: "alice"}, "short"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "alice: short" {
		t.Errorf("digest = %q", got)
	}
}

func TestAnthropic_Summarize(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "Alice reported a red deploy; Bob rolled back."}],
			"model": "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	got, err := a.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{Username: "alice"}, "deploy is red"),
		msg(message.Sender{Username: "bob"}, "rolling back"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Alice reported a red deploy; Bob rolled back." {
		t.Errorf("digest = %q", got)
	}

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(gotBody, &req); err != nil {
		t.Fatalf("decode request body: %v", err)
	}
	if req.Model != "claude-3-5-haiku-latest" {
		t.Errorf("model = %q, want default", req.Model)
	}
	if len(req.Messages) != 1 || len(req.Messages[0].Content) != 1 {
		t.Fatalf("unexpected request shape: %s", gotBody)
	}
	if !strings.Contains(req.Messages[0].Content[0].Text, "alice: deploy is red") {
		t.Errorf("prompt should carry the transcript: %q", req.Messages[0].Content[0].Text)
	}
}

func TestAnthropic_SummarizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`))
	}))
	defer srv.Close()

	a := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	_, err := a.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{Username: "alice"}, "hello"),
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "anthropic request") {
		t.Errorf("error should identify the request: %v", err)
	}
}

func TestAnthropic_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"content": [],
			"model": "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 0}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	_, err := a.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{Username: "alice"}, "hello"),
	})
	if err == nil {
		t.Fatal("expected error for empty response")
	}
	if !strings.Contains(err.Error(), "empty response") {
		t.Errorf("error should mention empty response: %v", err)
	}
}

func TestAnthropic_ClipsLongDigest(t *testing.T) {
	long := strings.Repeat("w ", 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"content": [{"type": "text", "text": "` + long + `"}],
			"model": "claude-3-5-haiku-latest",
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 400}
		}`))
	}))
	defer srv.Close()

	a := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL, MaxChars: 40}, nil)

	got, err := a.Summarize(context.Background(), []*message.InboundMessage{
		msg(message.Sender{Username: "alice"}, "hello"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if utf8.RuneCountInString(got) != 40 {
		t.Errorf("digest is %d runes, want clipped to 40", utf8.RuneCountInString(got))
	}
}

func TestAnthropic_NoMessagesNoCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected for an empty buffer")
	}))
	defer srv.Close()

	a := NewAnthropic(Config{APIKey: "test-key", BaseURL: srv.URL}, nil)

	got, err := a.Summarize(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("digest = %q, want empty", got)
	}
}
