package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/inletd/inlet/internal/queue"
	"github.com/inletd/inlet/pkg/message"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// recordingProcessor is a queue.Processor that records every run it
// receives.
type recordingProcessor struct {
	mu   sync.Mutex
	runs []queue.Run
}

func (p *recordingProcessor) Process(_ context.Context, run queue.Run) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs = append(p.runs, run)
	return nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.runs)
}

// newTestController builds a started controller backed by a recording
// processor. The long debounce keeps messages buffered so tests observe
// queue state instead of racing flushes.
func newTestController(t *testing.T) (*queue.Controller, *recordingProcessor) {
	t.Helper()

	proc := &recordingProcessor{}
	mode := queue.ModeCollect
	policy := queue.DropOld
	debounce := time.Minute
	capacity := 20

	ctrl, err := queue.New(queue.Config{
		Processor: proc,
		Resolver: queue.NewResolver(queue.Inline{
			Mode:       &mode,
			DropPolicy: &policy,
			Debounce:   &debounce,
			Cap:        &capacity,
		}, nil),
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("queue.New: %v", err)
	}

	ctrl.Start(context.Background())
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = ctrl.Stop(stopCtx)
	})

	return ctrl, proc
}

// newTestGateway builds an unstarted gateway around a fresh controller.
func newTestGateway(t *testing.T, cfg Config, deps Deps) *Gateway {
	t.Helper()

	if deps.Controller == nil {
		deps.Controller, _ = newTestController(t)
	}
	if deps.Logger == nil {
		deps.Logger = testLogger()
	}

	g, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

// startGateway binds a test gateway to a free port and returns its base
// URL. The server stops with the test.
func startGateway(t *testing.T, g *Gateway) string {
	t.Helper()

	if err := g.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		_ = g.Stop(context.Background())
	})
	return "http://" + g.config.Bind
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// doGet makes a GET request with context.
func doGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// doGetWithBearer makes a GET request with a bearer token.
func doGetWithBearer(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// inboundPayload builds a JSON body for the inbound endpoint.
func inboundPayload(t *testing.T, chatID, text string) []byte {
	t.Helper()
	body, err := json.Marshal(message.InboundMessage{
		Sender: message.Sender{ID: "user-1"},
		Chat:   message.Chat{ID: chatID, Type: message.ChatDM},
		Text:   text,
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

// signBody computes the X-Signature-256 header value for a body.
func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
