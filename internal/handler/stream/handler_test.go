package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mitolab/soudan/backend/internal/analysis/triage"
	"github.com/mitolab/soudan/backend/internal/model/chat"
	chatservice "github.com/mitolab/soudan/backend/internal/service/chat"
	"github.com/mitolab/soudan/backend/internal/service/counsel"
)

type fakeGenerator struct {
	chunks []string
}

func (f *fakeGenerator) GenerateReply(context.Context, string, int, triage.Needs, []chat.Message) string {
	return strings.Join(f.chunks, "")
}

func (f *fakeGenerator) StreamReply(_ context.Context, _ string, _ int, _ triage.Needs, _ []chat.Message, onDelta func(string) error) string {
	for _, chunk := range f.chunks {
		if onDelta != nil {
			if err := onDelta(chunk); err != nil {
				break
			}
		}
	}
	return strings.Join(f.chunks, "")
}

func (f *fakeGenerator) Summarize(context.Context, []chat.Message) string {
	return "まとめ"
}

func setup(t *testing.T) (*Handler, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService()
	counselSvc := counsel.NewService(chatSvc, &fakeGenerator{
		chunks: []string{"お話を", "聞かせてくれて", "ありがとうございます。"},
	})
	return New(counselSvc), chatSvc
}

// decodeEvents splits the recorded SSE body into its data payloads.
func decodeEvents(t *testing.T, body string) []StreamResponse {
	t.Helper()

	var events []StreamResponse
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		payload := strings.TrimPrefix(block, "data: ")
		var event StreamResponse
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			t.Fatalf("decode SSE payload %q: %v", payload, err)
		}
		events = append(events, event)
	}
	return events
}

func TestStreamTurnEventSequence(t *testing.T) {
	handler, chatSvc := setup(t)
	ctx := context.Background()

	session, err := chatSvc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	resp := httptest.NewRecorder()
	if err := handler.HandleStreamRequest(ctx, resp, session.ID, "勉強のことで悩みがあります"); err != nil {
		t.Fatalf("HandleStreamRequest err: %v", err)
	}

	if ct := resp.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected Content-Type: %q", ct)
	}

	events := decodeEvents(t, resp.Body.String())
	var order []string
	var streamed string
	var full string
	var triagePayload json.RawMessage
	for _, event := range events {
		order = append(order, event.Event)
		switch event.Event {
		case "delta":
			streamed += event.Content
		case "message":
			full = event.Content
		case "triage":
			triagePayload = event.Triage
		}
	}

	want := []string{"start", "delta", "delta", "delta", "message", "triage", "end"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected event order: %v", order)
	}

	if streamed != full {
		t.Fatalf("deltas assemble to %q but message carries %q", streamed, full)
	}
	if full != "お話を聞かせてくれてありがとうございます。" {
		t.Fatalf("unexpected reply: %q", full)
	}
	if !events[len(events)-1].Finished {
		t.Fatal("end event must be marked finished")
	}

	var badge struct {
		RiskLevel  int      `json:"riskLevel"`
		NeedsLabel string   `json:"needsLabel"`
		Keywords   []string `json:"keywords"`
	}
	if err := json.Unmarshal(triagePayload, &badge); err != nil {
		t.Fatalf("decode triage payload: %v", err)
	}
	if badge.RiskLevel != 2 {
		t.Fatalf("expected risk level 2, got %d", badge.RiskLevel)
	}
	if len(badge.Keywords) == 0 {
		t.Fatal("triage payload missing keywords")
	}
}

func TestStreamTurnUnknownSessionEmitsError(t *testing.T) {
	handler, _ := setup(t)

	resp := httptest.NewRecorder()
	err := handler.HandleStreamRequest(context.Background(), resp, "missing", "こんにちは")
	if err == nil {
		t.Fatal("expected error for unknown session")
	}

	events := decodeEvents(t, resp.Body.String())
	last := events[len(events)-1]
	if last.Event != "error" || last.Error == "" {
		t.Fatalf("expected terminal error event, got %+v", last)
	}
}
