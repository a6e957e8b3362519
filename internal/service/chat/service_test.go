package chat_test

import (
	"context"
	"testing"

	model "github.com/mitolab/soudan/backend/internal/model/chat"
	chat "github.com/mitolab/soudan/backend/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.RiskLevel != 0 {
		t.Fatalf("new session should start at risk 0, got %d", got.RiskLevel)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()
	if _, err := svc.GetSession(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for missing session")
	}
}

func TestRaiseRiskIsMonotonic(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	if level, _ := svc.RaiseRisk(ctx, session.ID, 2); level != 2 {
		t.Fatalf("expected level 2, got %d", level)
	}
	// A calmer turn must not lower the running level.
	if level, _ := svc.RaiseRisk(ctx, session.ID, 1); level != 2 {
		t.Fatalf("expected level to stay at 2, got %d", level)
	}
	if level, _ := svc.RaiseRisk(ctx, session.ID, 4); level != 4 {
		t.Fatalf("expected level 4, got %d", level)
	}
}

func TestResetClearsTranscriptAndRiskKeepsFeedback(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	if _, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID, Role: model.RoleUser, Content: "辛い"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}
	if _, err := svc.RaiseRisk(ctx, session.ID, 3); err != nil {
		t.Fatalf("RaiseRisk err: %v", err)
	}
	if _, err := svc.RecordFeedback(ctx, model.Feedback{SessionID: session.ID, MessageIndex: 0, Rating: 4}); err != nil {
		t.Fatalf("RecordFeedback err: %v", err)
	}

	if err := svc.Reset(ctx, session.ID); err != nil {
		t.Fatalf("Reset err: %v", err)
	}

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(transcript) != 0 {
		t.Fatalf("expected empty transcript after reset, got %d messages", len(transcript))
	}

	got, _ := svc.GetSession(ctx, session.ID)
	if got.RiskLevel != 0 {
		t.Fatalf("expected risk 0 after reset, got %d", got.RiskLevel)
	}

	feedback, _ := svc.ListFeedback(ctx, session.ID)
	if len(feedback) != 1 {
		t.Fatalf("feedback log should survive reset, got %d entries", len(feedback))
	}
}

func TestRecordFeedbackValidation(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)
	if _, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID, Role: model.RoleAssistant, Content: "こんにちは"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}

	if _, err := svc.RecordFeedback(ctx, model.Feedback{SessionID: session.ID, MessageIndex: 0, Rating: 0}); err != chat.ErrInvalidRating {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if _, err := svc.RecordFeedback(ctx, model.Feedback{SessionID: session.ID, MessageIndex: 5, Rating: 3}); err != chat.ErrInvalidMessageIndex {
		t.Fatalf("expected ErrInvalidMessageIndex, got %v", err)
	}
	if _, err := svc.RecordFeedback(ctx, model.Feedback{SessionID: session.ID, MessageIndex: 0, Rating: 3}); err != nil {
		t.Fatalf("valid feedback rejected: %v", err)
	}
}

func TestTranscriptKeepsInsertionOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	contents := []string{"一つ目", "二つ目", "三つ目"}
	for _, c := range contents {
		if _, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID, Role: model.RoleUser, Content: c}); err != nil {
			t.Fatalf("SaveMessage err: %v", err)
		}
	}

	transcript, _ := svc.LoadTranscript(ctx, session.ID)
	if len(transcript) != len(contents) {
		t.Fatalf("expected %d messages, got %d", len(contents), len(transcript))
	}
	for i, c := range contents {
		if transcript[i].Content != c {
			t.Fatalf("message %d out of order: got %q want %q", i, transcript[i].Content, c)
		}
	}
}

func TestExportBundlesEverything(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx)

	if _, err := svc.SaveMessage(ctx, model.Message{SessionID: session.ID, Role: model.RoleUser, Content: "相談です"}); err != nil {
		t.Fatalf("SaveMessage err: %v", err)
	}
	if _, err := svc.RecordFeedback(ctx, model.Feedback{SessionID: session.ID, MessageIndex: 0, Rating: 5}); err != nil {
		t.Fatalf("RecordFeedback err: %v", err)
	}

	doc, err := svc.Export(ctx, session.ID)
	if err != nil {
		t.Fatalf("Export err: %v", err)
	}
	if doc.Session.ID != session.ID {
		t.Fatalf("export carries wrong session: %s", doc.Session.ID)
	}
	if len(doc.Messages) != 1 || len(doc.Feedback) != 1 {
		t.Fatalf("export incomplete: %d messages, %d feedback", len(doc.Messages), len(doc.Feedback))
	}
	if doc.ExportedAt.IsZero() {
		t.Fatal("export timestamp missing")
	}
}
