package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mitolab/soudan/backend/internal/analysis/triage"
	"github.com/mitolab/soudan/backend/internal/config"
	"github.com/mitolab/soudan/backend/internal/model/chat"
)

// historyLimit caps how many transcript entries accompany a turn request.
// Older turns are dropped to keep token usage inside the free tier.
const historyLimit = 4

// diagnosticLimit caps how much of a raw provider error reaches the user.
const diagnosticLimit = 150

// runner is the slice of compose.Runnable the orchestrator needs.
type runner interface {
	Invoke(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.Message, error)
	Stream(ctx context.Context, input map[string]any, opts ...compose.Option) (*schema.StreamReader[*schema.Message], error)
}

// candidate is one downstream model identifier with its compiled chain.
type candidate struct {
	name string
	run  runner
}

// Service orchestrates reply generation against an ordered list of
// downstream models, and summary generation against a single designated
// model. Every failure is absorbed here: the methods return display-ready
// text, never an error.
type Service struct {
	configured bool
	candidates []candidate
	summary    candidate
	streaming  bool
}

// NewService compiles one chain per configured model. Credentials are
// required; use Unconfigured when they are absent so the rest of the service
// keeps running.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("AI configuration disabled: credentials missing")
	}

	candidates := make([]candidate, 0, len(cfg.Models))
	for _, name := range cfg.Models {
		run, err := buildTurnChain(ctx, cfg, name)
		if err != nil {
			return nil, fmt.Errorf("build chain for model %s: %w", name, err)
		}
		candidates = append(candidates, candidate{name: name, run: run})
	}

	summaryRun, err := buildSummaryChain(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build summary chain: %w", err)
	}

	return &Service{
		configured: true,
		candidates: candidates,
		summary:    candidate{name: cfg.SummaryModel, run: summaryRun},
		streaming:  cfg.StreamResponse,
	}, nil
}

// Unconfigured returns a Service that resolves every request to credential
// guidance instead of calling any model.
func Unconfigured() *Service {
	return &Service{}
}

// StreamingEnabled reports whether replies are delivered incrementally.
func (s *Service) StreamingEnabled() bool {
	return s.configured && s.streaming
}

// GenerateReply runs the fallback cascade for one turn and returns the reply
// text. When every model fails, the terminal failure is classified and
// converted to user-facing guidance; the return value is always displayable.
func (s *Service) GenerateReply(ctx context.Context, userMessage string, riskLevel int, needs triage.Needs, history []chat.Message) string {
	if !s.configured {
		return credentialsGuidance
	}

	input := buildChainInput(userMessage, riskLevel, needs, history)

	var lastErr error
	for _, c := range s.candidates {
		msg, err := c.run.Invoke(ctx, input)
		if err != nil {
			lastErr = err
			log.Printf("[ai] model %s failed, trying next: %v", c.name, err)
			continue
		}
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			lastErr = fmt.Errorf("model %s returned an empty response", c.name)
			continue
		}
		log.Printf("[ai] generated reply model=%s risk=%d needs=%s length=%d", c.name, riskLevel, needs, len(msg.Content))
		return msg.Content
	}

	return failureText(lastErr)
}

// StreamReply is GenerateReply with chunk delivery. onDelta receives each
// content fragment; a non-nil return from onDelta aborts the turn (client
// gone). The final assembled text is returned and, like GenerateReply, is
// always display-ready.
func (s *Service) StreamReply(ctx context.Context, userMessage string, riskLevel int, needs triage.Needs, history []chat.Message, onDelta func(string) error) string {
	if !s.configured {
		return credentialsGuidance
	}
	if !s.streaming {
		reply := s.GenerateReply(ctx, userMessage, riskLevel, needs, history)
		if onDelta != nil {
			_ = onDelta(reply)
		}
		return reply
	}

	input := buildChainInput(userMessage, riskLevel, needs, history)

	var lastErr error
	for _, c := range s.candidates {
		content, err := drainStream(ctx, c, input, onDelta)
		if err == nil {
			log.Printf("[ai] streamed reply model=%s risk=%d needs=%s length=%d", c.name, riskLevel, needs, len(content))
			return content
		}
		if content != "" {
			// The stream broke after chunks already reached the client;
			// keep the partial text rather than restarting on another model.
			log.Printf("[ai] model %s stream broke mid-reply, keeping partial: %v", c.name, err)
			return content
		}
		lastErr = err
		log.Printf("[ai] model %s stream failed, trying next: %v", c.name, err)
	}

	text := failureText(lastErr)
	if onDelta != nil {
		_ = onDelta(text)
	}
	return text
}

// Summarize condenses the whole transcript into a structured reflection
// using the single summary model. No fallback cascade; failures come back as
// display-ready text.
func (s *Service) Summarize(ctx context.Context, messages []chat.Message) string {
	if !s.configured {
		return credentialsGuidance
	}

	input := map[string]any{"conversation": FormatTranscript(messages)}

	msg, err := s.summary.run.Invoke(ctx, input)
	if err != nil {
		log.Printf("[ai] summary model %s failed: %v", s.summary.name, err)
		return fmt.Sprintf(summaryFailureFormat, truncateDiagnostic(err.Error()))
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return fmt.Sprintf(summaryFailureFormat, "空の応答が返されました")
	}

	log.Printf("[ai] generated summary model=%s turns=%d length=%d", s.summary.name, len(messages), len(msg.Content))
	return msg.Content
}

// FormatTranscript flattens messages into the 相談者:/AI: lines the summary
// template embeds. The whole history is included, not just the turn window.
func FormatTranscript(messages []chat.Message) string {
	var builder strings.Builder
	for _, msg := range messages {
		if msg.Role == chat.RoleUser {
			builder.WriteString("相談者: ")
		} else {
			builder.WriteString("AI: ")
		}
		builder.WriteString(msg.Content)
		builder.WriteString("\n")
	}
	return builder.String()
}

func buildTurnChain(ctx context.Context, cfg config.AIConfig, modelName string) (runner, error) {
	chatModel, err := cfg.NewChatModel(ctx, modelName, cfg.TurnParams())
	if err != nil {
		return nil, err
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	return chain.Compile(ctx)
}

func buildSummaryChain(ctx context.Context, cfg config.AIConfig) (runner, error) {
	chatModel, err := cfg.NewChatModel(ctx, cfg.SummaryModel, cfg.SummaryParams())
	if err != nil {
		return nil, err
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.UserMessage(summaryTemplate),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	return chain.Compile(ctx)
}

func buildChainInput(userMessage string, riskLevel int, needs triage.Needs, history []chat.Message) map[string]any {
	return map[string]any{
		"system":  ComposeSystemPrompt(riskLevel, needs),
		"history": buildHistoryMessages(history),
		"query":   userMessage,
	}
}

// buildHistoryMessages maps the most recent transcript entries to schema
// messages, oldest of the window first.
func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	startIdx := 0
	if len(messages) > historyLimit {
		startIdx = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-startIdx)
	for _, msg := range messages[startIdx:] {
		switch msg.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}

	return history
}

// drainStream consumes one model's stream. It returns whatever content was
// assembled plus the receive error, so the caller can distinguish "never
// started" from "broke mid-reply".
func drainStream(ctx context.Context, c candidate, input map[string]any, onDelta func(string) error) (string, error) {
	stream, err := c.run.Stream(ctx, input)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return builder.String(), recvErr
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		builder.WriteString(chunk.Content)
		if onDelta != nil {
			if err := onDelta(chunk.Content); err != nil {
				return builder.String(), err
			}
		}
	}

	if builder.Len() == 0 {
		return "", fmt.Errorf("model %s streamed an empty response", c.name)
	}
	return builder.String(), nil
}

// failureText classifies a terminal generation failure into user guidance.
func failureText(err error) string {
	if err == nil {
		err = errors.New("利用可能なモデルがありません")
	}
	if isQuotaError(err) {
		return quotaGuidance
	}
	return fmt.Sprintf(genericFailureFormat, truncateDiagnostic(err.Error()))
}

// isQuotaError matches the rate-limit signatures the Gemini free tier emits.
func isQuotaError(err error) bool {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") {
		return true
	}
	return strings.Contains(strings.ToLower(msg), "quota")
}

func truncateDiagnostic(s string) string {
	runes := []rune(s)
	if len(runes) <= diagnosticLimit {
		return s
	}
	return string(runes[:diagnosticLimit])
}

const quotaGuidance = `申し訳ございません。現在、APIの利用制限に達しています。

【解決方法】
- 数分待ってから再度お試しください
- 1日の制限に達した場合は、翌日00:00（太平洋時間）にリセットされます

【無料枠の制限】
- 1分間に10-15リクエスト (RPM)
- 1日に250-1,000リクエスト (RPD)
- 1分間に250,000トークン (TPM)

【今すぐ相談したい場合】
- 学校のカウンセラー
- 保健室の先生
- いのちの電話: 0120-783-556（24時間対応）`

const genericFailureFormat = "エラーが発生しました。しばらくしてから再度お試しください。\n\nエラー詳細: %s"

const credentialsGuidance = "AI応答を生成できませんでした。APIキーが正しく設定されているか確認してください。"

const summaryFailureFormat = "まとめの生成中にエラーが発生しました: %s"

const summaryTemplate = `以下は学生相談システムでの会話履歴です。この会話を振り返り、以下の観点でまとめてください:

【会話履歴】
{conversation}

【まとめる内容】
1. 相談の主なテーマ（2-3行）
2. 相談者の気持ちや状況（2-3行）
3. 話し合った内容のポイント（3-5項目、箇条書き）
4. 今後に向けてのヒント（2-3行）

温かく、前向きなトーンでまとめてください。専門用語は避け、相談者が自分の状況を客観的に振り返れるようにしてください。`
