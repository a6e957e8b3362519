package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// Config サービス全体の設定をまとめる。
type Config struct {
	Server ServerConfig
	AI     AIConfig
}

// Load 環境変数から設定を読み込む。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai}, nil
}

// ServerConfig HTTPサーバの設定。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// ":8080" や "127.0.0.1:8080" をそのまま渡せるようにする。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the downstream model collaborator. Models is the
// ordered fallback list tried on every turn; SummaryModel is the single
// model used for conversation summaries.
type AIConfig struct {
	Provider     string
	APIKey       string
	Models       []string
	SummaryModel string

	Temperature        *float64
	TopP               *float64
	MaxTokens          *int
	SummaryTemperature *float64
	SummaryMaxTokens   *int
	StreamResponse     bool

	// Ark provider credentials, kept for Volcengine deployments.
	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkBaseURL   string
	ArkRegion    string
}

// GenerationParams are the fixed sampling settings for one kind of request.
type GenerationParams struct {
	Temperature *float32
	TopP        *float32
	MaxTokens   *int
}

// Enabled 必須の認証情報が揃っているかを返す。
func (c AIConfig) Enabled() bool {
	if len(c.Models) == 0 {
		return false
	}
	if c.Provider == "ark" {
		return c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != "")
	}
	return c.APIKey != ""
}

// TurnParams returns the sampling settings for conversational replies.
func (c AIConfig) TurnParams() GenerationParams {
	return GenerationParams{
		Temperature: float32OrDefault(c.Temperature, 0.7),
		TopP:        float32OrDefault(c.TopP, 0.9),
		MaxTokens:   intOrDefault(c.MaxTokens, 500),
	}
}

// SummaryParams returns the sampling settings for transcript summaries.
// Lower temperature, more room: the reflection should be steady and complete.
func (c AIConfig) SummaryParams() GenerationParams {
	return GenerationParams{
		Temperature: float32OrDefault(c.SummaryTemperature, 0.5),
		MaxTokens:   intOrDefault(c.SummaryMaxTokens, 800),
	}
}

// NewChatModel 設定に従ってモデルインスタンスを生成する。
func (c AIConfig) NewChatModel(ctx context.Context, modelName string, params GenerationParams) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("AI credentials missing: set GEMINI_API_KEY, or ARK_API_KEY / AK+SK with AI_PROVIDER=ark")
	}

	switch c.Provider {
	case "ark":
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.ArkBaseURL,
			Region:      c.ArkRegion,
			APIKey:      c.ArkAPIKey,
			AccessKey:   c.ArkAccessKey,
			SecretKey:   c.ArkSecretKey,
			Model:       modelName,
			MaxTokens:   params.MaxTokens,
			Temperature: params.Temperature,
			TopP:        params.TopP,
		})
	case "", "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: c.APIKey})
		if err != nil {
			return nil, fmt.Errorf("create genai client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:         client,
			Model:          modelName,
			MaxTokens:      params.MaxTokens,
			Temperature:    params.Temperature,
			TopP:           params.TopP,
			SafetySettings: counselingSafetySettings(),
		})
	default:
		return nil, fmt.Errorf("invalid AI_PROVIDER: %q", c.Provider)
	}
}

// counselingSafetySettings disables categorical blocking across the board.
// Counseling turns legitimately mention self-harm, harassment and the rest;
// a category block would censor exactly the messages that matter most.
func counselingSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  category,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	summaryTemperature, err := parseOptionalFloatEnv("AI_SUMMARY_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	summaryMaxTokens, err := parseOptionalIntEnv("AI_SUMMARY_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		Provider:           strings.TrimSpace(os.Getenv("AI_PROVIDER")),
		APIKey:             strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Models:             parseModelList(os.Getenv("AI_MODELS")),
		SummaryModel:       getEnvOrDefault("AI_SUMMARY_MODEL", "gemini-2.5-flash-lite"),
		Temperature:        temperature,
		TopP:               topP,
		MaxTokens:          maxTokens,
		SummaryTemperature: summaryTemperature,
		SummaryMaxTokens:   summaryMaxTokens,
		StreamResponse:     stream,
		ArkAPIKey:          strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:       strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:       strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkBaseURL:         getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:          getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

// parseModelList splits a comma-separated model list, falling back to the
// free-tier Gemini cascade: highest throughput first, stable model last.
func parseModelList(raw string) []string {
	var models []string
	for _, part := range strings.Split(raw, ",") {
		if name := strings.TrimSpace(part); name != "" {
			models = append(models, name)
		}
	}
	if len(models) == 0 {
		return []string{"gemini-2.5-flash-lite", "gemini-2.5-flash", "gemini-1.5-flash"}
	}
	return models
}

func float32OrDefault(val *float64, fallback float32) *float32 {
	result := fallback
	if val != nil {
		result = float32(*val)
	}
	return &result
}

func intOrDefault(val *int, fallback int) *int {
	result := fallback
	if val != nil {
		result = *val
	}
	return &result
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
