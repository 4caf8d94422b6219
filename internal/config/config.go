package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/zhouzirui/aura/backend/internal/service/ai/huggingface"
)

// Provider names accepted in LLM_PROVIDER.
const (
	ProviderGemini      = "gemini"
	ProviderOpenAI      = "openai"
	ProviderArk         = "ark"
	ProviderHuggingFace = "huggingface"
)

// providerAliases maps alternate LLM_PROVIDER spellings to a canonical name.
var providerAliases = map[string]string{
	"openai_compatible": ProviderOpenAI,
}

// STT provider names accepted in STT_PROVIDER.
const (
	STTProviderHume       = "hume"
	STTProviderVolcengine = "volcengine"
)

// Config aggregates every setting, read once at process start.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	LLM    LLMConfig
	Speech SpeechConfig
	Admin  AdminConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	llm, err := loadLLMConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log:    loadLogConfig(),
		LLM:    llm,
		Speech: speech,
		Admin:  AdminConfig{Key: strings.TrimSpace(os.Getenv("ADMIN_KEY"))},
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr      string
	StaticDir string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	staticDir := getEnvOrDefault("STATIC_DIR", "static")

	if strings.Contains(port, ":") {
		// accept ":8000" or "127.0.0.1:8000"
		return ServerConfig{Addr: port, StaticDir: staticDir}, nil
	}

	if _, err := strconv.Atoi(port); err != nil {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, StaticDir: staticDir}, nil
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		Format: strings.ToLower(getEnvOrDefault("LOG_FORMAT", "console")),
		File:   strings.TrimSpace(os.Getenv("LOG_FILE")),
	}
}

// AdminConfig holds the shared admin secret. Empty means insecure dev mode.
type AdminConfig struct {
	Key string
}

// LLMConfig describes the language-model collaborator.
type LLMConfig struct {
	Provider          string
	APIKey            string
	APIURL            string
	Model             string
	SystemInstruction string
	Temperature       float64
	TopP              float64
	MaxTokens         int
	Timeout           time.Duration

	// Ark only.
	AccessKey string
	SecretKey string
	Region    string
}

// Enabled reports whether enough credentials exist to build a chat model.
// OpenAI-compatible local servers (Ollama, vLLM) and Hugging Face
// text-generation servers need no key.
func (c LLMConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	switch c.Provider {
	case ProviderHuggingFace:
		return true
	case ProviderOpenAI:
		return c.APIKey != "" || c.APIURL != ""
	case ProviderArk:
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	default:
		return c.APIKey != ""
	}
}

// NewChatModel builds the eino chat model for the configured provider.
func (c LLMConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s credentials or model name missing", c.Provider)
	}

	temperature := float32(c.Temperature)
	topP := float32(c.TopP)
	maxTokens := c.MaxTokens

	switch c.Provider {
	case ProviderArk:
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.APIURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	case ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      c.APIKey,
			BaseURL:     c.APIURL,
			Model:       c.Model,
			Timeout:     c.Timeout,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	case ProviderHuggingFace:
		return huggingface.NewChatModel(ctx, &huggingface.Config{
			APIKey:      c.APIKey,
			BaseURL:     c.APIURL,
			Model:       c.Model,
			Temperature: &temperature,
			MaxTokens:   &maxTokens,
			Timeout:     c.Timeout,
		})
	case ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       c.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			TopP:        &topP,
		})
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", c.Provider)
	}
}

func loadLLMConfig() (LLMConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGemini))
	if canonical, ok := providerAliases[provider]; ok {
		provider = canonical
	}
	switch provider {
	case ProviderGemini, ProviderOpenAI, ProviderArk, ProviderHuggingFace:
	default:
		return LLMConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature, err := parseFloatEnv("LLM_TEMPERATURE", 0.7)
	if err != nil {
		return LLMConfig{}, err
	}

	topP, err := parseFloatEnv("LLM_TOP_P", 0.95)
	if err != nil {
		return LLMConfig{}, err
	}

	maxTokens := 1024
	if override, err := parseOptionalIntEnv("LLM_MAX_TOKENS"); err != nil {
		return LLMConfig{}, err
	} else if override != nil && *override > 0 {
		maxTokens = *override
	}

	timeout, err := parseDurationEnv("LLM_TIMEOUT", 60*time.Second)
	if err != nil {
		return LLMConfig{}, err
	}

	apiKey := firstSecret("LLM_API_KEY", "GOOGLE_ADK_API_KEY")
	if provider == ProviderArk && apiKey == "" {
		apiKey = firstSecret("ARK_API_KEY")
	}

	return LLMConfig{
		Provider:          provider,
		APIKey:            apiKey,
		APIURL:            firstEnv(defaultLLMURL(provider), "LLM_API_URL", "GOOGLE_ADK_API_URL"),
		Model:             firstEnv(defaultLLMModel(provider), "LLM_MODEL_NAME", "GOOGLE_ADK_MODEL_NAME"),
		SystemInstruction: strings.TrimSpace(os.Getenv("LLM_SYSTEM_INSTRUCTION")),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
		Timeout:           timeout,
		AccessKey:         firstSecret("ARK_ACCESS_KEY"),
		SecretKey:         firstSecret("ARK_SECRET_KEY"),
		Region:            getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

func defaultLLMURL(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "http://localhost:11434/v1"
	case ProviderArk:
		return "https://ark.cn-beijing.volces.com/api/v3"
	case ProviderHuggingFace:
		return huggingface.DefaultBaseURL
	default:
		return ""
	}
}

func defaultLLMModel(provider string) string {
	if provider == ProviderGemini {
		return "gemini-2.5-flash-lite"
	}
	return ""
}

// SpeechConfig describes the speech-to-text collaborator.
type SpeechConfig struct {
	Provider string
	Timeout  time.Duration
	Language string

	HumeAPIKey string
	HumeAPIURL string

	AppID       string
	AccessToken string
	ResourceID  string
}

// Enabled reports whether the selected provider has credentials.
func (c SpeechConfig) Enabled() bool {
	if c.Provider == STTProviderVolcengine {
		return c.AppID != "" && c.AccessToken != ""
	}
	return c.HumeAPIKey != ""
}

func loadSpeechConfig() (SpeechConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("STT_PROVIDER", STTProviderHume))
	if provider != STTProviderHume && provider != STTProviderVolcengine {
		return SpeechConfig{}, fmt.Errorf("invalid STT_PROVIDER value %q", provider)
	}

	timeout, err := parseDurationEnv("SPEECH_TIMEOUT", 30*time.Second)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		Provider:    provider,
		Timeout:     timeout,
		Language:    getEnvOrDefault("SPEECH_ASR_LANGUAGE", "en-US"),
		HumeAPIKey:  firstSecret("HUME_API_KEY"),
		HumeAPIURL:  strings.TrimRight(getEnvOrDefault("HUME_API_URL", "https://api.hume.ai"), "/"),
		AppID:       strings.TrimSpace(os.Getenv("SPEECH_APP_ID")),
		AccessToken: firstSecret("SPEECH_ACCESS_TOKEN", "SPEECH_API_KEY"),
		ResourceID:  getEnvOrDefault("SPEECH_RESOURCE_ID", "volc.bigasr.sauc.duration"),
	}, nil
}

// MaskSecret renders a key for logs as "abcd...wxyz".
func MaskSecret(key string) string {
	switch {
	case key == "":
		return "NOT_SET"
	case len(key) <= 8:
		return "***"
	default:
		return key[:4] + "..." + key[len(key)-4:]
	}
}

// isPlaceholder treats the values shipped in .env.example as unset.
func isPlaceholder(value string) bool {
	return strings.HasPrefix(value, "your_") && strings.HasSuffix(value, "_here")
}

func firstSecret(keys ...string) string {
	for _, key := range keys {
		value := strings.TrimSpace(os.Getenv(key))
		if value != "" && !isPlaceholder(value) {
			return value
		}
	}
	return ""
}

func firstEnv(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return defaultValue
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
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

// parseDurationEnv accepts Go durations ("45s") or plain seconds ("45").
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}
