package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/MegaGrindStone/dashboard-chat/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantLLM  llmConfig
		wantErr  bool
		wantPort string
	}{
		{
			name: "Ollama",
			yaml: `
llm:
  provider: ollama
  model: llama3
  host: http://localhost:11434
`,
			wantLLM: &ollamaConfig{
				BaseLLMConfig: BaseLLMConfig{Provider: "ollama", Model: "llama3"},
				Host:          "http://localhost:11434",
			},
			wantPort: defaultPort,
		},
		{
			name: "OpenAI compatible",
			yaml: `
port: "9090"
llm:
  provider: openai
  model: gpt-4o-mini
  baseURL: https://openrouter.ai/api/v1
  parameters:
    seed: 3
`,
			wantLLM: &openAIConfig{
				BaseLLMConfig: BaseLLMConfig{
					Provider:   "openai",
					Model:      "gpt-4o-mini",
					Parameters: services.LLMParameters{Seed: intPtr(3)},
				},
				BaseURL: "https://openrouter.ai/api/v1",
			},
			wantPort: "9090",
		},
		{
			name: "Anthropic",
			yaml: `
llm:
  provider: anthropic
  model: claude
  maxTokens: 512
`,
			wantLLM: &anthropicConfig{
				BaseLLMConfig: BaseLLMConfig{Provider: "anthropic", Model: "claude"},
				MaxTokens:     512,
			},
			wantPort: defaultPort,
		},
		{
			name:    "Missing provider",
			yaml:    "llm:\n  model: x\n",
			wantErr: true,
		},
		{
			name:    "Unknown provider",
			yaml:    "llm:\n  provider: gemini\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(strings.NewReader(tt.yaml))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLLM, cfg.LLM)
			assert.Equal(t, tt.wantPort, cfg.Port)
		})
	}
}

func TestLoadConfigTriggers(t *testing.T) {
	cfg, err := loadConfig(strings.NewReader(`
systemPrompt: You are an IELTS coach.
triggers:
  give_me_review: Review my latest test results and write a short report.
  improve_my_grades: Suggest concrete ways to improve my weakest band.
llm:
  provider: ollama
  model: llama3
`))
	require.NoError(t, err)

	assert.Equal(t, "You are an IELTS coach.", cfg.SystemPrompt)
	assert.Len(t, cfg.Triggers, 2)
	assert.Contains(t, cfg.Triggers["give_me_review"], "Review my latest")
}

func TestAnswerer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := ollamaConfig{}.answerer("", logger)
	require.Error(t, err)

	_, err = anthropicConfig{BaseLLMConfig: BaseLLMConfig{Model: "claude"}}.answerer("", logger)
	require.Error(t, err)

	a, err := openAIConfig{BaseLLMConfig: BaseLLMConfig{Model: "gpt"}, APIKey: "key"}.answerer("", logger)
	require.NoError(t, err)
	assert.NotNil(t, a)

	a, err = ollamaConfig{BaseLLMConfig: BaseLLMConfig{Model: "llama3"}, Host: "http://localhost:11434"}.answerer("", logger)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func intPtr(i int) *int {
	return &i
}
