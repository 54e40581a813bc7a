package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/modkit/chatstream/internal/handlers"
	"github.com/modkit/chatstream/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	llm(logger *slog.Logger) (handlers.LLM, error)
	titleGen(logger *slog.Logger) (handlers.TitleGenerator, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port                 string    `yaml:"port"`
	SystemPrompt         string    `yaml:"systemPrompt"`
	TitleGeneratorPrompt string    `yaml:"titleGeneratorPrompt"`
	LLM                  llmConfig `yaml:"llm"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string                 `yaml:"apiKey"`
	Parameters    services.LLMParameters `yaml:"parameters"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

const (
	defaultPort         = "8987"
	defaultSystemPrompt = "You are a helpful assistant."
	defaultTitlePrompt  = "Generate a title for this conversation with only one sentence with maximum 5 words."
)

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port                 string         `yaml:"port"`
		SystemPrompt         string         `yaml:"systemPrompt"`
		TitleGeneratorPrompt string         `yaml:"titleGeneratorPrompt"`
		LLM                  map[string]any `yaml:"llm"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	c.Port = rawConfig.Port
	if c.Port == "" {
		c.Port = defaultPort
	}
	c.SystemPrompt = rawConfig.SystemPrompt
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaultSystemPrompt
	}
	c.TitleGeneratorPrompt = rawConfig.TitleGeneratorPrompt
	if c.TitleGeneratorPrompt == "" {
		c.TitleGeneratorPrompt = defaultTitlePrompt
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "openai":
		llm = &openAIConfig{}
	case "ollama":
		llm = &ollamaConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm

	return nil
}

func (o openAIConfig) newOpenAI(logger *slog.Logger) (services.OpenAI, error) {
	if o.Model == "" {
		return services.OpenAI{}, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return services.OpenAI{}, fmt.Errorf("api key is required")
	}
	return services.NewOpenAI(apiKey, o.Model, o.Parameters, logger), nil
}

func (o openAIConfig) llm(logger *slog.Logger) (handlers.LLM, error) {
	return o.newOpenAI(logger)
}

func (o openAIConfig) titleGen(logger *slog.Logger) (handlers.TitleGenerator, error) {
	return o.newOpenAI(logger)
}

func (o ollamaConfig) newOllama() (services.Ollama, error) {
	if o.Model == "" {
		return services.Ollama{}, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	return services.NewOllama(host, o.Model), nil
}

func (o ollamaConfig) llm(*slog.Logger) (handlers.LLM, error) {
	return o.newOllama()
}

func (o ollamaConfig) titleGen(*slog.Logger) (handlers.TitleGenerator, error) {
	return o.newOllama()
}
