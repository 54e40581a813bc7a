package services

// LLMParameters holds optional sampling parameters forwarded to the model
// provider. Nil fields are left at the provider's defaults.
type LLMParameters struct {
	Temperature      *float32       `yaml:"temperature,omitempty"`
	TopP             *float32       `yaml:"topP,omitempty"`
	Stop             []string       `yaml:"stop,omitempty"`
	PresencePenalty  *float32       `yaml:"presencePenalty,omitempty"`
	FrequencyPenalty *float32       `yaml:"frequencyPenalty,omitempty"`
	Seed             *int           `yaml:"seed,omitempty"`
	LogitBias        map[string]int `yaml:"logitBias,omitempty"`
	MaxTokens        *int           `yaml:"maxTokens,omitempty"`
}
