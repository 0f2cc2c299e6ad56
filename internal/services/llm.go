package services

// LLMParameters holds the optional sampling parameters shared by every provider. A nil field keeps
// the provider default.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	Stop        []string `yaml:"stop"`
	Seed        *int     `yaml:"seed"`
}
