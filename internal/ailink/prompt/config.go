package prompt

// Config describes a prompt definition loaded from YAML.
type Config struct {
	Slug           string           `yaml:"slug" json:"slug"`
	Name           string           `yaml:"name,omitempty" json:"name,omitempty"`
	Description    string           `yaml:"description,omitempty" json:"description,omitempty"`
	Version        string           `yaml:"version,omitempty" json:"version,omitempty"`
	Input          InputSpec        `yaml:"input,omitempty" json:"input,omitempty"`
	SystemTemplate string           `yaml:"system_template,omitempty" json:"system_template,omitempty"`
	UserTemplate   string           `yaml:"user_template,omitempty" json:"user_template,omitempty"`
	Generation     GenerationConfig `yaml:"generation,omitempty" json:"generation,omitempty"`
}

// InputSpec defines prompt input requirements.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
}

// GenerationConfig carries sampling hints passed to the provider.
type GenerationConfig struct {
	Temperature     *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	MaxOutputTokens *int     `yaml:"max_output_tokens,omitempty" json:"max_output_tokens,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string
}
