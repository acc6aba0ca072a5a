package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Load parses and validates a prompt definition from YAML bytes. The markdown
// body after the frontmatter becomes the user template when none is set.
func Load(source string, data []byte) (*Prompt, error) {
	config, body, err := parseYAMLWithFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	if strings.TrimSpace(config.UserTemplate) == "" {
		config.UserTemplate = strings.TrimSpace(body)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}

	return &Prompt{Config: config, Source: source}, nil
}

// LoadFromDir reads all prompt files (.md with YAML frontmatter) from a directory.
func LoadFromDir(dir string) ([]*Prompt, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open prompt dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompt path %s is not a directory", dir)
	}
	return loadFS(os.DirFS(dir), dir)
}

// Render fills the system and user templates with vars. Every required
// variable must be present and non-blank.
func (p *Prompt) Render(vars map[string]string) (system string, user string, err error) {
	if p == nil {
		return "", "", fmt.Errorf("prompt not configured")
	}
	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			return "", "", fmt.Errorf("prompt %s requires %s", p.Config.Slug, name)
		}
	}

	system, err = execute(p.Config.Slug+".system", p.Config.SystemTemplate, vars)
	if err != nil {
		return "", "", err
	}
	user, err = execute(p.Config.Slug+".user", p.Config.UserTemplate, vars)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(system), strings.TrimSpace(user), nil
}

func execute(name, text string, vars map[string]string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return buf.String(), nil
}

func parseYAMLWithFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", fmt.Errorf("empty prompt")
	}

	lines := bufio.NewScanner(bytes.NewReader(trimmed))
	lines.Split(bufio.ScanLines)

	var (
		frontmatter []string
		body        []string
		inFront     bool
		headerSeen  bool
	)

	for lines.Scan() {
		line := lines.Text()
		switch {
		case !headerSeen && strings.TrimSpace(line) == "---":
			headerSeen = true
			inFront = true
		case headerSeen && inFront && strings.TrimSpace(line) == "---":
			inFront = false
		default:
			if inFront {
				frontmatter = append(frontmatter, line)
			} else {
				body = append(body, line)
			}
		}
	}
	if err := lines.Err(); err != nil {
		return Config{}, "", err
	}

	var cfg Config
	source := trimmed
	if headerSeen {
		source = []byte(strings.Join(frontmatter, "\n"))
	}
	if err := yaml.Unmarshal(source, &cfg); err != nil {
		return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
	}
	if !headerSeen {
		body = nil
	}

	return cfg, strings.Join(body, "\n"), nil
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Slug) == "" {
		return fmt.Errorf("slug is required")
	}
	if strings.TrimSpace(cfg.UserTemplate) == "" {
		return fmt.Errorf("user_template is required")
	}
	if t := cfg.Generation.Temperature; t != nil && (*t < 0 || *t > 2) {
		return fmt.Errorf("generation.temperature must be between 0 and 2")
	}
	if m := cfg.Generation.MaxOutputTokens; m != nil && *m <= 0 {
		return fmt.Errorf("generation.max_output_tokens must be positive")
	}

	known := map[string]bool{}
	for _, name := range append(append([]string{}, cfg.Input.RequiredVariables...), cfg.Input.OptionalVariables...) {
		if known[name] {
			return fmt.Errorf("variable %s declared twice", name)
		}
		known[name] = true
	}
	return nil
}
