package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
)

//go:embed prompts/*.md
var embedded embed.FS

// LoadDefaults returns the prompts compiled into the binary.
func LoadDefaults() ([]*Prompt, error) {
	sub, err := fs.Sub(embedded, "prompts")
	if err != nil {
		return nil, fmt.Errorf("open embedded prompts: %w", err)
	}
	return loadFS(sub, "embedded")
}

// DefaultRegistry indexes the embedded prompts.
func DefaultRegistry() (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(prompts)
}

// loadFS parses every top-level *.md file in fsys. label prefixes the source
// name reported in parse errors.
func loadFS(fsys fs.FS, label string) ([]*Prompt, error) {
	names, err := fs.Glob(fsys, "*.md")
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	out := make([]*Prompt, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", name, err)
		}
		p, err := Load(path.Join(label, name), data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
