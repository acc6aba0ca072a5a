package output

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	"github.com/draftsmith/draftsmith/internal/core/store"
)

// policyView flattens a policy for structured output.
type policyView struct {
	Endpoint string `json:"endpoint"`
	Requests int    `json:"requests"`
	Window   string `json:"window"`
}

func policyViews(policies []engine.Policy) []policyView {
	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, policyView{
			Endpoint: p.Endpoint,
			Requests: p.Limit.RequestsPerWindow,
			Window:   p.Limit.WindowDuration.String(),
		})
	}
	return views
}

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatPolicies renders the rate limit table as JSON.
func (f *JSONFormatter) FormatPolicies(policies []engine.Policy) (string, error) {
	return f.marshal(policyViews(policies))
}

// FormatClassification renders a classified error as JSON.
func (f *JSONFormatter) FormatClassification(classified *classify.ClassifiedError) (string, error) {
	if classified == nil {
		return "", nil
	}
	return f.marshal(classified)
}

// FormatErrorLogs renders stored client errors as JSON.
func (f *JSONFormatter) FormatErrorLogs(entries []store.ErrorLog) (string, error) {
	if entries == nil {
		entries = []store.ErrorLog{}
	}
	return f.marshal(entries)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders results as YAML using the JSON field names.
type YAMLFormatter struct{}

// FormatPolicies renders the rate limit table as YAML.
func (f *YAMLFormatter) FormatPolicies(policies []engine.Policy) (string, error) {
	return marshalYAML(policyViews(policies))
}

// FormatClassification renders a classified error as YAML.
func (f *YAMLFormatter) FormatClassification(classified *classify.ClassifiedError) (string, error) {
	if classified == nil {
		return "", nil
	}
	return marshalYAML(classified)
}

// FormatErrorLogs renders stored client errors as YAML.
func (f *YAMLFormatter) FormatErrorLogs(entries []store.ErrorLog) (string, error) {
	if entries == nil {
		entries = []store.ErrorLog{}
	}
	return marshalYAML(entries)
}

// marshalYAML round-trips through JSON so both encodings share field names.
func marshalYAML(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
