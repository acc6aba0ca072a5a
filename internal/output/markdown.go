package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	"github.com/draftsmith/draftsmith/internal/core/store"
)

// MarkdownFormatter renders results as markdown tables.
type MarkdownFormatter struct{}

// FormatPolicies renders the rate limit table as Markdown.
func (f *MarkdownFormatter) FormatPolicies(policies []engine.Policy) (string, error) {
	var sb strings.Builder
	sb.WriteString("## Rate limits\n\n")
	sb.WriteString("| Endpoint | Requests | Window |\n")
	sb.WriteString("|----------|----------|--------|\n")
	for _, p := range policies {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n",
			escapeMarkdownCell(p.Endpoint),
			p.Limit.RequestsPerWindow,
			p.Limit.WindowDuration.String(),
		))
	}
	return sb.String(), nil
}

// FormatClassification renders a classified error as Markdown.
func (f *MarkdownFormatter) FormatClassification(classified *classify.ClassifiedError) (string, error) {
	if classified == nil {
		return "", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s (HTTP %d)\n\n", classified.Code, classified.ResponseStatus()))
	sb.WriteString(escapeMarkdownCell(classified.UserMessage))
	sb.WriteString("\n\n")
	for _, action := range classified.Actions {
		marker := ""
		if action.Primary {
			marker = " **(primary)**"
		}
		sb.WriteString(fmt.Sprintf("- %s%s\n", escapeMarkdownCell(action.Label), marker))
	}
	return sb.String(), nil
}

// FormatErrorLogs renders stored client errors as Markdown.
func (f *MarkdownFormatter) FormatErrorLogs(entries []store.ErrorLog) (string, error) {
	var sb strings.Builder
	sb.WriteString("| When | Code | Message | Request |\n")
	sb.WriteString("|------|------|---------|---------|\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			e.CreatedAt.UTC().Format(time.RFC3339),
			escapeMarkdownCell(e.Code),
			escapeMarkdownCell(truncateCell(e.Message, 80)),
			escapeMarkdownCell(e.RequestID),
		))
	}
	return sb.String(), nil
}

func escapeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
