package output

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	"github.com/draftsmith/draftsmith/internal/core/store"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatPolicies renders the rate limit table.
func (f *TableFormatter) FormatPolicies(policies []engine.Policy) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Endpoint", "Requests", "Window"})

	for _, p := range policies {
		t.AppendRow(table.Row{p.Endpoint, p.Limit.RequestsPerWindow, p.Limit.WindowDuration.String()})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d policies", len(policies)), ""})

	return t.Render(), nil
}

// FormatClassification renders a classified error as a two-column table.
func (f *TableFormatter) FormatClassification(classified *classify.ClassifiedError) (string, error) {
	if classified == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Code", string(classified.Code)})
	t.AppendRow(table.Row{"Status", classified.ResponseStatus()})
	t.AppendRow(table.Row{"Retryable", classified.Retryable()})
	t.AppendRow(table.Row{"Message", classified.UserMessage})
	t.AppendRow(table.Row{"Technical", truncateCell(classified.TechnicalMessage, 80)})
	t.AppendRow(table.Row{"Actions", actionLabels(classified)})

	return t.Render(), nil
}

// FormatErrorLogs renders stored client errors, newest first.
func (f *TableFormatter) FormatErrorLogs(entries []store.ErrorLog) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"When", "Code", "Message", "URL", "Request"})

	for _, e := range entries {
		t.AppendRow(table.Row{
			e.CreatedAt.UTC().Format(time.RFC3339),
			e.Code,
			truncateCell(e.Message, 60),
			truncateCell(e.URL, 40),
			e.RequestID,
		})
	}

	return t.Render(), nil
}
