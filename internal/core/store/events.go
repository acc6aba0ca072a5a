package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalyticsEvent is a sanitized client analytics record.
type AnalyticsEvent struct {
	ID        string            `json:"id"`
	Event     string            `json:"event"`
	Page      string            `json:"page,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	ClientKey string            `json:"-"`
	RequestID string            `json:"request_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ErrorLog is a sanitized client-reported error.
type ErrorLog struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	Stack     string    `json:"stack,omitempty"`
	URL       string    `json:"url,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	ClientKey string    `json:"-"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LogAnalyticsEvent persists event and returns its id.
func (s *Store) LogAnalyticsEvent(ctx context.Context, event AnalyticsEvent) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if strings.TrimSpace(event.Event) == "" {
		return "", errors.New("event name is required")
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return "", fmt.Errorf("encode analytics metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO analytics_events (id, event, page, metadata, client_key, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Event, nullString(event.Page), metadata, event.ClientKey,
		nullString(event.RequestID), event.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert analytics event: %w", err)
	}
	return event.ID, nil
}

// LogError persists entry and returns its id.
func (s *Store) LogError(ctx context.Context, entry ErrorLog) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if strings.TrimSpace(entry.Message) == "" {
		return "", errors.New("error message is required")
	}

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO error_logs (id, message, code, stack, url, user_agent, client_key, request_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Message, nullString(entry.Code), nullString(entry.Stack),
		nullString(entry.URL), nullString(entry.UserAgent), entry.ClientKey,
		nullString(entry.RequestID), entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return "", fmt.Errorf("insert error log: %w", err)
	}
	return entry.ID, nil
}

// RecentErrors returns up to limit error logs, newest first.
func (s *Store) RecentErrors(ctx context.Context, limit int) ([]ErrorLog, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, message, code, stack, url, user_agent, client_key, request_id, created_at
		FROM error_logs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query error logs: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var logs []ErrorLog
	for rows.Next() {
		var (
			entry                                  ErrorLog
			code, stack, pageURL, userAgent, reqID sql.NullString
			createdAt                              int64
		)
		if err := rows.Scan(&entry.ID, &entry.Message, &code, &stack, &pageURL, &userAgent,
			&entry.ClientKey, &reqID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		entry.Code = code.String
		entry.Stack = stack.String
		entry.URL = pageURL.String
		entry.UserAgent = userAgent.String
		entry.RequestID = reqID.String
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read error logs: %w", err)
	}
	return logs, nil
}

// CountAnalyticsEvents returns the number of stored events named event, or
// all events when event is empty.
func (s *Store) CountAnalyticsEvents(ctx context.Context, event string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	var (
		count int
		err   error
	)
	if event == "" {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analytics_events`).Scan(&count)
	} else {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM analytics_events WHERE event = ?`, event).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count analytics events: %w", err)
	}
	return count, nil
}

// Purge deletes analytics events and error logs created before cutoff.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	var total int64
	for _, table := range []string{"analytics_events", "error_logs"} {
		res, err := s.DB.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE created_at < ?", table), cutoff.UnixMilli())
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", table, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
