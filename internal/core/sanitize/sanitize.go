// Package sanitize turns untrusted text into inert plain text.
package sanitize

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxEmailContentLength bounds raw email content, measured in characters
// before sanitization.
const MaxEmailContentLength = 10000

var (
	// ErrEmptyContent is returned for content that is blank before or after
	// sanitization.
	ErrEmptyContent = errors.New("content is empty")
	// ErrContentTooLong is returned when raw content exceeds MaxEmailContentLength.
	ErrContentTooLong = fmt.Errorf("content exceeds %d characters", MaxEmailContentLength)
)

var (
	strictPolicy = bluemonday.StrictPolicy()

	dangerousSchemePattern = regexp.MustCompile(`(?i)(?:javascript|vbscript|\bdata)\s*:[^\s"'<>]*`)
	eventHandlerPattern    = regexp.MustCompile(`(?i)\bon[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)

	bracketStripper = strings.NewReplacer("<", "", ">", "")
)

// Text returns raw with all markup, dangerous URL schemes, inline event
// handlers and stray angle brackets removed, and whitespace collapsed.
// Text is idempotent: Text(Text(x)) == Text(x).
func Text(raw string) string {
	if raw == "" {
		return ""
	}

	// After the first pass every change only deletes text or decodes an
	// entity, so the string shrinks until it settles.
	current := raw
	for {
		next := pass(current)
		if next == current {
			return next
		}
		current = next
	}
}

func pass(value string) string {
	value = decodeEntities(value)
	value = strictPolicy.Sanitize(value)
	value = html.UnescapeString(value)
	value = dangerousSchemePattern.ReplaceAllString(value, "")
	value = eventHandlerPattern.ReplaceAllString(value, "")
	value = bracketStripper.Replace(value)
	return strings.Join(strings.Fields(value), " ")
}

// decodeEntities unescapes until no entity is left, so markup hidden under
// any depth of encoding is stripped as markup.
func decodeEntities(value string) string {
	for strings.IndexByte(value, '&') >= 0 {
		next := html.UnescapeString(value)
		if next == value {
			break
		}
		value = next
	}
	return value
}

// EmailContent validates and sanitizes user-supplied content destined for a
// generation prompt.
func EmailContent(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyContent
	}
	if utf8.RuneCountInString(raw) > MaxEmailContentLength {
		return "", ErrContentTooLong
	}

	clean := Text(raw)
	if clean == "" {
		return "", ErrEmptyContent
	}
	return clean, nil
}

// Optional sanitizes a field that may be omitted. Blank input stays blank.
func Optional(raw string, limit int) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	if limit > 0 && utf8.RuneCountInString(raw) > limit {
		return "", &LengthError{Limit: limit}
	}
	return Text(raw), nil
}

// LengthError reports an optional field longer than its limit. It matches
// ErrContentTooLong under errors.Is.
type LengthError struct {
	Limit int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("content exceeds %d characters", e.Limit)
}

// Is reports whether target is ErrContentTooLong.
func (e *LengthError) Is(target error) bool {
	return target == ErrContentTooLong
}
