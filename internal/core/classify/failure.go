package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/draftsmith/draftsmith/internal/ailink/driver"
	"github.com/draftsmith/draftsmith/internal/core/identity"
)

// Kind identifies the structural shape of a failure.
type Kind string

const (
	KindNetwork       Kind = "network"
	KindTimeout       Kind = "timeout"
	KindHTTP          Kind = "http"
	KindProvider      Kind = "provider"
	KindSafety        Kind = "safety"
	KindEmptyResponse Kind = "empty_response"
	KindKey           Kind = "api_key"
	KindInput         Kind = "input"
	KindUnstructured  Kind = "unstructured"
)

// maxBodyMessage bounds how much of an upstream body is kept as the message.
const maxBodyMessage = 500

// Failure is the normalized view of anything that can go wrong in a call.
type Failure struct {
	Kind       Kind
	StatusCode int
	// Status is the provider's symbolic status, e.g. RESOURCE_EXHAUSTED.
	Status string
	// Reason is the provider error reason or a finish/block reason.
	Reason string
	// Cause names the structural shape of an empty response.
	Cause   string
	Message string
	Err     error
}

type inputError struct {
	message string
}

func (e *inputError) Error() string { return e.message }

// InvalidInput returns an error that classifies as INVALID_INPUT.
func InvalidInput(format string, args ...any) error {
	return &inputError{message: fmt.Sprintf(format, args...)}
}

// FromError normalizes err into a Failure using its type, never its text,
// unless nothing structural is known.
func FromError(err error) Failure {
	if err == nil {
		return Failure{Kind: KindUnstructured}
	}

	var (
		perr    *driver.ProviderError
		blocked *driver.BlockedError
		empty   *driver.EmptyResponseError
		input   *inputError
		netErr  net.Error
		urlErr  *url.Error
	)

	switch {
	case errors.As(err, &input):
		return Failure{Kind: KindInput, Message: input.message, Err: err}
	case isSanitizeError(err):
		return Failure{Kind: KindInput, Message: err.Error(), Err: err}
	case isKeyError(err):
		return Failure{Kind: KindKey, Message: err.Error(), Err: err}
	case errors.As(err, &blocked):
		return Failure{Kind: KindSafety, Reason: blocked.Reason, Message: blocked.Error(), Err: err}
	case errors.As(err, &empty):
		return Failure{Kind: KindEmptyResponse, Cause: empty.Cause, Message: empty.Error(), Err: err}
	case errors.As(err, &perr):
		return Failure{
			Kind:       KindProvider,
			StatusCode: perr.StatusCode,
			Status:     driver.NormalizeReason(perr.Status),
			Reason:     driver.NormalizeReason(perr.Reason),
			Message:    truncate(perr.Message),
			Err:        err,
		}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Failure{Kind: KindTimeout, Message: err.Error(), Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return Failure{Kind: KindTimeout, Message: err.Error(), Err: err}
	case errors.As(err, &urlErr), errors.As(err, &netErr),
		errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF):
		return Failure{Kind: KindNetwork, Message: err.Error(), Err: err}
	default:
		return Failure{Kind: KindUnstructured, Message: err.Error(), Err: err}
	}
}

// FromResponse normalizes a non-2xx HTTP response.
func FromResponse(statusCode int, body []byte) Failure {
	return Failure{Kind: KindHTTP, StatusCode: statusCode, Message: truncate(string(body))}
}

func isKeyError(err error) bool {
	_, ok := identity.KeyErrorCode(err)
	return ok
}

func truncate(message string) string {
	message = strings.TrimSpace(message)
	if len(message) > maxBodyMessage {
		return message[:maxBodyMessage]
	}
	return message
}
