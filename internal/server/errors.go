package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/draftsmith/draftsmith/internal/core/classify"
	apperrors "github.com/draftsmith/draftsmith/internal/errors"
)

// HandleError writes the failure envelope for errors raised outside the
// generation pipeline: routing misses, health probes and the metrics
// endpoint. Classified errors keep their user message and recovery actions.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var classified *classify.ClassifiedError
	if errors.As(err, &classified) {
		apperrors.RespondClassified(w, r, routePattern(r), classified)
		return
	}
	apperrors.RespondWithError(w, r, err)
}

func routePattern(r *http.Request) string {
	if r == nil {
		return ""
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
