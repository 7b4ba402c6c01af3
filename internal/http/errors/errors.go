package errors

import (
	"encoding/json"
	stderrors "errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/picker"
)

// ErrNotFound marks a picker or element id that does not exist.
var ErrNotFound = stderrors.New("not found")

type body struct {
	Error      string             `json:"error"`
	Violations []picker.Violation `json:"violations,omitempty"`
}

// Status maps a picker error to its HTTP status.
func Status(err error) int {
	switch {
	case stderrors.Is(err, picker.ErrConfiguration),
		stderrors.Is(err, picker.ErrInvalidDate),
		stderrors.Is(err, dom.ErrUnknownEvent),
		stderrors.Is(err, dom.ErrInvalidElement):
		return http.StatusBadRequest
	case stderrors.Is(err, picker.ErrRangeViolation):
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, picker.ErrDuplicateBinding),
		stderrors.Is(err, dom.ErrDuplicateElement),
		stderrors.Is(err, picker.ErrNotPaired):
		return http.StatusConflict
	case stderrors.Is(err, ErrNotFound),
		stderrors.Is(err, picker.ErrRemoved),
		stderrors.Is(err, dom.ErrUnknownElement):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// WriteError answers a JSON API request with err. Server errors are logged
// and replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		LogError(r, "request failed", err)
		writeJSON(w, status, body{Error: "internal server error"})
		return
	}

	requestID := middleware.GetReqID(r.Context())
	if requestID != "" {
		log.Printf("[WARN] RequestID=%s: rejected: %v", requestID, err)
	} else {
		log.Printf("[WARN] rejected: %v", err)
	}

	b := body{Error: err.Error()}
	var verr *picker.ValidationError
	if stderrors.As(err, &verr) {
		b.Violations = verr.Violations
	}
	writeJSON(w, status, b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func InternalError(w http.ResponseWriter, r *http.Request, err error, message string) {
	LogError(r, message, err)

	// Return generic error to client
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func BadRequestError(w http.ResponseWriter, r *http.Request, err error, clientMessage string) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[WARN] RequestID=%s: bad request: %v", requestID, err)
	} else {
		log.Printf("[WARN] bad request: %v", err)
	}

	http.Error(w, clientMessage, http.StatusBadRequest)
}

func LogError(r *http.Request, message string, err error) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[ERROR] RequestID=%s: %s: %v", requestID, message, err)
	} else {
		log.Printf("[ERROR] %s: %v", message, err)
	}
}

func LogInfo(r *http.Request, message string) {
	requestID := middleware.GetReqID(r.Context())

	if requestID != "" {
		log.Printf("[INFO] RequestID=%s: %s", requestID, message)
	} else {
		log.Printf("[INFO] %s", message)
	}
}
