package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/TimurManjosov/triagem/internal/demanda"
	"github.com/TimurManjosov/triagem/internal/document"
	"github.com/TimurManjosov/triagem/internal/eligibility"
	"github.com/TimurManjosov/triagem/internal/intake"
	"github.com/TimurManjosov/triagem/internal/store"
	"github.com/TimurManjosov/triagem/internal/triage"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v and writes the error response
// itself when that fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RequestTooLargeError(w, r, "Request body too large")
			return false
		}
		BadRequestError(w, r, ErrCodeInvalidJSON, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		BadRequestError(w, r, ErrCodeInvalidID, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(name)))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// writeServiceError maps service errors onto structured responses.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *demanda.ValidationError
		inErr *eligibility.InputError
		fErr  *document.FieldError
	)
	switch {
	case errors.As(err, &verr):
		ValidationError(w, r, "Validation failed", verr.Fields)
	case errors.As(err, &inErr):
		BadRequestErrorWithFields(w, r, ErrCodeInvalidInput, inErr.Error(), map[string]string{inErr.Field: inErr.Message})
	case errors.As(err, &fErr):
		BadRequestErrorWithFields(w, r, ErrCodeMissingField, fErr.Error(), map[string]string{fErr.Field: fErr.Message})
	case errors.Is(err, triage.ErrInvalidDocumento):
		BadRequestError(w, r, ErrCodeInvalidDocumento, err.Error())
	case errors.Is(err, document.ErrUnknownKind):
		writeErrorResponse(w, r, http.StatusNotFound, NewErrorResponse(http.StatusNotFound, ErrCodeUnknownKind, err.Error()))
	case errors.Is(err, store.ErrNotFound):
		NotFoundError(w, r, "demanda not found")
	case errors.Is(err, intake.ErrSessionNotFound):
		NotFoundError(w, r, err.Error())
	case errors.Is(err, intake.ErrFirstProcesso), errors.Is(err, intake.ErrProcessoIndex):
		BadRequestError(w, r, ErrCodeInvalidProcesso, err.Error())
	case errors.Is(err, intake.ErrUnknownDefensor):
		BadRequestErrorWithFields(w, r, ErrCodeValidation, err.Error(), map[string]string{"defensor": err.Error()})
	case errors.Is(err, intake.ErrAwaitingConfirmation), errors.Is(err, intake.ErrNotAwaitingConfirmation):
		ConflictError(w, r, ErrCodeSessionState, err.Error())
	default:
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		InternalError(w, r, "internal error")
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
