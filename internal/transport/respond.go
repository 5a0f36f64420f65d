package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rpggio/searchstudy/internal/domain/activity"
	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/identity"
	"github.com/rpggio/searchstudy/internal/domain/survey"
	"github.com/rpggio/searchstudy/internal/domain/task"
	"github.com/rpggio/searchstudy/internal/provider/airtable"
	"github.com/rpggio/searchstudy/internal/storage"
)

// APIError is the JSON error body of the participant API.
type APIError struct {
	Status       int      `json:"-"`
	Code         string   `json:"code"`
	Message      string   `json:"error"`
	Redirect     string   `json:"redirect,omitempty"`
	Retryable    bool     `json:"retryable,omitempty"`
	Missing      []string `json:"missing,omitempty"`
	FirstMissing string   `json:"first_missing,omitempty"`
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// IdentityEntryPath is where participants without an id are sent.
const IdentityEntryPath = "/check"

// MapError maps domain errors to API errors. Unknown errors become a 500.
func MapError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var incomplete *survey.IncompleteError
	if errors.As(err, &incomplete) {
		return &APIError{
			Status:       http.StatusUnprocessableEntity,
			Code:         "INCOMPLETE",
			Message:      "some required questions are unanswered",
			Missing:      incomplete.Missing,
			FirstMissing: incomplete.FirstMissing(),
		}
	}

	switch {
	case errors.Is(err, storage.ErrUnavailable):
		return &APIError{Status: http.StatusServiceUnavailable, Code: "STORAGE_UNAVAILABLE", Message: "session storage is unavailable", Retryable: true}
	case errors.Is(err, identity.ErrIdentityRequired):
		return &APIError{Status: http.StatusUnauthorized, Code: "IDENTITY_REQUIRED", Message: "participant identity required", Redirect: IdentityEntryPath}
	case errors.Is(err, identity.ErrConsentDecided):
		return &APIError{Status: http.StatusConflict, Code: "CONSENT_DECIDED", Message: "consent was already recorded"}
	case errors.Is(err, identity.ErrInvalidInput),
		errors.Is(err, survey.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput),
		errors.Is(err, assignment.ErrInvalidInput):
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, survey.ErrSaveFailed):
		return &APIError{Status: http.StatusBadGateway, Code: "SAVE_FAILED", Message: "your answers could not be saved, please try again", Retryable: true}
	case errors.Is(err, survey.ErrUnknownKind):
		return &APIError{Status: http.StatusNotFound, Code: "UNKNOWN_SURVEY", Message: "unknown survey"}
	case errors.Is(err, survey.ErrAssignmentRequired):
		return &APIError{Status: http.StatusConflict, Code: "ASSIGNMENT_REQUIRED", Message: "no condition assigned yet"}
	case errors.Is(err, assignment.ErrNoCells):
		return &APIError{Status: http.StatusInternalServerError, Code: "NO_CELLS", Message: "study has no conditions configured"}
	case errors.Is(err, task.ErrBlankInput):
		return &APIError{Status: http.StatusBadRequest, Code: "BLANK_INPUT", Message: "please enter a query"}
	case errors.Is(err, task.ErrInvalidReference):
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_REFERENCE", Message: "reference is missing text or a valid link"}
	case errors.Is(err, task.ErrInFlight):
		return &APIError{Status: http.StatusConflict, Code: "IN_FLIGHT", Message: "a submission is already in progress", Retryable: true}
	case errors.Is(err, task.ErrInvalidPhase):
		return &APIError{Status: http.StatusConflict, Code: "INVALID_PHASE", Message: "not allowed at this stage of the task"}
	case errors.Is(err, task.ErrNotReady):
		return &APIError{Status: http.StatusConflict, Code: "NOT_READY", Message: "time and interaction requirements are not met yet"}
	case errors.Is(err, task.ErrItemNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "ITEM_NOT_FOUND", Message: "scrapbook item not found"}
	case errors.Is(err, task.ErrSessionNotFound):
		return &APIError{Status: http.StatusNotFound, Code: "SESSION_NOT_FOUND", Message: "no task session, start one first"}
	case errors.Is(err, task.ErrClosed):
		return &APIError{Status: http.StatusGone, Code: "SESSION_CLOSED", Message: "task session has ended"}
	case errors.Is(err, task.ErrInvalidSession):
		return &APIError{Status: http.StatusConflict, Code: "ASSIGNMENT_REQUIRED", Message: "no condition assigned yet"}
	case errors.Is(err, airtable.ErrNotConfigured):
		return &APIError{Status: http.StatusInternalServerError, Code: "NOT_CONFIGURED", Message: "datastore is not configured"}
	}

	var perr *airtable.ProviderError
	if errors.As(err, &perr) {
		return &APIError{Status: http.StatusBadGateway, Code: "PROVIDER_ERROR", Message: "datastore rejected the request", Retryable: true}
	}
	return &APIError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := MapError(err)
	level := slog.LevelDebug
	if apiErr.Status >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", "method", r.Method, "path", r.URL.Path, "status", apiErr.Status, "code", apiErr.Code, "error", err)
	writeJSON(w, apiErr.Status, apiErr)
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		return &APIError{Status: http.StatusBadRequest, Code: "INVALID_JSON", Message: "request body is not valid JSON"}
	}
	return nil
}
