package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"membership-billing/internal/domain"
)

type translator interface {
	T(key string, args ...interface{}) string
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps domain errors onto an HTTP status, a stable code and a message key.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrConfigMissing):
		return http.StatusServiceUnavailable, "CONFIG_MISSING", "error.config_missing"
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized, "AUTH_REQUIRED", "error.auth_required"
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusBadGateway, "NETWORK_ERROR", "error.network"
	case errors.Is(err, domain.ErrProviderRejected):
		return http.StatusBadGateway, "PROVIDER_REJECTED", "error.provider_rejected"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "error.not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATE", "error.invalid_state"
	case errors.Is(err, domain.ErrNotSelectable):
		return http.StatusConflict, "NOT_SELECTABLE", "error.not_selectable"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT", "error.invalid_argument"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "error.forbidden"
	default:
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return http.StatusBadRequest, "INVALID_ARGUMENT", "error.invalid_argument"
		}
		return http.StatusInternalServerError, "INTERNAL", "error.internal"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, tr translator, err error) {
	status, code, key := classify(err)
	msg := key
	if tr != nil {
		msg = tr.T(key)
	}
	// the provider's own text is more useful than a generic line
	if pm := strings.TrimSpace(domain.ProviderMessage(err)); pm != "" {
		msg = pm
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

func writeErrorMessage(w http.ResponseWriter, err error, msg string) {
	status, code, _ := classify(err)
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg}})
}

var validate = validator.New()

// decodeJSON reads a size-limited body into v and validates its tags.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(domain.ErrInvalidArgument, err)
	}
	if err := validate.Struct(v); err != nil {
		return errors.Join(domain.ErrInvalidArgument, err)
	}
	return nil
}
