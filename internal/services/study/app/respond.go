package app

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	apperrors "github.com/louisbranch/study.space/internal/platform/errors"
)

const maxJSONBodyBytes = 64 * 1024

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError renders err as the JSON error envelope. Errors without a code
// are logged and reported as UNKNOWN.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		log.Printf("http: %s %s: %v", r.Method, r.URL.Path, err)
		appErr = apperrors.New(apperrors.CodeUnknown, "internal error")
	}
	status := appErr.Code.HTTPStatus()
	if status >= http.StatusInternalServerError && ok {
		log.Printf("http: %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:      string(appErr.Code),
		Message:   appErr.Message,
		Retryable: appErr.Code.Retryable(),
		Metadata:  appErr.Metadata,
	}})
}

func invalid(message string) error {
	return apperrors.New(apperrors.CodeValidationFailed, message)
}

// decodeJSON reads one JSON object into dst. An empty body leaves dst
// untouched.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return invalid("invalid JSON body: " + err.Error())
	}
	return nil
}
