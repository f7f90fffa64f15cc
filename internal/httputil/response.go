// Package httputil holds the JSON response helpers shared by middleware and
// handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/EduShopX/edushop/internal/app/storage"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// WriteJSON writes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteErrorResponse writes an explicit error envelope.
func WriteErrorResponse(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	WriteJSON(w, status, ErrorBody{Error: message, Code: code, Details: details})
}

// WriteError maps err to a status and writes the envelope. Storage
// sentinels map to 404 and 409; anything unrecognised is a 500 whose
// message hides the cause.
func WriteError(w http.ResponseWriter, err error) {
	se := Classify(err)
	WriteErrorResponse(w, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

// Classify converts any error into a ServiceError.
func Classify(err error) *apperrors.ServiceError {
	if se := apperrors.GetServiceError(err); se != nil {
		return se
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.NotFound("resource")
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Conflict("resource already exists")
	case errors.Is(err, storage.ErrEmptyCart):
		return apperrors.BadRequest("Cart is empty.")
	}
	return apperrors.Internal("internal server error", err)
}

// WriteDetail writes {"detail": msg}, the body shape several endpoints keep.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, map[string]string{"detail": msg})
}

// DecodeJSON decodes a request body, rejecting unknown fields.
func DecodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.BadRequest("request body is empty")
		}
		return apperrors.BadRequest("invalid JSON: " + err.Error())
	}
	return nil
}
