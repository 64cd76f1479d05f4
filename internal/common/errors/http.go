package errors

import (
	"encoding/json"
	"net/http"
)

// HTTPStatus maps an error onto the status code the API returns for it.
func HTTPStatus(err error) int {
	stdErr, ok := AsStandardError(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch stdErr.Code {
	case ErrCodeListingNotFound, ErrCodeMakeNotFound:
		return http.StatusNotFound
	case ErrCodeInvalidRequest, ErrCodeInvalidFilterFormat:
		return http.StatusBadRequest
	case ErrCodeStorageUnavailable, ErrCodeIndexNotFound:
		return http.StatusServiceUnavailable
	case ErrCodeQueryTimeout, ErrCodeLLMTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// WriteJSON renders err as {"error":{...}}. Details of 5xx errors stay server-side.
func WriteJSON(w http.ResponseWriter, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr)

	payload := errorPayload{Code: stdErr.Code, Message: stdErr.Message}
	if status < http.StatusInternalServerError {
		payload.Details = stdErr.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: payload})
}
