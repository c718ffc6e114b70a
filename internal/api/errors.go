package api

import (
	"fmt"
	"net/http"
	"strings"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"error"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func newApiError(status int, msg string) *ApiError {
	if msg == "" {
		msg = lower(http.StatusText(status))
	}

	return &ApiError{
		StatusCode: status,
		Message:    msg,
	}
}

func NewBadRequestError(msg string) *ApiError {
	return newApiError(http.StatusBadRequest, msg)
}

func NewNotFoundError(msg string) *ApiError {
	return newApiError(http.StatusNotFound, msg)
}

func NewUnauthorizedError(msg string) *ApiError {
	return newApiError(http.StatusUnauthorized, msg)
}

func NewConflictError(msg string) *ApiError {
	return newApiError(http.StatusConflict, msg)
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}
