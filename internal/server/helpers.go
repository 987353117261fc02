package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Decentr-net/tribune/internal/api"
	"github.com/Decentr-net/tribune/internal/auth"
	"github.com/Decentr-net/tribune/internal/service"
)

var errInvalidRequest = errors.New("invalid request")

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// decode reads JSON body into v and validates it. It writes an error response and returns false on failure.
// An empty body is decoded as an empty object.
func (s server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := jsonDecode(r, v); err != nil {
		api.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}

	return s.validate(w, v)
}

func jsonDecode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

func (s server) validate(w http.ResponseWriter, v interface{}) bool {
	err := s.v.Struct(v)
	if err == nil {
		return true
	}

	var verr validator.ValidationErrors
	if !errors.As(err, &verr) {
		api.WriteError(w, http.StatusBadRequest, err.Error())
		return false
	}

	fields := make(map[string]string, len(verr))
	for _, v := range verr {
		fields[v.Field()] = fieldErrorMessage(v)
	}

	writeValidationError(w, fields)
	return false
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	api.WriteOK(w, http.StatusBadRequest, ValidationError{
		Error:  "validation failed",
		Fields: fields,
	})
}

func fieldErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "max":
		return fmt.Sprintf("ensure this field has no more than %s characters", e.Param())
	case "datetime":
		return fmt.Sprintf("date has wrong format, use %s", e.Param())
	default:
		return fmt.Sprintf("failed on %s validation", e.Tag())
	}
}

// writeServiceError maps service's errors to responses. Unknown errors are logged and hidden behind 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, format string, args ...interface{}) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		api.WriteError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, service.ErrSelfFollow):
		api.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		api.WriteError(w, http.StatusUnauthorized, "no active account found with the given credentials")
	case errors.Is(err, service.ErrConflict):
		api.WriteError(w, http.StatusConflict, "concurrent update, try again")
	default:
		api.WriteInternalErrorf(r.Context(), w, "%s: %s", fmt.Sprintf(format, args...), err.Error())
	}
}

// identity returns caller's identity attached by the gate.
func identity(r *http.Request) *auth.Identity {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		panic("handler is not protected by auth.Gate")
	}

	return id
}

func postIDFromPath(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "post_id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid post_id", errInvalidRequest)
	}

	return id, nil
}
