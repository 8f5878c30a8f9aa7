package convert

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/tendant/simple-ums/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the JSON body into v and validates its struct tags. An empty
// body is validated as the zero value so missing fields are reported together.
func Bind(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrap(err, apperrors.ErrCodeValidationFailed, "invalid request body")
	}
	return Validate(v)
}

func Validate(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return apperrors.FromValidation(err)
	}
	return nil
}

// PathID parses a positive int64 URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationFailed(name + " is required")
	}
	return id, nil
}

// QueryAppID reads ?app_id=, returning 0 when absent or malformed.
func QueryAppID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get("app_id"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
