package httpx

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noodle-soup/noodle/internal/shared"
)

const maxBodyBytes = 1 << 20

// Bind decodes the JSON body into target and validates it. Decode and
// validation failures are returned as *shared.ValidationError.
func Bind(w http.ResponseWriter, r *http.Request, v *validator.Validate, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := DecodeJSON(r, target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.NewValidationError("body", "required")
		}
		return shared.NewValidationError("body", "malformed")
	}
	if v == nil {
		return nil
	}
	return ValidationFromValidator(v.Struct(target))
}

// ValidationFromValidator converts validator failures into a ValidationError
// keyed by JSON field name.
func ValidationFromValidator(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &shared.ValidationError{}
	for _, fe := range fieldErrs {
		out.Add(fe.Field(), fe.Tag())
	}
	return out
}

// NewValidator returns a validator that reports JSON field names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonFieldName)
	return v
}

// URLInt64 parses a positive integer route parameter.
func URLInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(name, "invalid")
	}
	return id, nil
}

// BindIDs decodes a JSON array of positive integer ids.
func BindIDs(w http.ResponseWriter, r *http.Request) ([]int64, error) {
	var ids []int64
	if err := Bind(w, r, nil, &ids); err != nil {
		return nil, err
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, shared.NewValidationError("ids", "invalid")
		}
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}
