// Package request decodes and validates HTTP request input.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/corray333/backend-labs/fulfillment/internal/service/errs"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "schema"} {
			if name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]; name != "" {
				return name
			}
		}

		return ""
	})

	return v
}

// DecodeJSON decodes the body of r into dst and validates it.
// An empty body is accepted when allowEmpty is set.
func DecodeJSON(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return Validate(dst)
		}

		return fmt.Errorf("%w: %w", errs.ErrMalformedInput, err)
	}

	return Validate(dst)
}

// Validate runs the struct validation tags of v.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		fe := vErrs[0]
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		return errs.Validation(field, "failed on "+fe.Tag())
	}

	return errs.Validation("", err.Error())
}

// PathID parses the positive int64 URL parameter name.
func PathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation(name, "must be a positive integer")
	}

	return id, nil
}
