package handlers

import (
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/turtacn/molregistry/pkg/errors"
)

// smilesCharset matches the characters the line notation can contain.
var smilesCharset = regexp.MustCompile(`^[A-Za-z0-9@+\-\[\]\(\)=#$:/\\.%*]+$`)

// newValidator reports field names by their json tag and registers the
// smiles character-class check.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("smiles", func(fl validator.FieldLevel) bool {
		return smilesCharset.MatchString(fl.Field().String())
	})
	return v
}

// validate converts validator failures into AppErrors.  A failed smiles tag
// is reported as an invalid notation; anything else is a 422.
func validate(v *validator.Validate, req interface{}) error {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeValidation, errors.DefaultMessageForCode(errors.ErrCodeValidation))
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "smiles" {
			return errors.New(errors.CodeMoleculeInvalidSMILES,
				errors.DefaultMessageForCode(errors.CodeMoleculeInvalidSMILES)).
				WithDetail(fe.Field() + " contains characters outside the notation alphabet")
		}
		msgs = append(msgs, describe(fe))
	}
	sort.Strings(msgs)
	return errors.New(errors.ErrCodeValidation, errors.DefaultMessageForCode(errors.ErrCodeValidation)).
		WithDetail(strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	default:
		return fe.Field() + " failed " + fe.Tag()
	}
}

// bindParams fills the named string fields from a JSON object body, then
// lets query parameters with the same names override them.
func bindParams(r *http.Request, fields map[string]*string) error {
	if isJSON(r) && r.Body != nil {
		body := map[string]interface{}{}
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil && err != io.EOF {
			return errors.New(errors.ErrCodeValidation, errors.DefaultMessageForCode(errors.ErrCodeValidation)).
				WithDetail("request body must be a JSON object").WithCause(err)
		}
		for name, dst := range fields {
			raw, ok := body[name]
			if !ok {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return errors.New(errors.ErrCodeValidation, errors.DefaultMessageForCode(errors.ErrCodeValidation)).
					WithDetail(name + " must be a string")
			}
			*dst = s
		}
	}
	q := r.URL.Query()
	for name, dst := range fields {
		if q.Has(name) {
			*dst = q.Get(name)
		}
	}
	return nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}
