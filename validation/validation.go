// Package validation checks request DTOs with go-playground/validator and
// turns failures into per-field English messages keyed by JSON field name.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/user/polls-go/apperror"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

// Validator is safe for concurrent use once built.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

// New builds a Validator with English messages and the custom "username" and
// "password" tags. It panics if the static setup fails.
func New() *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	trans, found := uni.GetTranslator("en")
	if !found {
		panic("validation: english translator not registered")
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(fmt.Sprintf("validation: register default translations: %v", err))
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(validate, trans, "username",
		"Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.",
		func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
	mustRegister(validate, trans, "password",
		fmt.Sprintf("Ensure this field has no more than %d bytes.", maxPasswordBytes),
		func(fl validator.FieldLevel) bool {
			return len(fl.Field().String()) <= maxPasswordBytes
		})

	return &Validator{validate: validate, trans: trans}
}

func mustRegister(validate *validator.Validate, trans ut.Translator, tag, message string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %q: %v", tag, err))
	}
	err := validate.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, message, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag)
			return msg
		},
	)
	if err != nil {
		panic(fmt.Sprintf("validation: translate %q: %v", tag, err))
	}
}

// Struct validates v and returns an *apperror.AppError of type ValidationError
// listing every failing field, or nil.
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperror.NewBadRequestError("invalid request", err)
	}
	fields := make(map[string][]string, len(validationErrs))
	for _, fe := range validationErrs {
		fields[fe.Field()] = append(fields[fe.Field()], fe.Translate(v.trans))
	}
	return apperror.NewFieldErrors(fields)
}

var defaultValidator = New()

// Struct validates s with the package-level Validator.
func Struct(s interface{}) error {
	return defaultValidator.Struct(s)
}
