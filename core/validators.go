package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// messages replacing the default english translations
var overriddenTexts = map[string]string{
	"required": "this field is required",
	"e164":     "phone number must be in E.164 format, e.g. +243810000000",
}

// NewValidator returns a validator with an english translator, and the core validators registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	locale := en.New()
	translator, _ := ut.New(locale, locale).GetTranslator("en")

	validate := validator.New()
	InitValidators(validate, translator)
	return validate, translator
}

// InitValidators registers the core tags & translations on validate.
// Error fields are named after the json tag of the struct field.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
	RegisterCustomTranslation(validate, translator, "slug", "only lowercase letters, digits and dashes are allowed")

	for tag, text := range overriddenTexts {
		registerTranslation(validate, translator, tag, text, true)
	}
}

// RegisterCustomTranslation sets the error message of a custom validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string) {
	registerTranslation(validate, translator, tag, text, false)
}

func registerTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}
