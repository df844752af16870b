package activity

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studylab/core"
)

var (
	activityTypeTag  = "activitytype"
	activityTypeText = "invalid activity type"
)

// InitValidators registers the activity validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(activityTypeTag, func(fl validator.FieldLevel) bool {
		return IsValidType(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, activityTypeTag, activityTypeText)
}
