package message

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/studylab/core"
)

var (
	msgTypeTag  = "msgtype"
	msgTypeText = "invalid message type"
)

// InitValidators registers the message validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(msgTypeTag, func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case TypeAnnouncement, TypeDirect, TypeSystem:
			return true
		}
		return false
	})
	core.RegisterCustomTranslation(validate, translator, msgTypeTag, msgTypeText)
}
