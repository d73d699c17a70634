package decision

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
)

var (
	decisionKindTag  = "decision_kind"
	decisionKindText = "decision must be one of accept, minor_revision, major_revision, reject or desk_reject"
)

// InitValidators registers the decision validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(decisionKindTag, func(fl validator.FieldLevel) bool {
		return Kind(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, decisionKindTag, decisionKindText)
}
