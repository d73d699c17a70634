package review

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
)

var (
	recommendationTag  = "recommendation"
	recommendationText = "recommendation must be one of accept, minor_revision, major_revision or reject"
)

// InitValidators registers the review validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(recommendationTag, func(fl validator.FieldLevel) bool {
		return Recommendation(fl.Field().String()).Valid()
	})
	core.RegisterCustomTranslation(validate, translator, recommendationTag, recommendationText)
}
