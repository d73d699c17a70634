package publication

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
)

var (
	doiTag  = "doi"
	doiText = "invalid DOI"

	pagesTag   = "pages"
	pagesText  = "pages must look like 12 or 12-25"
	pagesRegex = regexp.MustCompile(`^[A-Za-z]?\d{1,6}(-[A-Za-z]?\d{1,6})?$`)
)

// InitValidators registers the publication validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(doiTag, func(fl validator.FieldLevel) bool {
		return ValidateDOI(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, doiTag, doiText)

	_ = validate.RegisterValidation(pagesTag, func(fl validator.FieldLevel) bool {
		return pagesRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, pagesTag, pagesText)
}
