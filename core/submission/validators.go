package submission

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/jarida/core"
)

var (
	articleTypeTag  = "article_type"
	articleTypeText = "invalid article type"

	subjectAreaTag  = "subject_area"
	subjectAreaText = "unknown subject area"

	correspondingTag  = "corresponding"
	correspondingText = "the corresponding author must be one of the authors"
)

// InitValidators registers the submission validators & their translations.
// `subjectAreas` are the journal's subject areas; any area is accepted when empty.
func InitValidators(validate *validator.Validate, translator ut.Translator, subjectAreas []string) {
	_ = validate.RegisterValidation(articleTypeTag, articleTypeValidation)
	core.RegisterCustomTranslation(validate, translator, articleTypeTag, articleTypeText)

	_ = validate.RegisterValidation(subjectAreaTag, func(fl validator.FieldLevel) bool {
		return len(subjectAreas) == 0 || core.StringInSlice(fl.Field().String(), subjectAreas)
	})
	core.RegisterCustomTranslation(validate, translator, subjectAreaTag, subjectAreaText)

	validate.RegisterStructValidation(submissionStructValidation, NewSubmission{}, UpdateSubmission{})
	core.RegisterCustomTranslation(validate, translator, correspondingTag, correspondingText)
}

func articleTypeValidation(fl validator.FieldLevel) bool {
	at := ArticleType(fl.Field().String())
	for _, t := range ArticleTypes {
		if at == t {
			return true
		}
	}
	return false
}

// submissionStructValidation checks that the corresponding author is one of the authors.
func submissionStructValidation(sl validator.StructLevel) {
	var (
		authors []Author
		email   string
	)
	switch sub := sl.Current().Interface().(type) {
	case NewSubmission:
		authors, email = sub.Authors, sub.CorrespondingAuthor
	case UpdateSubmission:
		// only checked when both are provided; the service re-checks the merged result
		if sub.Authors == nil || sub.CorrespondingAuthor == "" {
			return
		}
		authors, email = sub.Authors, sub.CorrespondingAuthor
	}
	if email == "" {
		return
	}
	for _, a := range authors {
		if a.Email == email {
			return
		}
	}
	sl.ReportError(email, "corresponding_author", "CorrespondingAuthor", correspondingTag, "")
}
