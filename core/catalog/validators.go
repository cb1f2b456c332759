package catalog

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/quizhub/core"
)

var (
	slotOrTextTag  = "slot_or_text"
	slotOrTextText = "must be one of option1..option4 or the text of one of the options"
)

// InitValidators registers the catalog validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(questionStructValidation, NewQuestion{})
	core.RegisterCustomTranslation(validate, translator, slotOrTextTag, slotOrTextText)
}

// questionStructValidation checks that the correct option of a new question can be resolved.
func questionStructValidation(sl validator.StructLevel) {
	nq, ok := sl.Current().Interface().(NewQuestion)
	if !ok || nq.CorrectOption == "" {
		return
	}
	q := Question{
		Option1:       nq.Option1,
		Option2:       nq.Option2,
		Option3:       nq.Option3,
		Option4:       nq.Option4,
		CorrectOption: nq.CorrectOption,
	}
	if !q.IsResolvable() {
		sl.ReportError(nq.CorrectOption, "correct_option", "CorrectOption", slotOrTextTag, "")
	}
}

// checkResolvable validates an updated question the way questionStructValidation does a new one.
func checkResolvable(q Question) error {
	if q.IsResolvable() {
		return nil
	}
	return core.NewValidationError(nil, core.FieldError{Field: "correct_option", Error: slotOrTextText})
}
