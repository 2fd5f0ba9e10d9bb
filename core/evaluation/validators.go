package evaluation

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinerja/core"
)

var (
	gradeTag  = "grade"
	gradeText = "grade must be one of " + strings.Join(AllGrades, ", ")
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, func(fl validator.FieldLevel) bool {
		return isGrade(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)
}
