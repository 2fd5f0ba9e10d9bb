package rpp

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kinerja/core"
)

var (
	rppTypeTag  = "rpptype"
	rppTypeText = "rpp type must be one of " + strings.Join(RequiredTypes, ", ")

	decisionTag  = "decision"
	decisionText = "decision must be one of " + strings.Join(Decisions, ", ")
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(rppTypeTag, func(fl validator.FieldLevel) bool {
		return isRequiredType(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, rppTypeTag, rppTypeText)

	_ = validate.RegisterValidation(decisionTag, func(fl validator.FieldLevel) bool {
		return isDecision(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, decisionTag, decisionText)
}
