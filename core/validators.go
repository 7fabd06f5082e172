package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	Validate   *validator.Validate
	Translator ut.Translator

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	// iconcode validates a 4-icon access code sequence.
	iconCodeTag  = "iconcode"
	iconCodeText = "an access code must contain exactly 4 icons"
)

func init() {
	Validate = validator.New()

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	Translator, _ = uni.GetTranslator("en")

	_ = en_translations.RegisterDefaultTranslations(Validate, Translator)

	// Use JSON tag names for errors instead of Go struct names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = Validate.RegisterValidation(iconCodeTag, iconCodeValidation)
	RegisterCustomTranslation(iconCodeTag, iconCodeText)

	RegisterCustomTranslation(requiredTag, requiredText, true)
	RegisterCustomTranslation(requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = Validate.RegisterTranslation(
		tag, Translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// iconCodeValidation only allows sequences of exactly 4 positive icon ids.
func iconCodeValidation(fl validator.FieldLevel) bool {
	codes, ok := fl.Field().Interface().([]int)
	if !ok || len(codes) != 4 {
		return false
	}
	for _, id := range codes {
		if id <= 0 {
			return false
		}
	}
	return true
}
