package server

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/tkrehbiel/activitysift/server/telemetry"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

// structValidator returns the shared validator, configured on first use
func structValidator() (*validator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// report fields by the name a user typed, not the Go name
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, key := range []string{"yaml", "json", "query"} {
				name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})

		_ = v.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
			_, err := telemetry.ParseFormat(fl.Field().String())
			return err == nil
		})

		english := en.New()
		uni := ut.New(english, english)
		trans, _ := uni.GetTranslator("en")
		if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
			telemetry.Error(err, "registering validator translations")
		}
		_ = v.RegisterTranslation("logformat", trans,
			func(ut ut.Translator) error {
				return ut.Add("logformat", "{0} must be console, text or json", true)
			},
			func(ut ut.Translator, fe validator.FieldError) string {
				msg, _ := ut.T("logformat", fe.Field())
				return msg
			},
		)

		validate = v
		translator = trans
	})
	return validate, translator
}

// validateStruct checks v's validate tags. Failures are wrapped in kind,
// with one readable message per field.
func validateStruct(v any, kind error) error {
	vd, trans := structValidator()
	err := vd.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", kind, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Translate(trans))
	}
	return fmt.Errorf("%w: %s", kind, strings.Join(msgs, "; "))
}
