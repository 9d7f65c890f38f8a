package form

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/babynest/internal/security"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance はformタグ名でエラーを報告する共有バリデータを返す。
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		if err := registerValidations(v, customValidations()); err != nil {
			panic(err)
		}
		validate = v
	})
	return validate
}

// customValidations はスキーマのvalidateタグで使う独自ルール。
func customValidations() map[string]validator.Func {
	policy := security.NewPlainTextPolicy()
	return map[string]validator.Func{
		// HTMLタグやエンティティを含まない文字列のみ許可する
		"plaintext": func(fl validator.FieldLevel) bool {
			return policy.IsPlainText(fl.Field().String())
		},
	}
}

func registerValidations(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("form: register %q validation: %w", tag, err)
		}
	}
	return nil
}

// validateStruct はpayloadを検証し、フィールドごとに最初の失敗メッセージを返す。
// 問題がなければnilを返す。
func validateStruct(payload any, fields []Field) (map[string]string, error) {
	err := validatorInstance().Struct(payload)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	byName := make(map[string]Field, len(fields))
	for _, f := range fields {
		byName[f.Name] = f
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = messageFor(byName[name], name, fe.Tag())
	}
	return out, nil
}

func messageFor(f Field, name, tag string) string {
	if msg, ok := f.Messages[tag]; ok {
		return msg
	}
	if msg, ok := f.Messages["*"]; ok {
		return msg
	}
	return name + " is invalid"
}
