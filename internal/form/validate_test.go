package form

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/babynest/internal/storage"
)

func TestRegisterValidations_RegistersCustomRules(t *testing.T) {
	v := validator.New()
	if err := registerValidations(v, customValidations()); err != nil {
		t.Fatalf("registerValidations: %v", err)
	}

	type payload struct {
		Name string `validate:"plaintext"`
	}
	if err := v.Struct(payload{Name: "Luna"}); err != nil {
		t.Errorf("plain name rejected: %v", err)
	}
	if err := v.Struct(payload{Name: "<b>Luna</b>"}); err == nil {
		t.Error("markup should be rejected")
	}
}

func TestRegisterValidations_ReturnsRegistrationError(t *testing.T) {
	rules := map[string]validator.Func{
		"": func(validator.FieldLevel) bool { return true },
	}
	err := registerValidations(validator.New(), rules)
	if err == nil {
		t.Fatal("expected error for empty tag")
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("error should wrap the validator error: %v", err)
	}
}

func TestSubmit_ColorIsCommittedAsEntered(t *testing.T) {
	for _, color := range []string{"#ff8800", "#FF8800", "#aBc123"} {
		t.Run(color, func(t *testing.T) {
			p := MustNew(BabyFields(), BabyDefaults())

			var got BabyForm
			err := p.Submit(context.Background(), Submission{Values: map[string]string{
				"name":      "Luna",
				"gender":    "female",
				"color":     color,
				"birthDate": "2026-01-05",
			}}, func(_ context.Context, f BabyForm, _ *storage.Image) error {
				got = f
				return nil
			})
			if err != nil {
				t.Fatalf("Submit: %v", err)
			}
			if got.Color != color {
				t.Errorf("color submitted %q, committed %q", color, got.Color)
			}
		})
	}
}
