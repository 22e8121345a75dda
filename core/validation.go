package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxAmount is the largest accepted amount. Its value in cents (1e13) is
// exactly representable as a float64, so toCents cannot overflow.
const maxAmount = 1e11

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := parseAmount(fl.Field().String())
		return err == nil
	})
	return v
}

// parseAmount coerces a decimal string into a finite, non-negative number.
func parseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, errors.New("amount is required")
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.New("amount must be a number")
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("amount must be a finite number")
	}
	if f < 0 {
		return 0, errors.New("amount must not be negative")
	}
	if f > maxAmount {
		return 0, errors.New("amount is too large")
	}
	return f, nil
}

// toCents converts a decimal amount to integer cents, rounding half away from zero.
func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// fieldMessages turns validator errors into one short message per field,
// keyed by the field's wire name.
func fieldMessages(err error, names map[string]string) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return out
	}
	for _, fe := range verrs {
		name := names[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		out[name] = messageFor(name, fe)
	}
	return out
}

func messageFor(name string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "email":
		return "enter a valid e-mail address"
	case "min":
		return name + " must be at least " + fe.Param() + " characters"
	case "oneof":
		return name + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "amount":
		if _, err := parseAmount(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
		return "invalid amount"
	case "uuid":
		return name + " must be a valid id"
	default:
		return name + " is invalid"
	}
}
