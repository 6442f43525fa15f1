package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"tienda/internal/domain"
)

var (
	reUsername = regexp.MustCompile(`^[\w.@+-]{1,150}$`)
	rePhone    = regexp.MustCompile(`^[0-9+() .-]{0,20}$`)
)

var v = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report fields by their form name so messages line up with inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return reUsername.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return rePhone.MatchString(fl.Field().String())
	})
}

// Struct validates tagged fields and returns field -> message for the failures.
func Struct(data any) *domain.ValidationError {
	out := &domain.ValidationError{}
	err := v.Struct(data)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out.Add("__all__", err.Error())
		return out
	}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value has at least %s characters.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "eqfield":
		return "The two password fields didn't match."
	case "username":
		return "Enter a valid username. Letters, digits and @/./+/-/_ only."
	case "phone":
		return "Enter a valid phone number."
	}
	return "Invalid value."
}

// Q normalizes a search query: trims and caps the length.
func Q(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}

// ID parses a positive integer identifier.
func ID(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Decimal parses a decimal amount; blank or malformed input reports false.
func Decimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Quantity parses a line-item quantity (1..9999).
func Quantity(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 9999 {
		return 0, false
	}
	return n, true
}

// Stock parses a non-negative stock count.
func Stock(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Page parses a 1-based page number, defaulting to 1.
func Page(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Password returns a user-facing problem with pw, or "" when acceptable.
func Password(pw, username string) string {
	l := len(pw)
	switch {
	case l < 8:
		return "This password is too short. It must contain at least 8 characters."
	case l > 128:
		return "This password is too long."
	case strings.Trim(pw, "0123456789") == "":
		return "This password is entirely numeric."
	case username != "" && strings.EqualFold(pw, username):
		return "The password is too similar to the username."
	}
	return ""
}
