package utils

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var CountryCode = "VE"

var validate = validator.New()

// ValidateInput runs struct-tag validation and normalizes the failure into a
// single ValidationError for the first offending field.
func ValidateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return &ValidationError{
				Field:   errs[0].Field(),
				Message: "failed on rule " + errs[0].Tag(),
			}
		}
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

func IsValidEmail(email string) bool {
	pattern := `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	regex := regexp.MustCompile(pattern)
	return regex.MatchString(email)
}

var referenceNumberPattern = regexp.MustCompile(`^\d{6}$`)

// IsValidReferenceNumber reports whether an electronic payment reference is
// exactly six digits.
func IsValidReferenceNumber(ref string) bool {
	return referenceNumberPattern.MatchString(ref)
}

func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return err
	}
	if !libphonenumber.IsValidNumber(p) {
		return fmt.Errorf("phone number is not valid")
	}
	return nil
}
