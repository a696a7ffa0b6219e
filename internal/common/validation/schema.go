package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationResult collects field-level problems found before any backend
// call is made. A non-valid result satisfies error so it can be returned
// directly from form submission.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const (
	CodeRequired         = "REQUIRED_FIELD_MISSING"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodePasswordPolicy   = "PASSWORD_POLICY_VIOLATION"
	CodePasswordMismatch = "PASSWORD_MISMATCH"
	CodePlanRequired     = "PLAN_REQUIRED"
	CodeCaptchaMismatch  = "CAPTCHA_MISMATCH"
)

// MinPasswordLength is the shortest password the policy accepts, in characters.
const MinPasswordLength = 8

func (vr *ValidationResult) Error() string {
	return "validation failed: " + strings.Join(vr.GetErrorMessages(), "; ")
}

// Add records a field error and marks the result invalid.
func (vr *ValidationResult) Add(field, code, message string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message, Code: code})
}

// Err returns the result as an error, or nil when valid.
func (vr *ValidationResult) Err() error {
	if vr == nil || vr.Valid {
		return nil
	}
	return vr
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// ValidateDocument checks doc against a JSON schema expressed as a Go map and
// converts every schema violation into a field error.
func ValidateDocument(schema, doc map[string]interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	vr := &ValidationResult{Valid: true}
	for _, desc := range result.Errors() {
		field, code, message := describe(desc)
		vr.Add(field, code, message)
	}
	sort.SliceStable(vr.Errors, func(i, j int) bool { return vr.Errors[i].Field < vr.Errors[j].Field })
	return vr, nil
}

func describe(desc gojsonschema.ResultError) (field, code, message string) {
	field = desc.Field()
	switch desc.Type() {
	case "required":
		if prop, ok := desc.Details()["property"].(string); ok {
			field = prop
		}
		return field, CodeRequired, "This field is required"
	case "string_gte":
		return field, CodeRequired, "This field is required"
	case "format":
		return field, CodeInvalidFormat, "Invalid format"
	default:
		return field, CodeInvalidFormat, desc.Description()
	}
}

// PasswordProblems lists every policy rule pw violates: at least eight
// characters with an upper-case letter, a lower-case letter and a digit.
func PasswordProblems(pw string) []string {
	var problems []string
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "must contain a digit")
	}
	return problems
}

// ValidatePassword reports whether pw satisfies the password policy.
func ValidatePassword(pw string) bool {
	return len(PasswordProblems(pw)) == 0
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidateURL validates URL format
func ValidateURL(url string) bool {
	urlPattern := regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)
	return urlPattern.MatchString(url)
}
