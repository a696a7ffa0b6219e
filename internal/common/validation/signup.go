package validation

import "strings"

// SignupForm is the account and profile data entered at enrollment.
type SignupForm struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Affiliation    string `json:"affiliation"`
	Department     string `json:"department"`
	City           string `json:"city"`
	Country        string `json:"country"`
	Email          string `json:"email"`
	Password       string `json:"password"`
	RepeatPassword string `json:"repeatPassword"`
	Phone          string `json:"phone,omitempty"`
	Title          string `json:"title,omitempty"`
	Captcha        string `json:"-"`
}

func nonEmpty() map[string]interface{} {
	return map[string]interface{}{"type": "string", "minLength": 1}
}

// SignupSchema covers presence and email format. Password complexity is
// checked in Go because the schema regex dialect has no lookahead.
var SignupSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"firstName":      nonEmpty(),
		"lastName":       nonEmpty(),
		"affiliation":    nonEmpty(),
		"department":     nonEmpty(),
		"city":           nonEmpty(),
		"country":        nonEmpty(),
		"email":          map[string]interface{}{"type": "string", "minLength": 1, "format": "email"},
		"password":       nonEmpty(),
		"repeatPassword": nonEmpty(),
	},
	"required": []interface{}{
		"firstName", "lastName", "affiliation", "department",
		"city", "country", "email", "password", "repeatPassword",
	},
}

func (f SignupForm) document() map[string]interface{} {
	doc := map[string]interface{}{}
	set := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			doc[key] = value
		}
	}
	set("firstName", f.FirstName)
	set("lastName", f.LastName)
	set("affiliation", f.Affiliation)
	set("department", f.Department)
	set("city", f.City)
	set("country", f.Country)
	set("email", strings.TrimSpace(f.Email))
	set("password", f.Password)
	set("repeatPassword", f.RepeatPassword)
	return doc
}

// ValidateSignup returns every field problem in form. Blank values are
// reported as missing.
func ValidateSignup(form SignupForm) *ValidationResult {
	vr, err := ValidateDocument(SignupSchema, form.document())
	if err != nil {
		vr = &ValidationResult{Valid: true}
		vr.Add("form", CodeInvalidFormat, err.Error())
	}

	if form.Password != "" {
		if problems := PasswordProblems(form.Password); len(problems) > 0 {
			vr.Add("password", CodePasswordPolicy, "Password "+strings.Join(problems, ", "))
		}
	}
	if form.RepeatPassword != "" && form.RepeatPassword != form.Password {
		vr.Add("repeatPassword", CodePasswordMismatch, "Passwords do not match")
	}
	return vr
}

// CaptchaMatches compares a typed captcha against the generated code,
// ignoring case and surrounding space.
func CaptchaMatches(typed, generated string) bool {
	if generated == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(typed), generated)
}
