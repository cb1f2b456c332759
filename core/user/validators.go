package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/quizhub/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdTexts = map[string]string{
		pwdMinLenTag:    pwdMinLenText,
		pwdNoSpaceTag:   pwdNoSpaceText,
		pwdNotAllNumTag: pwdNotAllNumText,
		pwdAttrSimTag:   pwdAttrSimText,
	}
)

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, NewTeacher{})
	for tag, text := range pwdTexts {
		core.RegisterCustomTranslation(validate, translator, tag, text)
	}
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	return IsValidRole(fl.Field().String())
}

// userStructValidation applies the password policy on NewUser and NewTeacher structs.
func userStructValidation(sl validator.StructLevel) {
	var pwd, name, email string
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		pwd, name, email = usr.Password, usr.FullName, usr.Email
	case NewTeacher:
		pwd, name, email = usr.Password, usr.FullName, usr.Email
	default:
		return
	}
	if pwd == "" {
		return // reported by `required`
	}
	if tag := checkPassword(pwd, name, email); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// validatePasswordPolicy is checkPassword for callers outside of struct validation.
func validatePasswordPolicy(pwd string, attrs ...string) error {
	if tag := checkPassword(pwd, attrs...); tag != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: pwdTexts[tag]})
	}
	return nil
}

// checkPassword applies the password policy and returns the tag of the first violated rule:
// - minLen: 8
// - no whitespace
// - no all numeric
// - no user attrs similarity
func checkPassword(pwd string, attrs ...string) string {
	var digitCount int

	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == pwdLen {
		return pwdNotAllNumTag
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if getRatio(lpwd, strings.ToLower(attr)) >= pwdMaxSim {
			return pwdAttrSimTag
		}
	}
	return ""
}
