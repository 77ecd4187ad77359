package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/slotwise/slotwise/core"
)

const pwdSpecialChars = "@$!%*?&"

var (
	usernameTag     = "username"
	usernamePattern = `^[\w ]+$`
	usernameText    = "usernames may only contain letters, digits, spaces and underscores"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("Password must be at least %d characters long", pwdMinLen)

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "Password must contain at least one uppercase letter, one lowercase letter, one number, and one special character"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "Password cannot be similar to the username"
)

// InitValidators registers the username rule and password policy on `validate`.
// core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterPattern(validate, translator, usernameTag, usernamePattern, usernameText)
	validate.RegisterStructValidation(userStructValidation, NewUser{}, ChangePassword{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		if usr.Password != "" {
			validatePassword(usr.Password, usr.Username, "password", sl)
		}
	case ChangePassword:
		if usr.NewPassword != "" {
			validatePassword(usr.NewPassword, usr.Username, "newPassword", sl)
		}
	}
}

// validatePassword applies the password policy:
// - minLen: 8
// - complexity: 1 upper, 1 lower, 1 digit, 1 special among @$!%*?&; other characters are allowed
// - not similar to the username
func validatePassword(pwd, uname, field string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, field, field, tag, "")
	}

	if len([]rune(pwd)) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}

	var hasUpper, hasLower, hasDig, hasSpecial bool
	for _, char := range pwd {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDig = true
		case strings.ContainsRune(pwdSpecialChars, char):
			hasSpecial = true
		}
	}
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		reportErr(pwdComplexityTag)
		return
	}

	if uname != "" {
		ratio := difflib.NewMatcher(strings.Split(strings.ToLower(pwd), ""), strings.Split(strings.ToLower(uname), "")).QuickRatio()
		if ratio > pwdMaxSim {
			reportErr(pwdAttrSimTag)
		}
	}
}
