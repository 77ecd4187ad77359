package schema

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/slotwise/slotwise/core"
)

// postgres truncates identifiers past this many bytes
const maxIdentLen = 63

var (
	identTag     = "ident"
	identPattern = `^[A-Za-z0-9_]+$`
	identText    = "only letters, digits and underscores are allowed"

	departmentTag  = "department"
	departmentText = "this name is reserved or too long for a department"
)

// InitValidators registers the department name rules on `validate`. core.InitValidators must run first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterPattern(validate, translator, identTag, identPattern, identText)

	_ = validate.RegisterValidation(departmentTag, func(fl validator.FieldLevel) bool {
		return IsDepartmentName(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, departmentTag, departmentText)
}

// IsDepartmentName reports whether name can hold uploaded department tables.
// System schemas and generated timetables are off limits.
func IsDepartmentName(name string) bool {
	return len(name) <= maxIdentLen &&
		!IsProtected(name) &&
		!strings.HasPrefix(strings.ToLower(name), TimetablePrefix)
}
