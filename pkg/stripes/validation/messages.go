package validation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// DefaultMessageName is the per-field fallback message key
const DefaultMessageName = "errorMessage"

// Localizer resolves a message key for a locale
type Localizer interface {
	Lookup(locale, key string) (string, bool)
}

// Bundle is an in-memory Localizer keyed by locale, then message key. The
// "" locale is the fallback for every other locale.
type Bundle map[string]map[string]string

// Lookup implements Localizer
func (b Bundle) Lookup(locale, key string) (string, bool) {
	if msgs, ok := b[locale]; ok {
		if msg, ok := msgs[key]; ok {
			return msg, true
		}
	}
	msg, ok := b[""][key]
	return msg, ok
}

// DefaultBundle carries English messages for the built-in error keys
var DefaultBundle = Bundle{
	"": {
		"validation.required.valueNotPresent":         "{0} is a required field",
		"validation.minlength.valueTooShort":          "{0} must be at least {2} characters long",
		"validation.maxlength.valueTooLong":           "{0} must be no more than {2} characters long",
		"validation.minvalue.valueBelowMinimum":       "The minimum allowed value for {0} is {2}",
		"validation.maxvalue.valueAboveMaximum":       "The maximum allowed value for {0} is {2}",
		"validation.mask.valueDoesNotMatch":           "<em>{1}</em> is not a valid {0}",
		"validation.expression.valueFailedExpression": "The value supplied ({1}) for field {0} is invalid",
		"validation.tag.valueFailedTag":               "The value supplied ({1}) for field {0} is invalid",
		"converter.number.invalidNumber":              "The value ({1}) entered in field {0} must be a valid number",
		"converter.integer.outOfRange":                "The value ({1}) entered in field {0} was out of the range {2} to {3}",
		"converter.boolean.invalidBoolean":            "The value ({1}) entered in field {0} must be true or false",
		"converter.uuid.invalidUUID":                  "The value ({1}) entered in field {0} is not a valid identifier",
		"converter.date.invalidDate":                  "The value ({1}) entered in field {0} must be a valid date",
		"converter.email.invalidEmail":                "The value ({1}) entered is not a valid email address",
		"converter.enum.notAnEnumeratedValue":         "The value \"{1}\" is not a valid value for field {0}",
		"converter.failed":                            "The value ({1}) entered in field {0} could not be converted",
	},
}

// Localize renders the error for locale. Keys are searched in order:
// actionPath.field.key, actionPath.field.errorMessage, field.errorMessage,
// actionPath.key, then the default scope.key. {0} is the field label and {1}
// the submitted value; Params fill {2} onwards.
func (e *FieldError) Localize(loc Localizer, locale string) string {
	label := FieldLabel(loc, locale, e.ActionPath, e.FieldName)

	if e.Message != "" {
		return format(e.Message, label, e.FieldValue, e.Params)
	}

	candidates := []string{
		e.ActionPath + "." + e.FieldName + "." + e.Key,
		e.ActionPath + "." + e.FieldName + "." + DefaultMessageName,
		e.FieldName + "." + DefaultMessageName,
		e.ActionPath + "." + e.Key,
		e.FullKey(),
	}
	if loc != nil {
		for _, key := range candidates {
			if tmpl, ok := loc.Lookup(locale, key); ok {
				return format(tmpl, label, e.FieldValue, e.Params)
			}
		}
	}
	return label + ": " + e.FullKey()
}

// FieldLabel resolves the display name for a field: actionPath.field, then
// field, then a pseudo-friendly name derived from the field name.
func FieldLabel(loc Localizer, locale, actionPath, field string) string {
	if field == "" {
		return ""
	}
	if loc != nil {
		if actionPath != "" {
			if label, ok := loc.Lookup(locale, actionPath+"."+field); ok {
				return label
			}
		}
		if label, ok := loc.Lookup(locale, field); ok {
			return label
		}
	}
	return FriendlyName(field)
}

// FriendlyName turns "user.firstName" into "User First Name"
func FriendlyName(field string) string {
	var sb strings.Builder
	upcaseNext := false
	for i, r := range field {
		switch {
		case i == 0:
			sb.WriteRune(unicode.ToUpper(r))
		case r == '.':
			sb.WriteRune(' ')
			upcaseNext = true
		case unicode.IsUpper(r):
			sb.WriteRune(' ')
			sb.WriteRune(r)
			upcaseNext = false
		case upcaseNext:
			sb.WriteRune(unicode.ToUpper(r))
			upcaseNext = false
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func format(tmpl, label, value string, params []interface{}) string {
	args := append([]interface{}{label, value}, params...)
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] != '{' {
			sb.WriteByte(tmpl[i])
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			sb.WriteString(tmpl[i:])
			break
		}
		n, err := strconv.Atoi(tmpl[i+1 : i+end])
		if err != nil || n < 0 || n >= len(args) {
			sb.WriteString(tmpl[i : i+end+1])
		} else {
			sb.WriteString(toString(args[n]))
		}
		i += end
	}
	return sb.String()
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
