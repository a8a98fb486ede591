package binder

import (
	"strings"

	"github.com/stripes-go/stripes/internal/errors"
	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/crypto"
	"github.com/stripes-go/stripes/pkg/stripes/param"
)

// fieldDelimiter separates names inside the fields-present manifest
const fieldDelimiter = "||"

// EncodeFieldsPresent renders the __fp value for a form listing names
func EncodeFieldsPresent(codec *crypto.Codec, names []string) (string, error) {
	plain := strings.Join(names, fieldDelimiter)
	if codec == nil {
		return plain, nil
	}
	return codec.Encrypt(plain)
}

// fieldsPresent decodes the request's manifest of fields rendered on the
// submitting form. Wizards fail closed: a missing manifest outside a start
// event, or one that does not decrypt, is tampering.
func fieldsPresent(ctx *action.Context, wizard *action.Wizard) (map[string]bool, error) {
	raw := ctx.Request.Param(param.FieldsPresent)
	if raw == "" {
		if wizard != nil && !wizard.IsStartEvent(ctx.EventName) {
			return nil, errors.Tamper("wizard form submitted without the "+param.FieldsPresent+" field list", nil).
				WithContext("event", ctx.EventName)
		}
		return map[string]bool{}, nil
	}

	plain := raw
	if ctx.Codec != nil {
		var err error
		if plain, err = ctx.Codec.Decrypt(raw); err != nil {
			if wizard != nil {
				return nil, err
			}
			return map[string]bool{}, nil
		}
	}

	fields := make(map[string]bool)
	for _, name := range strings.Split(plain, fieldDelimiter) {
		if name = strings.TrimSpace(name); name != "" {
			fields[name] = true
		}
	}
	return fields, nil
}
