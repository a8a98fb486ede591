package demo

import "github.com/stripes-go/stripes/pkg/stripes/validation"

// Messages returns the built-in messages plus the demo's own, with a French
// translation of the common ones
func Messages() validation.Bundle {
	bundle := validation.Bundle{"": {}, "fr": {}}
	for key, msg := range validation.DefaultBundle[""] {
		bundle[""][key] = msg
	}
	for key, msg := range map[string]string{
		"widget.nameTaken":        "A widget named {2} already exists",
		"signup.passwordMismatch": "The passwords do not match",
		"signup.mustAgree":        "You must accept the terms to continue",
		"/widget.widget.name":     "Name",
		"/widget.widget.price":    "Price",
	} {
		bundle[""][key] = msg
	}
	bundle["fr"]["validation.required.valueNotPresent"] = "{0} est obligatoire"
	bundle["fr"]["signup.mustAgree"] = "Vous devez accepter les conditions"
	return bundle
}
