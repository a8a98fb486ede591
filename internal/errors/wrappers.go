package errors

import (
	"fmt"
	"strings"
)

// ParseError reports an unparseable binding pattern or expression
func ParseError(expression, reason string) *BaseError {
	return Newf(ParseErrorCode, "invalid expression %q: %s", expression, reason).
		WithContext("expression", expression)
}

// BindingConflict reports a path claimed by more than one action bean
func BindingConflict(path string, contenders []string) *BaseError {
	return Newf(BindingConflictErrorCode, "URL %s matches multiple bindings: %s", path, strings.Join(contenders, ", ")).
		WithContext("path", path).
		WithContext("contenders", contenders).
		WithSuggestion("give each action bean a distinct URL binding")
}

// ActionNotFound reports a request path with no action bean bound to it
func ActionNotFound(path string) *BaseError {
	return Newf(ActionNotFoundErrorCode, "could not locate an action bean bound to %s", path).
		WithContext("path", path)
}

// HandlerNotFound reports an event (or default) with no handler on a bean
func HandlerNotFound(bean, event string) *BaseError {
	if event == "" {
		return Newf(HandlerNotFoundErrorCode, "no default handler could be found for %s", bean).
			WithContext("bean", bean).
			WithSuggestion("mark one handler as the default or declare a single handler")
	}
	return Newf(HandlerNotFoundErrorCode, "no handler for event %q on %s", event, bean).
		WithContext("bean", bean).
		WithContext("event", event)
}

// MethodNotAllowed reports a handler invoked with a disallowed HTTP method
func MethodNotAllowed(bean, event, method string) *BaseError {
	return Newf(MethodNotAllowedErrorCode, "event %q on %s does not accept %s", event, bean, method).
		WithContext("bean", bean).
		WithContext("event", event).
		WithContext("method", method)
}

// Tamper reports a token that failed to decrypt or was missing where required
func Tamper(message string, cause error) *BaseError {
	return Wrap(TamperErrorCode, message, cause)
}

// Infrastructure wraps an unexpected runtime failure
func Infrastructure(operation string, cause error) *BaseError {
	return Wrap(InfrastructureErrorCode, fmt.Sprintf("failed to %s", operation), cause).
		WithContext("operation", operation)
}

// WrapConfigurationError wraps configuration-related errors
func WrapConfigurationError(configType, operation string, cause error) *BaseError {
	message := fmt.Sprintf("failed to %s configuration '%s'", operation, configType)
	return Wrap(ConfigurationErrorCode, message, cause).
		WithContext("config_type", configType).
		WithContext("operation", operation)
}

// RegisterError creates a registration error for a component
func RegisterError(componentType, name, reason string) *BaseError {
	return Newf(RegistrationErrorCode, "failed to register %s '%s': %s", componentType, name, reason).
		WithContext("component_type", componentType).
		WithContext("name", name)
}
