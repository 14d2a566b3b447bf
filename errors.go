package plugreg

import "fmt"

// ConfigurationError reports an invalid registry configuration or a
// candidate that cannot be registered under one. It is always raised at
// declaration or registration time, never deferred to a later access.
type ConfigurationError struct {
	// Class is the concrete type the error is about, when there is one.
	Class string
	// Attribute is the offending key or value attribute, when relevant.
	Attribute string
	// Reason describes what went wrong.
	Reason string
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	msg := "plugreg: " + e.Reason
	if e.Class != "" {
		msg = fmt.Sprintf("plugreg: %s: %s", e.Class, e.Reason)
	}
	if e.Attribute != "" {
		msg += fmt.Sprintf(" (attribute %q)", e.Attribute)
	}
	return msg
}

// DiscoveryError reports a failure enumerating or importing modules during
// a registry's one-time discovery scan. Registrations from modules imported
// before the failure are kept; there is no rollback.
type DiscoveryError struct {
	// Module is the identifier of the module (or, for enumeration
	// failures, the package scope) that failed.
	Module string
	Err    error
}

// Error implements the error interface for DiscoveryError.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("plugreg: discovery failed for module %q: %v", e.Module, e.Err)
}

// Unwrap exposes the underlying import or enumeration failure.
func (e *DiscoveryError) Unwrap() error { return e.Err }
