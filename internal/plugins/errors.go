package plugins

import (
	"errors"
	"fmt"
)

// ErrRegistrationClosed is returned by every [API] method once the
// plugin's Register call has returned.
var ErrRegistrationClosed = errors.New("plugin registration is closed")

// ErrUnknownChannel is returned when a channel id has no registered
// channel plugin.
var ErrUnknownChannel = errors.New("unknown channel")

// DuplicateIDError reports a second registration under an id that is
// already taken. Kind is "plugin", "channel", "service" or "tool".
// Duplicates are always fatal, even for optional plugins.
type DuplicateIDError struct {
	Kind     string
	ID       string
	PluginID string
	Owner    string
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	if e.Kind == "plugin" {
		return fmt.Sprintf("duplicate plugin id %q", e.ID)
	}
	return fmt.Sprintf("plugin %s: duplicate %s id %q (already registered by %s)", e.PluginID, e.Kind, e.ID, e.Owner)
}

// RegistrationError reports a non-optional plugin whose registration
// failed. Startup must abort.
type RegistrationError struct {
	PluginID string
	Err      error
}

// Error implements the error interface.
func (e *RegistrationError) Error() string {
	return fmt.Sprintf("plugin %s: registration failed: %v", e.PluginID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RegistrationError) Unwrap() error { return e.Err }
