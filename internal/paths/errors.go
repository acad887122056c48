package paths

import "fmt"

// ConfigError reports that a required path input could not be resolved,
// for example when neither a state directory override nor any home
// directory variable is present. It is fatal to whatever operation
// needed the path; resolvers never substitute the working directory.
type ConfigError struct {
	// What names the path being resolved (e.g. "state directory").
	What string
	// Missing lists the variables that were consulted and found empty.
	Missing []string
	// Err is an underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("cannot resolve %s", e.What)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(": none of %v is set", e.Missing)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}
