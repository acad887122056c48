// Package profile normalizes deployment profile names. A profile selects
// a namespaced instance on one host: its own state directory, its own
// service unit, its own CLI invocation. Every component that turns a
// profile into a path or a unit name goes through [Normalize] so the
// derived names can never disagree about trimming or case.
package profile

import (
	"regexp"
	"strings"
)

// DefaultName is the profile name that is treated as "no profile".
const DefaultName = "default"

// DevName is the profile selected by the --dev shortcut.
const DevName = "dev"

// Profile is the canonical form of a raw profile name.
type Profile struct {
	// Token is the trimmed profile name, or "" for the default profile.
	Token string
	// IsDefault reports whether the raw name selected the default profile.
	IsDefault bool
}

// Normalize trims raw and decides whether it names the default profile.
// An empty value or any casing of "default" is the default profile and
// contributes nothing to derived names.
func Normalize(raw string) Profile {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, DefaultName) {
		return Profile{IsDefault: true}
	}
	return Profile{Token: trimmed}
}

// Suffix returns base for the default profile and base-<token> otherwise.
func (p Profile) Suffix(base string) string {
	if p.IsDefault {
		return base
	}
	return base + "-" + p.Token
}

// String returns the token, or "default" for the default profile.
func (p Profile) String() string {
	if p.IsDefault {
		return DefaultName
	}
	return p.Token
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// IsValidName reports whether raw, once trimmed, is usable as a profile
// name on the command line and in file names.
func IsValidName(raw string) bool {
	return validName.MatchString(strings.TrimSpace(raw))
}
