package profile

import (
	"regexp"
	"strings"
)

var (
	cliWord      = regexp.MustCompile(`(^|\s)text2llm(\s|$)`)
	profileFlags = regexp.MustCompile(`(^|\s)(--profile(\s|=)|--dev(\s|$))`)
)

// FormatCommand rewrites a suggested CLI command so that it targets the
// active profile. When rawProfile names a valid non-default profile and
// the command does not already carry --profile or --dev, "--profile
// <token>" is inserted right after the text2llm word. Anything else is
// returned unchanged.
func FormatCommand(command, rawProfile string) string {
	p := Normalize(rawProfile)
	if p.IsDefault || !IsValidName(p.Token) {
		return command
	}
	if profileFlags.MatchString(command) {
		return command
	}

	loc := cliWord.FindStringIndex(command)
	if loc == nil {
		return command
	}
	// Insert after "text2llm", keeping whatever whitespace followed it.
	end := loc[0] + strings.Index(command[loc[0]:], "text2llm") + len("text2llm")
	return command[:end] + " --profile " + p.Token + command[end:]
}
