package profile

import (
	"fmt"
	"strings"
)

// ParsedArgs is the result of [ParseArgs].
type ParsedArgs struct {
	// Profile is the selected profile name, or "" when none was given.
	Profile string
	// Args is argv with the global profile flags removed.
	Args []string
}

// ParseArgs extracts the global profile flags from argv (without the
// program name). --profile <name>, --profile=<name> and --dev are only
// recognized before the first positional argument; once a subcommand has
// been seen everything is left for it, so "gateway --dev" keeps its own
// meaning. Combining --dev with --profile is rejected, as is a --profile
// without a valid value. valueFlags names other global flags that take a
// separate value (e.g. "--config"), so that value is not mistaken for the
// subcommand.
func ParseArgs(argv []string, valueFlags ...string) (ParsedArgs, error) {
	var (
		out       ParsedArgs
		sawDev    bool
		sawNamed  bool
		inCommand bool
	)

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if inCommand || arg == "--" {
			out.Args = append(out.Args, argv[i:]...)
			break
		}

		switch {
		case arg == "--dev":
			if sawNamed {
				return ParsedArgs{}, fmt.Errorf("cannot combine --dev with --profile")
			}
			sawDev = true
			out.Profile = DevName
		case arg == "--profile" || strings.HasPrefix(arg, "--profile="):
			if sawDev {
				return ParsedArgs{}, fmt.Errorf("cannot combine --dev with --profile")
			}
			var value string
			if arg == "--profile" {
				if i+1 >= len(argv) {
					return ParsedArgs{}, fmt.Errorf("--profile requires a value")
				}
				value = argv[i+1]
				i++
			} else {
				value = strings.TrimPrefix(arg, "--profile=")
			}
			if !IsValidName(value) {
				return ParsedArgs{}, fmt.Errorf("invalid --profile value %q (use letters, digits, '_' or '-')", value)
			}
			sawNamed = true
			out.Profile = strings.TrimSpace(value)
		case takesValue(arg, valueFlags) && i+1 < len(argv):
			out.Args = append(out.Args, arg, argv[i+1])
			i++
		default:
			if !strings.HasPrefix(arg, "-") {
				inCommand = true
			}
			out.Args = append(out.Args, arg)
		}
	}

	return out, nil
}

func takesValue(arg string, valueFlags []string) bool {
	for _, f := range valueFlags {
		if arg == f {
			return true
		}
	}
	return false
}
