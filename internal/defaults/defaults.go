// Package defaults provides the embedded example configuration written
// by the init subcommand.
package defaults

import _ "embed"

// ConfigFileMode is the permission for a freshly written config file.
// Configs may carry channel tokens.
const ConfigFileMode = 0o600

// ConfigJSON is the example config file, in JSONC.
//
//go:embed text2llm.example.json
var ConfigJSON []byte
