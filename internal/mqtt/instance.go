package mqtt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// InstanceIDFile is the file under the state directory holding the
// node's instance id.
const InstanceIDFile = "instance_id"

// LoadOrCreateInstanceID returns the node's instance id from stateDir,
// generating and persisting a UUIDv7 on first use. The id is the Home
// Assistant device identifier, so renaming device_name keeps entity
// history.
func LoadOrCreateInstanceID(stateDir string) (string, error) {
	path := filepath.Join(stateDir, InstanceIDFile)

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate instance id: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return "", fmt.Errorf("create state dir %s: %w", stateDir, err)
	}
	if err := os.WriteFile(path, []byte(id.String()+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("persist instance id to %s: %w", path, err)
	}
	return id.String(), nil
}
