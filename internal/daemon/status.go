package daemon

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// ShowProperties are the properties requested from systemctl show.
var ShowProperties = []string{"ActiveState", "SubState", "MainPID", "ExecMainStatus", "ExecMainCode"}

// ServiceStatus is the parsed form of a systemd status report.
type ServiceStatus struct {
	ActiveState string `json:"active_state"`
	SubState    string `json:"sub_state"`

	// ExecMainStatus is only meaningful when HasExecMainStatus is set.
	ExecMainStatus    int  `json:"exec_main_status"`
	HasExecMainStatus bool `json:"has_exec_main_status"`

	ExecMainCode string `json:"exec_main_code"`
}

// Running reports whether the unit is active and running.
func (s ServiceStatus) Running() bool {
	return s.ActiveState == "active" && s.SubState == "running"
}

// ParseError reports a malformed status report. A service whose status
// cannot be parsed must be shown as unknown, never as inactive.
type ParseError struct {
	Key    string
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse service status: %s: %s", e.Key, e.Reason)
}

// ParseSystemdShow parses the KEY=VALUE output of
// "systemctl show --property=...". ActiveState, SubState and
// ExecMainCode are required; ExecMainStatus is optional but must be an
// integer when present. MainPID is accepted and dropped. Unknown keys
// are ignored and CRLF line endings are tolerated.
func ParseSystemdShow(report string) (ServiceStatus, error) {
	var (
		st   ServiceStatus
		seen = make(map[string]bool, 4)
	)

	sc := bufio.NewScanner(strings.NewReader(report))
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "ActiveState":
			st.ActiveState = value
		case "SubState":
			st.SubState = value
		case "ExecMainCode":
			st.ExecMainCode = value
		case "ExecMainStatus":
			n, err := strconv.Atoi(value)
			if err != nil {
				return ServiceStatus{}, &ParseError{Key: key, Reason: fmt.Sprintf("not an integer: %q", value)}
			}
			st.ExecMainStatus = n
			st.HasExecMainStatus = true
		case "MainPID":
		default:
			continue
		}
		seen[key] = true
	}
	if err := sc.Err(); err != nil {
		return ServiceStatus{}, &ParseError{Key: "report", Reason: err.Error()}
	}

	for _, key := range []string{"ActiveState", "SubState", "ExecMainCode"} {
		if !seen[key] {
			return ServiceStatus{}, &ParseError{Key: key, Reason: "missing"}
		}
	}
	return st, nil
}
