package endpoint

import (
	"fmt"
	"regexp"
	"strconv"
)

// segmentRegex matches `name` or `name[1]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// Endpoint is one side of a connection between two tasks.
type Endpoint struct {
	Task string
	Port int
}

// isValidName rejects names that are technically matched but meaningless.
func isValidName(name string) bool {
	return name != "-" && name != "_"
}

// Parse creates an Endpoint from its `task[port]` form.
func Parse(raw string) (Endpoint, error) {
	if raw == "" {
		return Endpoint{}, fmt.Errorf("endpoint cannot be empty")
	}
	matches := segmentRegex.FindStringSubmatch(raw)
	if matches == nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint format: %q", raw)
	}
	if !isValidName(matches[1]) {
		return Endpoint{}, fmt.Errorf("invalid task name: %q", matches[1])
	}
	e := Endpoint{Task: matches[1]}
	if matches[2] != "" {
		port, err := strconv.Atoi(matches[2])
		if err != nil {
			// Only reachable for indexes that overflow int.
			return Endpoint{}, fmt.Errorf("invalid port in %q: %w", raw, err)
		}
		e.Port = port
	}
	return e, nil
}

// String serializes the endpoint in its canonical `task[port]` form.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s[%d]", e.Task, e.Port)
}
