// Package localapi talks to the game client's local REST endpoint. The
// client writes its ephemeral credentials to a lockfile on startup;
// every request authenticates with them over the self-signed local TLS
// listener.
package localapi

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Credentials are the fields of the client lockfile:
// name:pid:port:password:protocol.
type Credentials struct {
	Name     string
	PID      int
	Port     int
	Password string
	Protocol string
}

// ParseLockfile parses lockfile content. All five fields must be present
// and pid/port numeric; the password may contain anything except a colon.
func ParseLockfile(content string) (Credentials, error) {
	parts := strings.Split(strings.TrimSpace(content), ":")
	if len(parts) != 5 {
		return Credentials{}, fmt.Errorf("localapi: lockfile has %d fields, want 5", len(parts))
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Credentials{}, fmt.Errorf("localapi: lockfile pid %q: %w", parts[1], err)
	}
	port, err := strconv.Atoi(parts[2])
	if err != nil {
		return Credentials{}, fmt.Errorf("localapi: lockfile port %q: %w", parts[2], err)
	}
	if port < 1 || port > 65535 {
		return Credentials{}, fmt.Errorf("localapi: lockfile port %d out of range", port)
	}
	if parts[3] == "" {
		return Credentials{}, fmt.Errorf("localapi: lockfile password is empty")
	}
	return Credentials{
		Name:     parts[0],
		PID:      pid,
		Port:     port,
		Password: parts[3],
		Protocol: parts[4],
	}, nil
}

// ReadLockfile reads and parses the lockfile at path.
func ReadLockfile(path string) (Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("localapi: read lockfile: %w", err)
	}
	return ParseLockfile(string(raw))
}
