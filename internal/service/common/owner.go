//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/mitchellh/go-ps"

	"github.com/oshokin/fwmeta/internal/domain/firmware"
)

// DetectOwner identifies this process for build leases.
func DetectOwner() (firmware.Owner, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return firmware.Owner{}, fmt.Errorf("hostname: %w", err)
	}

	return firmware.Owner{
		Hostname: hostname,
		PID:      os.Getpid(),
		Token:    uuid.NewString(),
	}, nil
}

// ProcessAlive reports whether a process with pid runs on this host.
// Lookup failures count as alive so a lease is never taken over by mistake.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := ps.FindProcess(pid)
	if err != nil {
		return true
	}

	return process != nil
}
