package buildcontext

import (
	"context"
	"runtime"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DetectHostFacts probes the local machine for the facts C2 seeds a
// Context with: GPU vendor/architecture are left to the caller (they
// come from a GPU-specific probe out of this package's scope), host OS
// comes from the Go runtime, and container-engine activity is checked
// against systemd via go-systemd/dbus.
func DetectHostFacts(ctx context.Context) HostFacts {
	facts := HostFacts{
		HostOS: runtime.GOOS,
	}
	facts.ContainerEngineActive = containerEngineActive(ctx)
	return facts
}

// containerEngineActive reports whether docker.service or
// containerd.service is active on the local systemd instance. Any dbus
// connection failure is treated as "unknown" (false), never fatal: this
// fact only feeds dockerfile # CONTEXT filtering, it never gates a build.
func containerEngineActive(ctx context.Context) bool {
	dialCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn, err := dbus.NewSystemdConnectionContext(dialCtx)
	if err != nil {
		// D-Bus is unavailable (macOS, minimal containers, no systemd):
		// treat the fact as unknown rather than failing the caller.
		return false
	}
	defer conn.Close()

	for _, unit := range []string{"docker.service", "containerd.service"} {
		props, err := conn.GetAllPropertiesContext(dialCtx, unit)
		if err != nil {
			continue
		}
		if state, ok := props["ActiveState"].(string); ok && state == "active" {
			return true
		}
	}
	return false
}
