//go:build linux
// +build linux

// control/platform_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific probes: the affinity mask the process may pin into and
// the zero-copy notification memory limit.

package control

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func registerOSProbes(dp *DebugProbes) {
	dp.RegisterProbe("platform.affinity_cpus", func() any {
		var set unix.CPUSet
		if err := unix.SchedGetaffinity(0, &set); err != nil {
			return err.Error()
		}
		return set.Count()
	})
	dp.RegisterProbe("sysctl.optmem_max", func() any {
		b, err := os.ReadFile("/proc/sys/net/core/optmem_max")
		if err != nil {
			return "unknown"
		}
		return strings.TrimSpace(string(b))
	})
}
