// control/platform.go
// Author: momentics <momentics@gmail.com>
//
// Host probes shared by every platform.

package control

import (
	"runtime"

	"github.com/momentics/copybench/internal/transport"
)

// RegisterPlatformProbes adds CPU and socket feature probes.
func RegisterPlatformProbes(dp *DebugProbes) {
	feats := transport.DetectFeatures()
	dp.RegisterProbe("platform.cpus", func() any {
		return runtime.NumCPU()
	})
	dp.RegisterProbe("platform.os", func() any { return feats.OS })
	dp.RegisterProbe("platform.kernel", func() any { return feats.Kernel })
	dp.RegisterProbe("socket.scatter_gather", func() any { return feats.ScatterGather })
	dp.RegisterProbe("socket.zerocopy", func() any {
		if feats.ZeroCopyErr != nil {
			return feats.ZeroCopyErr.Error()
		}
		return feats.ZeroCopy
	})
	dp.RegisterProbe("memory.pinning", func() any { return feats.Pinning })
	registerOSProbes(dp)
}
