// File: internal/transport/feature_detect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Advertises the detected copy-path capabilities of the platform.

package transport

import (
	"fmt"
	"runtime"
)

// Features describes what the running kernel offers to the strategies.
type Features struct {
	OS            string
	Kernel        string
	ScatterGather bool
	ZeroCopy      bool
	// ZeroCopyErr explains why zero-copy is unavailable.
	ZeroCopyErr error
	// Pinning reports whether a probe page could be locked in RAM.
	Pinning bool
}

func (f Features) String() string {
	zc := "yes"
	if !f.ZeroCopy {
		zc = fmt.Sprintf("no (%v)", f.ZeroCopyErr)
	}
	return fmt.Sprintf("os=%s kernel=%s scatter-gather=%t zero-copy=%s pinning=%t",
		f.OS, f.Kernel, f.ScatterGather, zc, f.Pinning)
}

// DetectFeatures probes the kernel once. Results are not cached.
func DetectFeatures() Features {
	f := Features{OS: runtime.GOOS}
	detectPlatform(&f)
	return f
}
