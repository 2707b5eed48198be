// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for CPU affinity. Platform-specific implementations
// live in affinity_linux.go and affinity_stub.go, guarded by build tags.

package affinity

import "runtime"

// SetAffinity pins the current OS thread to a given logical CPU.
// On unsupported platforms it returns an error.
func SetAffinity(cpuID int) error {
	return setAffinityPlatform(cpuID)
}

// PinWorker locks the calling goroutine to its OS thread and pins that
// thread to CPU index modulo the CPU count. It returns the chosen CPU.
// The goroutine stays locked for the rest of its life.
func PinWorker(index int) (int, error) {
	runtime.LockOSThread()
	cpu := index % runtime.NumCPU()
	return cpu, setAffinityPlatform(cpu)
}
