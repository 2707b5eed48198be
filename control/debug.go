// control/debug.go
// Author: momentics <momentics@gmail.com>
//
// Named probes describing the host and the run, dumped once at debug level.

package control

import (
	"fmt"
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// DebugProbes holds registered probe functions.
type DebugProbes struct {
	probes *xsync.MapOf[string, func() any]
}

// NewDebugProbes creates a probe registry.
func NewDebugProbes() *DebugProbes {
	return &DebugProbes{probes: xsync.NewMapOf[string, func() any]()}
}

// RegisterProbe inserts a named debug hook, replacing any previous one.
func (dp *DebugProbes) RegisterProbe(name string, fn func() any) {
	dp.probes.Store(name, fn)
}

// DumpState returns output of all probes.
func (dp *DebugProbes) DumpState() map[string]any {
	out := make(map[string]any, dp.probes.Size())
	dp.probes.Range(func(k string, fn func() any) bool {
		out[k] = fn()
		return true
	})
	return out
}

// String renders the probes as sorted key=value lines.
func (dp *DebugProbes) String() string {
	state := dp.DumpState()
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%v\n", k, state[k])
	}
	return sb.String()
}
