// Package strategy
// Author: momentics <momentics@gmail.com>
//
// Transfer strategies compared by the benchmark. Each variant implements
// api.Strategy for one role and owns every buffer it touches:
//
//	TwoCopy        one send/recv call per field
//	ScatterGather  one sendmsg/recvmsg per message over eight iovecs
//	ZeroCopy       MSG_ZEROCOPY from one pinned buffer, gated on completions
//
// The harness is written once against api.Strategy and picks the variant
// through New.
package strategy
