// Package control
// Author: momentics <momentics@gmail.com>
//
// Run-time observation of a benchmark run: live progress counters,
// Prometheus text export of the final figures, and debug probes that
// describe the host the run executes on.
//
// Workers update their counters with atomics only; readers aggregate on
// their own schedule so the measured loop is not perturbed.
package control
