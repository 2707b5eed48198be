// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Concurrency primitives for the benchmark harness: a one-way stop token
// shared by all workers and a supervisor that runs each worker on its own
// OS thread and joins them all.
package concurrency
