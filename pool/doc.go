// Package pool
// Author: momentics <momentics@gmail.com>
//
// Payload memory for the transfer strategies. Buffers are page-aligned
// regions (mmap'ed and optionally mlock'ed on Linux) with an explicit
// ownership state machine: user code may only write a buffer it holds,
// and a buffer lent to the kernel comes back only through its Loan or
// Pending guard. Messages group eight such buffers in wire order.
package pool
