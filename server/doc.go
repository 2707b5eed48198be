// Package server
// Author: momentics <momentics@gmail.com>
//
// Acceptor for the sending side of a copybench run. Each accepted
// connection gets its own worker, strategy instance and OS thread.
package server
