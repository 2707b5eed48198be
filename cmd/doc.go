// Package cmd implements the command-line interface of copybench.
//
// The package is organized into several subpackages:
//
//   - serve: the sending side, accepting a fixed number of connections
//   - run: the receiving side, printing the METRICS line
//   - loopback: both sides in one process on an ephemeral port
//   - util: shared flag and configuration handling (internal use)
//
// Every flag can also be set as COPYBENCH_<FLAG> in the environment or in
// a .env / .env.local file.
package cmd
