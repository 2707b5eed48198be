// Package client
// Author: momentics <momentics@gmail.com>
//
// Initiator for the receiving side of a copybench run and the METRICS
// line it reports.
package client
