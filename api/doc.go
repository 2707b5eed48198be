// Package api
// Author: momentics <momentics@gmail.com>
//
// Core contracts of copybench: the Socket seen by transfer strategies,
// the Strategy interface the harness drives, completion records and the
// shared error taxonomy. Implementations live in internal/transport,
// strategy and fake.
package api
