// File: api/role.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Role selects which half of a strategy a worker drives.
type Role int

const (
	// Sender transmits messages (server side).
	Sender Role = iota
	// Receiver reads messages (client side).
	Receiver
)

func (r Role) String() string {
	if r == Sender {
		return "sender"
	}
	return "receiver"
}

// Preparer is implemented by strategies that configure the socket once
// before the first transfer. Failure is a setup error for the connection.
type Preparer interface {
	Prepare(s Socket) error
}
