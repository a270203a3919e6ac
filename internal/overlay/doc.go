// Package overlay implements the routing core of a Kademlia-style,
// XOR-metric overlay network: the routing table, the client routing
// table, and the derived group matrix, plus the network statistics and
// change-notification machinery that sit on top of them.
//
// The core performs no I/O and originates no network traffic; it is a
// pure in-memory data structure mutated by transport-driven events
// (connect, lose, report-close-group) and queried by request routing,
// account placement, and group-consensus code that lives outside this
// package.
package overlay
