// Package relay implements the per-session state machine between
// downstream browser clients and the upstream Voice Live service.
//
// A Session owns exactly one upstream link and fans translated events out
// to any number of downstream listeners. The Registry is the process-wide
// session table; it exclusively owns session lifetimes and is passed to the
// HTTP layer at startup (empty on boot, drained on shutdown).
package relay
