// Package mux implements the multiplexer/port layer of §4.E: sharing
// one upstream remote-OD-access link among many independent client
// ports, each with its own ready/not-ready lifecycle and session-ID
// based stale-response rejection.
//
// State machines, the return-stack routing bit layout, and the
// callback-serialization rules are grounded bit-exact on
// original_source/src/cood/remote_access/infrastructure/
// Multiplexer.cpp. Registration/notification-fan-out style is
// grounded on pkg/network/network.go's busy-subscriber map pattern,
// the closest analogue in the pack to per-port client registration.
package mux

// sessionOlderThan reports whether a is an older session ID than b,
// using wrap-safe modular distance comparison rather than a plain `<`
// (design note §9, Open Question #3: "very long-lived ports with many
// reconnects could wrap [a uint8 counter]"). a is considered older
// than b when advancing from a to b via increments-mod-256 is shorter
// than advancing from b to a; equal values are not "older".
func sessionOlderThan(a, b uint8) bool {
	if a == b {
		return false
	}
	return int8(b-a) > 0
}
