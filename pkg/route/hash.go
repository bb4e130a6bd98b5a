package route

import "github.com/backkem/flightbus/pkg/msg"

// msgIDHash mixes a message ID into 32 bits. It is a pure function of the
// ID, so two tables fed the same registrations place them identically.
func msgIDHash(id msg.MsgID) uint32 {
	h := uint32(id)
	h = ((h >> 16) ^ h) * 0x45d9f3b
	h = ((h >> 16) ^ h) * 0x45d9f3b
	h = (h >> 16) ^ h
	return h
}

// mapSizeFor returns the hash map size for a route capacity: the next
// power of two at or above four times the capacity. The map never fills,
// so every probe sequence ends at an empty position.
func mapSizeFor(maxRoutes int) int {
	size := 1
	for size < 4*maxRoutes {
		size <<= 1
	}
	return size
}

// inProbeRange reports whether home lies cyclically in (hole, pos]. An entry
// at pos whose home position is in that range must stay put when hole is
// emptied; any other entry can move back into the hole.
func inProbeRange(hole, pos, home uint32) bool {
	if hole <= pos {
		return hole < home && home <= pos
	}
	return hole < home || home <= pos
}
