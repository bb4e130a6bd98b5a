package route

import (
	"iter"

	"github.com/backkem/flightbus/pkg/msg"
)

// Entry is a point-in-time copy of one live route.
type Entry struct {
	RouteID      RouteID           `cbor:"route_id"`
	MsgID        msg.MsgID         `cbor:"msg_id"`
	MapIndex     int               `cbor:"map_index"`
	Sequence     msg.SequenceCount `cbor:"sequence"`
	Destinations []Destination     `cbor:"destinations,omitempty"`
}

// Snapshot returns every live route ordered by RouteID.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entriesLocked(0, len(t.routes))
}

// All returns a lazy sequence of live (message ID, route) pairs ordered by
// RouteID. Each iteration takes its own snapshot when it starts, so the
// sequence is restartable and stable while it is being consumed.
func (t *Table) All() iter.Seq2[msg.MsgID, RouteID] {
	return func(yield func(msg.MsgID, RouteID) bool) {
		for _, e := range t.Snapshot() {
			if !yield(e.MsgID, e.RouteID) {
				return
			}
		}
	}
}

// ForEachThrottled returns the live routes among at most limit slots
// starting at slot index start, plus the start index for the next call.
// The next index is 0 once the end of the table is reached. It lets a
// diagnostic dump walk the table in bounded chunks.
func (t *Table) ForEachThrottled(start, limit int) ([]Entry, int) {
	if start < 0 {
		start = 0
	}
	if limit < 1 {
		limit = 1
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	end := start + limit
	next := end
	if end >= len(t.routes) {
		end = len(t.routes)
		next = 0
	}
	if start >= end {
		return nil, 0
	}
	return t.entriesLocked(start, end), next
}

// entriesLocked copies the live routes in slot range [start, end). Map
// positions are found by probing, so the cost follows the range and not
// the map size.
func (t *Table) entriesLocked(start, end int) []Entry {
	var out []Entry
	for i := start; i < end; i++ {
		slot := &t.routes[i]
		if !slot.live {
			continue
		}
		mapIndex := -1
		if pos, found := t.findLocked(slot.msgID, msgIDHash(slot.msgID)); found {
			mapIndex = int(pos)
		}
		e := Entry{
			RouteID:  RouteID(i + 1),
			MsgID:    slot.msgID,
			MapIndex: mapIndex,
			Sequence: slot.sequence,
		}
		if len(slot.dests) > 0 {
			e.Destinations = make([]Destination, len(slot.dests))
			copy(e.Destinations, slot.dests)
		}
		out = append(out, e)
	}
	return out
}
