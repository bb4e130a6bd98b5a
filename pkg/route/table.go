// Package route implements the software bus route table.
//
// The table maps a message ID to a route handle. Route handles index a
// fixed array of route slots; a separate open-addressing hash map resolves
// message IDs to handles with linear probing. Capacity is fixed at
// construction and the table never grows or rehashes.
//
// Placement is deterministic: the hash is a pure function of the message ID
// and probing always advances by one position with wraparound, so the same
// sequence of registrations and deregistrations yields the same physical
// layout in every process.
package route

import (
	"sync"

	"github.com/backkem/flightbus/pkg/msg"
)

// RouteID is an opaque handle to a route slot. Valid handles are
// 1..MaxRoutes; the zero value is InvalidRouteID.
type RouteID uint16

// InvalidRouteID means "no route". It never names a slot.
const InvalidRouteID RouteID = 0

// IsValid returns true if r is not the invalid sentinel. It does not check
// the handle against any table's capacity.
func (r RouteID) IsValid() bool {
	return r != InvalidRouteID
}

func (r RouteID) index() int {
	return int(r) - 1
}

// Destination is an opaque subscriber handle attached to a route.
// The table stores destinations but never interprets them.
type Destination uint32

// Capacity limits.
const (
	// DefaultMaxRoutes is the route capacity used when none is configured.
	DefaultMaxRoutes = 256

	// MaxRoutesLimit is the largest capacity a RouteID can address.
	MaxRoutesLimit = 0xFFFF
)

// Config configures a route table.
type Config struct {
	// MaxRoutes is the number of route slots. Values below 1 or above
	// MaxRoutesLimit are clamped. Default: DefaultMaxRoutes.
	MaxRoutes int
}

// DefaultConfig returns the default table configuration.
func DefaultConfig() Config {
	return Config{
		MaxRoutes: DefaultMaxRoutes,
	}
}

// routeEntry is one route slot.
type routeEntry struct {
	msgID    msg.MsgID
	live     bool
	sequence msg.SequenceCount
	dests    []Destination
}

// mapEntry is one hash map position. It is empty when routeID is invalid.
type mapEntry struct {
	msgID   msg.MsgID
	routeID RouteID
}

// Table is the route table.
//
// Thread Safety: All methods are safe for concurrent use. Lookups share a
// read lock; mutations hold the write lock only while updating slot and map
// state. Hashing happens before any lock is taken.
type Table struct {
	mu      sync.RWMutex
	routes  []routeEntry
	hashMap []mapEntry
	mask    uint32
	count   int
}

// NewTable creates an empty route table.
func NewTable(config Config) *Table {
	if config.MaxRoutes < 1 {
		config.MaxRoutes = 1
	}
	if config.MaxRoutes > MaxRoutesLimit {
		config.MaxRoutes = MaxRoutesLimit
	}

	mapSize := mapSizeFor(config.MaxRoutes)
	return &Table{
		routes:  make([]routeEntry, config.MaxRoutes),
		hashMap: make([]mapEntry, mapSize),
		mask:    uint32(mapSize - 1),
	}
}

// Init resets the table to empty. Existing route handles become invalid.
func (t *Table) Init() {
	t.mu.Lock()
	defer t.mu.Unlock()

	clear(t.routes)
	clear(t.hashMap)
	t.count = 0
}

// MaxRoutes returns the route capacity.
func (t *Table) MaxRoutes() int {
	return len(t.routes)
}

// MapSize returns the number of hash map positions.
func (t *Table) MapSize() int {
	return len(t.hashMap)
}

// Count returns the number of live routes.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// GetRouteID returns the route for id, or InvalidRouteID if none is
// registered. Not finding a route is a normal result, not an error.
func (t *Table) GetRouteID(id msg.MsgID) RouteID {
	home := msgIDHash(id)

	t.mu.RLock()
	defer t.mu.RUnlock()

	pos, found := t.findLocked(id, home)
	if !found {
		return InvalidRouteID
	}
	return t.hashMap[pos].routeID
}

// SetRouteID associates routeID with id in the hash map and marks the route
// slot live for id. It returns the number of collisions: occupied map
// positions owned by other message IDs that were probed past before the
// association was installed.
//
// An existing association for id is replaced in place. If routeID was live
// for a different message ID, that association is removed first. Passing
// InvalidRouteID removes any association for id and frees its slot.
//
// The caller validates its arguments; an invalid id or a routeID beyond
// the capacity is ignored and reports zero collisions.
func (t *Table) SetRouteID(id msg.MsgID, routeID RouteID) int {
	if !id.IsValid() || routeID.index() >= len(t.routes) {
		return 0
	}
	home := msgIDHash(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if !routeID.IsValid() {
		if pos, found := t.findLocked(id, home); found {
			t.freeRouteLocked(t.hashMap[pos].routeID)
		}
		return 0
	}
	return t.setLocked(id, routeID, home)
}

// Register creates a route for id in the lowest free slot and returns its
// handle together with the collision count of the map insertion.
//
// Returns ErrInvalidMsgID for an invalid id, ErrDuplicateRegistration if id
// already has a live route, and ErrCapacityExceeded if all slots are live.
// Nothing is retried.
func (t *Table) Register(id msg.MsgID) (RouteID, int, error) {
	if !id.IsValid() {
		return InvalidRouteID, 0, ErrInvalidMsgID
	}
	home := msgIDHash(id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, found := t.findLocked(id, home); found {
		return InvalidRouteID, 0, ErrDuplicateRegistration
	}
	if t.count >= len(t.routes) {
		return InvalidRouteID, 0, ErrCapacityExceeded
	}

	for i := range t.routes {
		if !t.routes[i].live {
			routeID := RouteID(i + 1)
			return routeID, t.setLocked(id, routeID, home), nil
		}
	}
	return InvalidRouteID, 0, ErrCapacityExceeded
}

// Deregister frees a route slot and removes its message ID association.
// Later lookups of that message ID return InvalidRouteID.
func (t *Table) Deregister(routeID RouteID) error {
	if !routeID.IsValid() || routeID.index() >= len(t.routes) {
		return ErrInvalidRouteID
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.routes[routeID.index()].live {
		return ErrRouteNotFound
	}
	t.freeRouteLocked(routeID)
	return nil
}

// MsgID returns the message ID owning a live route, or msg.InvalidMsgID.
func (t *Table) MsgID(routeID RouteID) msg.MsgID {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, err := t.liveLocked(routeID)
	if err != nil {
		return msg.InvalidMsgID
	}
	return e.msgID
}

// AddDestination attaches a subscriber handle to a live route.
func (t *Table) AddDestination(routeID RouteID, dest Destination) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.liveLocked(routeID)
	if err != nil {
		return err
	}
	for _, d := range e.dests {
		if d == dest {
			return ErrDuplicateDestination
		}
	}
	e.dests = append(e.dests, dest)
	return nil
}

// RemoveDestination detaches a subscriber handle and returns how many
// destinations remain on the route.
func (t *Table) RemoveDestination(routeID RouteID, dest Destination) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.liveLocked(routeID)
	if err != nil {
		return 0, err
	}
	for i, d := range e.dests {
		if d == dest {
			e.dests = append(e.dests[:i], e.dests[i+1:]...)
			return len(e.dests), nil
		}
	}
	return len(e.dests), ErrDestinationNotFound
}

// Destinations returns a copy of the destinations attached to a route, in
// attachment order. It returns nil for a route that is not live.
func (t *Table) Destinations(routeID RouteID) []Destination {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, err := t.liveLocked(routeID)
	if err != nil || len(e.dests) == 0 {
		return nil
	}
	out := make([]Destination, len(e.dests))
	copy(out, e.dests)
	return out
}

// NextSequence advances the route's sequence counter and returns the new
// value, wrapping within the 14-bit header field.
func (t *Table) NextSequence(routeID RouteID) (msg.SequenceCount, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, err := t.liveLocked(routeID)
	if err != nil {
		return 0, err
	}
	e.sequence = msg.NextSequenceCount(e.sequence)
	return e.sequence, nil
}

// Sequence returns the route's current sequence counter.
func (t *Table) Sequence(routeID RouteID) (msg.SequenceCount, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, err := t.liveLocked(routeID)
	if err != nil {
		return 0, err
	}
	return e.sequence, nil
}

// liveLocked returns the slot for a live route.
func (t *Table) liveLocked(routeID RouteID) (*routeEntry, error) {
	if !routeID.IsValid() || routeID.index() >= len(t.routes) {
		return nil, ErrInvalidRouteID
	}
	e := &t.routes[routeID.index()]
	if !e.live {
		return nil, ErrRouteNotFound
	}
	return e, nil
}

// findLocked probes for id starting at its home position. It returns the
// position holding id, or the empty position that ended the probe.
func (t *Table) findLocked(id msg.MsgID, home uint32) (uint32, bool) {
	pos := home & t.mask
	for {
		e := t.hashMap[pos]
		if !e.routeID.IsValid() {
			return pos, false
		}
		if e.msgID == id {
			return pos, true
		}
		pos = (pos + 1) & t.mask
	}
}

// setLocked installs id -> routeID and returns the collision count.
func (t *Table) setLocked(id msg.MsgID, routeID RouteID, home uint32) int {
	slot := &t.routes[routeID.index()]
	if slot.live && slot.msgID != id {
		t.freeRouteLocked(routeID)
	}

	collisions := 0
	pos := home & t.mask
	for {
		e := t.hashMap[pos]
		if !e.routeID.IsValid() {
			break
		}
		if e.msgID == id {
			if e.routeID != routeID {
				// id moves to a new slot; release the one it held.
				t.resetSlotLocked(e.routeID)
			}
			break
		}
		collisions++
		pos = (pos + 1) & t.mask
	}
	t.hashMap[pos] = mapEntry{msgID: id, routeID: routeID}

	if !slot.live {
		*slot = routeEntry{msgID: id, live: true}
		t.count++
	}
	return collisions
}

// freeRouteLocked removes a live route's map association and resets its
// slot.
func (t *Table) freeRouteLocked(routeID RouteID) {
	slot := &t.routes[routeID.index()]
	if !slot.live {
		return
	}
	if pos, found := t.findLocked(slot.msgID, msgIDHash(slot.msgID)); found {
		t.deleteAtLocked(pos)
	}
	t.resetSlotLocked(routeID)
}

// resetSlotLocked clears a route slot without touching the hash map.
func (t *Table) resetSlotLocked(routeID RouteID) {
	slot := &t.routes[routeID.index()]
	if slot.live {
		t.count--
	}
	*slot = routeEntry{}
}

// deleteAtLocked empties a map position and shifts later members of the
// probe run back so every remaining entry stays reachable from its home
// position. No tombstones are left behind.
func (t *Table) deleteAtLocked(hole uint32) {
	t.hashMap[hole] = mapEntry{}

	pos := hole
	for {
		pos = (pos + 1) & t.mask
		e := t.hashMap[pos]
		if !e.routeID.IsValid() {
			return
		}
		home := msgIDHash(e.msgID) & t.mask
		if inProbeRange(hole, pos, home) {
			continue
		}
		t.hashMap[hole] = e
		t.hashMap[pos] = mapEntry{}
		hole = pos
	}
}
