package route

import (
	"errors"
	"sync"
	"testing"

	"github.com/backkem/flightbus/pkg/msg"
)

// collidingIDs returns n distinct valid message IDs whose home position in
// table t is the same.
func collidingIDs(t *testing.T, table *Table, n int) []msg.MsgID {
	t.Helper()

	byHome := make(map[uint32][]msg.MsgID)
	for id := msg.MsgID(0); id <= msg.MaxMsgID; id++ {
		home := msgIDHash(id) & table.mask
		byHome[home] = append(byHome[home], id)
		if len(byHome[home]) == n {
			return byHome[home]
		}
	}
	t.Fatalf("no %d message IDs share a home position", n)
	return nil
}

func TestNewTable(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		table := NewTable(DefaultConfig())
		if table.MaxRoutes() != DefaultMaxRoutes {
			t.Errorf("MaxRoutes() = %d, want %d", table.MaxRoutes(), DefaultMaxRoutes)
		}
		if table.MapSize() != 1024 {
			t.Errorf("MapSize() = %d, want 1024", table.MapSize())
		}
		if table.Count() != 0 {
			t.Errorf("Count() = %d, want 0", table.Count())
		}
	})

	t.Run("clamp min", func(t *testing.T) {
		table := NewTable(Config{MaxRoutes: 0})
		if table.MaxRoutes() != 1 {
			t.Errorf("MaxRoutes() = %d, want 1", table.MaxRoutes())
		}
	})

	t.Run("clamp max", func(t *testing.T) {
		table := NewTable(Config{MaxRoutes: MaxRoutesLimit + 10})
		if table.MaxRoutes() != MaxRoutesLimit {
			t.Errorf("MaxRoutes() = %d, want %d", table.MaxRoutes(), MaxRoutesLimit)
		}
	})

	t.Run("map size power of two", func(t *testing.T) {
		for _, n := range []int{1, 3, 5, 100, 256, 1000} {
			size := NewTable(Config{MaxRoutes: n}).MapSize()
			if size < 4*n || size&(size-1) != 0 {
				t.Errorf("MaxRoutes %d: MapSize() = %d", n, size)
			}
		}
	})
}

func TestRegisterAndGet(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 8})
	id := msg.TelemetryMsgID(0x10)

	routeID, _, err := table.Register(id)
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if !routeID.IsValid() {
		t.Fatal("Register() returned InvalidRouteID")
	}
	if got := table.GetRouteID(id); got != routeID {
		t.Errorf("GetRouteID() = %d, want %d", got, routeID)
	}
	if got := table.MsgID(routeID); got != id {
		t.Errorf("MsgID() = %v, want %v", got, id)
	}
	if table.Count() != 1 {
		t.Errorf("Count() = %d, want 1", table.Count())
	}
}

func TestGetRouteIDNotRegistered(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 4})
	_, _, _ = table.Register(msg.TelemetryMsgID(1))

	for _, id := range []msg.MsgID{msg.TelemetryMsgID(2), msg.CommandMsgID(1), msg.MaxMsgID, msg.InvalidMsgID} {
		if got := table.GetRouteID(id); got != InvalidRouteID {
			t.Errorf("GetRouteID(%v) = %d, want InvalidRouteID", id, got)
		}
	}
}

func TestRegisterErrors(t *testing.T) {
	t.Run("capacity exceeded", func(t *testing.T) {
		const maxRoutes = 16
		table := NewTable(Config{MaxRoutes: maxRoutes})

		seen := make(map[RouteID]bool)
		for i := 0; i < maxRoutes; i++ {
			routeID, _, err := table.Register(msg.MsgID(i * 7))
			if err != nil {
				t.Fatalf("Register %d error: %v", i, err)
			}
			if seen[routeID] {
				t.Fatalf("Register %d returned duplicate RouteID %d", i, routeID)
			}
			seen[routeID] = true
		}

		_, _, err := table.Register(msg.MsgID(0x7000))
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("Register on full table error = %v, want ErrCapacityExceeded", err)
		}
		if table.GetRouteID(msg.MsgID(0x7000)) != InvalidRouteID {
			t.Error("rejected registration became visible")
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		table := NewTable(Config{MaxRoutes: 4})
		id := msg.CommandMsgID(5)
		first, _, _ := table.Register(id)

		_, _, err := table.Register(id)
		if !errors.Is(err, ErrDuplicateRegistration) {
			t.Errorf("Register duplicate error = %v, want ErrDuplicateRegistration", err)
		}
		if got := table.GetRouteID(id); got != first {
			t.Errorf("GetRouteID() = %d after duplicate, want %d", got, first)
		}
	})

	t.Run("duplicate reported before capacity", func(t *testing.T) {
		table := NewTable(Config{MaxRoutes: 1})
		id := msg.CommandMsgID(5)
		_, _, _ = table.Register(id)

		_, _, err := table.Register(id)
		if !errors.Is(err, ErrDuplicateRegistration) {
			t.Errorf("error = %v, want ErrDuplicateRegistration", err)
		}
	})

	t.Run("invalid msgid", func(t *testing.T) {
		table := NewTable(Config{MaxRoutes: 4})
		_, _, err := table.Register(msg.InvalidMsgID)
		if !errors.Is(err, ErrInvalidMsgID) {
			t.Errorf("error = %v, want ErrInvalidMsgID", err)
		}
	})
}

func TestSetRouteIDCollisions(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 8})
	ids := collidingIDs(t, table, 3)

	if got := table.SetRouteID(ids[0], 1); got != 0 {
		t.Errorf("SetRouteID(A) collisions = %d, want 0", got)
	}
	if got := table.SetRouteID(ids[1], 2); got != 1 {
		t.Errorf("SetRouteID(B) collisions = %d, want 1", got)
	}
	if got := table.SetRouteID(ids[2], 3); got != 2 {
		t.Errorf("SetRouteID(C) collisions = %d, want 2", got)
	}

	for i, id := range ids {
		want := RouteID(i + 1)
		if got := table.GetRouteID(id); got != want {
			t.Errorf("GetRouteID(%v) = %d, want %d", id, got, want)
		}
	}

	// Re-setting an existing association counts only the entries ahead of it.
	if got := table.SetRouteID(ids[1], 2); got != 1 {
		t.Errorf("SetRouteID(B) again collisions = %d, want 1", got)
	}
	if table.Count() != 3 {
		t.Errorf("Count() = %d, want 3", table.Count())
	}
}

func TestSetRouteIDRebinds(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 4})
	a := msg.TelemetryMsgID(1)
	b := msg.TelemetryMsgID(2)

	table.SetRouteID(a, 1)
	table.SetRouteID(b, 1) // route 1 now belongs to b

	if got := table.GetRouteID(a); got != InvalidRouteID {
		t.Errorf("GetRouteID(a) = %d, want InvalidRouteID", got)
	}
	if got := table.GetRouteID(b); got != 1 {
		t.Errorf("GetRouteID(b) = %d, want 1", got)
	}

	table.SetRouteID(b, 3) // b moves to route 3, route 1 is released
	if got := table.MsgID(1); got != msg.InvalidMsgID {
		t.Errorf("MsgID(1) = %v, want invalid", got)
	}
	if table.Count() != 1 {
		t.Errorf("Count() = %d, want 1", table.Count())
	}

	table.SetRouteID(b, InvalidRouteID)
	if got := table.GetRouteID(b); got != InvalidRouteID {
		t.Errorf("GetRouteID(b) after removal = %d", got)
	}
	if table.Count() != 0 {
		t.Errorf("Count() = %d, want 0", table.Count())
	}

	// Out-of-range handles and invalid IDs are ignored.
	if got := table.SetRouteID(a, 5); got != 0 || table.Count() != 0 {
		t.Errorf("SetRouteID(out of range) = %d, Count() = %d", got, table.Count())
	}
	if got := table.SetRouteID(msg.InvalidMsgID, 1); got != 0 || table.Count() != 0 {
		t.Errorf("SetRouteID(invalid id) = %d, Count() = %d", got, table.Count())
	}
}

func TestDeregister(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 4})
	id := msg.CommandMsgID(0x20)
	routeID, _, _ := table.Register(id)

	if err := table.Deregister(routeID); err != nil {
		t.Fatalf("Deregister() error: %v", err)
	}
	if got := table.GetRouteID(id); got != InvalidRouteID {
		t.Errorf("GetRouteID() after Deregister = %d, want InvalidRouteID", got)
	}
	if table.Count() != 0 {
		t.Errorf("Count() = %d, want 0", table.Count())
	}

	if err := table.Deregister(routeID); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("second Deregister() error = %v, want ErrRouteNotFound", err)
	}
	if err := table.Deregister(InvalidRouteID); !errors.Is(err, ErrInvalidRouteID) {
		t.Errorf("Deregister(Invalid) error = %v, want ErrInvalidRouteID", err)
	}
	if err := table.Deregister(5); !errors.Is(err, ErrInvalidRouteID) {
		t.Errorf("Deregister(out of range) error = %v, want ErrInvalidRouteID", err)
	}

	// Re-registering reuses the lowest free slot.
	again, _, err := table.Register(id)
	if err != nil {
		t.Fatalf("Register() after Deregister error: %v", err)
	}
	if again != routeID {
		t.Errorf("re-registered RouteID = %d, want reused %d", again, routeID)
	}
}

// TestDeregisterKeepsProbeChain removes the head of a collision chain and
// checks that later members stay reachable.
func TestDeregisterKeepsProbeChain(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 8})
	ids := collidingIDs(t, table, 4)

	routeIDs := make([]RouteID, len(ids))
	for i, id := range ids {
		routeID, collisions, err := table.Register(id)
		if err != nil {
			t.Fatalf("Register() error: %v", err)
		}
		if collisions != i {
			t.Errorf("Register(%v) collisions = %d, want %d", id, collisions, i)
		}
		routeIDs[i] = routeID
	}

	for _, victim := range []int{0, 2} {
		if err := table.Deregister(routeIDs[victim]); err != nil {
			t.Fatalf("Deregister() error: %v", err)
		}
	}

	for i, id := range ids {
		want := routeIDs[i]
		if i == 0 || i == 2 {
			want = InvalidRouteID
		}
		if got := table.GetRouteID(id); got != want {
			t.Errorf("GetRouteID(%v) = %d, want %d", id, got, want)
		}
	}

	// The survivors were shifted back, so a new chain member probes past
	// exactly two of them.
	_, collisions, err := table.Register(ids[0])
	if err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	if collisions != 2 {
		t.Errorf("collisions = %d, want 2", collisions)
	}
}

func TestRegistrationDeterministic(t *testing.T) {
	ops := func(table *Table) {
		for i := 0; i < 40; i++ {
			_, _, _ = table.Register(msg.MsgID(i * 131 % int(msg.MaxMsgID)))
		}
		for _, r := range []RouteID{3, 17, 4, 30} {
			_ = table.Deregister(r)
		}
		for i := 0; i < 6; i++ {
			_, _, _ = table.Register(msg.CommandMsgID(msg.ApID(0x700 + i)))
		}
	}

	a := NewTable(Config{MaxRoutes: 64})
	b := NewTable(Config{MaxRoutes: 64})
	ops(a)
	ops(b)

	snapA, snapB := a.Snapshot(), b.Snapshot()
	if len(snapA) != len(snapB) {
		t.Fatalf("snapshot lengths %d != %d", len(snapA), len(snapB))
	}
	for i := range snapA {
		if snapA[i].RouteID != snapB[i].RouteID || snapA[i].MsgID != snapB[i].MsgID ||
			snapA[i].MapIndex != snapB[i].MapIndex {
			t.Errorf("entry %d differs: %+v vs %+v", i, snapA[i], snapB[i])
		}
	}
}

func TestInitResets(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 4})
	id := msg.TelemetryMsgID(9)
	routeID, _, _ := table.Register(id)
	_ = table.AddDestination(routeID, 1)

	table.Init()

	if table.Count() != 0 {
		t.Errorf("Count() = %d, want 0", table.Count())
	}
	if got := table.GetRouteID(id); got != InvalidRouteID {
		t.Errorf("GetRouteID() = %d, want InvalidRouteID", got)
	}
	if got := table.Destinations(routeID); got != nil {
		t.Errorf("Destinations() = %v, want nil", got)
	}
}

func TestDestinations(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 4})
	routeID, _, _ := table.Register(msg.TelemetryMsgID(3))

	for _, d := range []Destination{7, 3, 9} {
		if err := table.AddDestination(routeID, d); err != nil {
			t.Fatalf("AddDestination(%d) error: %v", d, err)
		}
	}
	if err := table.AddDestination(routeID, 3); !errors.Is(err, ErrDuplicateDestination) {
		t.Errorf("AddDestination duplicate error = %v, want ErrDuplicateDestination", err)
	}

	got := table.Destinations(routeID)
	want := []Destination{7, 3, 9}
	if len(got) != len(want) {
		t.Fatalf("Destinations() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Destinations()[%d] = %d, want %d", i, got[i], want[i])
		}
	}

	// Returned slice is a copy.
	got[0] = 100
	if table.Destinations(routeID)[0] != 7 {
		t.Error("Destinations() should return a copy")
	}

	remaining, err := table.RemoveDestination(routeID, 3)
	if err != nil || remaining != 2 {
		t.Errorf("RemoveDestination() = (%d, %v), want (2, nil)", remaining, err)
	}
	if _, err := table.RemoveDestination(routeID, 3); !errors.Is(err, ErrDestinationNotFound) {
		t.Errorf("RemoveDestination missing error = %v, want ErrDestinationNotFound", err)
	}
	if err := table.AddDestination(InvalidRouteID, 1); !errors.Is(err, ErrInvalidRouteID) {
		t.Errorf("AddDestination(Invalid) error = %v, want ErrInvalidRouteID", err)
	}
	if err := table.AddDestination(4, 1); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("AddDestination(not live) error = %v, want ErrRouteNotFound", err)
	}
}

func TestSequence(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 2})
	routeID, _, _ := table.Register(msg.TelemetryMsgID(3))

	if seq, _ := table.Sequence(routeID); seq != 0 {
		t.Errorf("initial Sequence() = %d, want 0", seq)
	}
	for want := msg.SequenceCount(1); want <= 3; want++ {
		seq, err := table.NextSequence(routeID)
		if err != nil {
			t.Fatalf("NextSequence() error: %v", err)
		}
		if seq != want {
			t.Errorf("NextSequence() = %d, want %d", seq, want)
		}
	}

	for i := 0; i < int(msg.MaxSequenceCount)-3; i++ {
		_, _ = table.NextSequence(routeID)
	}
	if seq, _ := table.NextSequence(routeID); seq != 0 {
		t.Errorf("NextSequence() after max = %d, want wrap to 0", seq)
	}

	if _, err := table.NextSequence(2); !errors.Is(err, ErrRouteNotFound) {
		t.Errorf("NextSequence(not live) error = %v, want ErrRouteNotFound", err)
	}
}

func TestTableConcurrentAccess(t *testing.T) {
	table := NewTable(Config{MaxRoutes: 128})

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := msg.MsgID(w*16 + i%16)
				routeID, _, err := table.Register(id)
				if err == nil {
					_ = table.AddDestination(routeID, Destination(w))
					_ = table.GetRouteID(id)
					_ = table.Deregister(routeID)
				}
				_ = table.GetRouteID(id)
				for range table.All() {
				}
			}
		}(w)
	}
	wg.Wait()

	if table.Count() != 0 {
		t.Errorf("Count() = %d after all deregistered, want 0", table.Count())
	}
}
