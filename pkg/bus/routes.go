package bus

import (
	"github.com/backkem/flightbus/pkg/pipe"
	"github.com/backkem/flightbus/pkg/route"
)

// Subscription describes one live route and the pipes it feeds.
type Subscription struct {
	Route route.Entry
	Pipes []pipe.ID
}

// Subscriptions returns every live route ordered by route ID.
func (b *Bus) Subscriptions() []Subscription {
	entries := b.routes.Snapshot()
	out := make([]Subscription, len(entries))
	for i, e := range entries {
		out[i].Route = e
		for _, d := range e.Destinations {
			out[i].Pipes = append(out[i].Pipes, pipe.ID(d))
		}
	}
	return out
}

// RouteDump returns the deterministic CBOR dump of the route table.
func (b *Bus) RouteDump() ([]byte, error) {
	return b.routes.MarshalDump()
}

// RouteDigest returns the BLAKE2b-256 digest of the route table dump.
func (b *Bus) RouteDigest() ([32]byte, error) {
	return b.routes.Digest()
}

// PipeName returns the name of a pipe, or "" if it does not exist.
func (b *Bus) PipeName(id pipe.ID) string {
	p, err := b.pipes.Get(id)
	if err != nil {
		return ""
	}
	return p.Name()
}
