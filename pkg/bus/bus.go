// Package bus implements the software bus: tasks create pipes, subscribe
// them to message IDs, and publish messages that are copied into every
// subscribed pipe.
//
// The bus owns one route table and one pipe registry for its lifetime.
// Routes are created on the first subscription to a message ID and removed
// when the last subscribed pipe leaves.
package bus

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/backkem/flightbus/pkg/msg"
	"github.com/backkem/flightbus/pkg/pipe"
	"github.com/backkem/flightbus/pkg/route"
	"github.com/pion/logging"
)

// Config configures a Bus.
type Config struct {
	// MaxRoutes is the number of distinct message IDs that can be routed.
	// Default: route.DefaultMaxRoutes
	MaxRoutes int

	// MaxPipes is the number of pipes that can exist at once.
	// Default: pipe.DefaultMaxPipes
	MaxPipes int

	// DefaultPipeDepth is used for pipes created with depth 0.
	// Default: pipe.DefaultDepth
	DefaultPipeDepth int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{
		MaxRoutes:        route.DefaultMaxRoutes,
		MaxPipes:         pipe.DefaultMaxPipes,
		DefaultPipeDepth: pipe.DefaultDepth,
	}
}

// Stats is a snapshot of bus counters.
type Stats struct {
	// Published counts messages accepted by Publish.
	Published uint64

	// Delivered counts successful copies into pipes.
	Delivered uint64

	// NoSubscribers counts published messages with no route.
	NoSubscribers uint64

	// PipeOverflows counts copies dropped because a pipe was full.
	PipeOverflows uint64

	// SendErrors counts copies dropped for any other reason.
	SendErrors uint64

	// RouteCollisions sums the hash collisions reported when routes were
	// created.
	RouteCollisions uint64

	// Routes is the number of live routes.
	Routes int

	// Pipes is the number of existing pipes.
	Pipes int
}

// Bus is the software bus.
//
// Thread Safety: All methods are safe for concurrent use. Subscription
// changes are serialized; Publish sees either the old or the new
// destination set of a route, and a message is only ever delivered to a
// pipe that was subscribed when the message was routed.
type Bus struct {
	routes *route.Table
	pipes  *pipe.Registry

	// subMu keeps route creation and removal consistent with the
	// destination lists. Publish holds the read side while it resolves
	// destinations to pipes.
	subMu  sync.RWMutex
	closed atomic.Bool

	published     atomic.Uint64
	delivered     atomic.Uint64
	noSubscribers atomic.Uint64
	overflows     atomic.Uint64
	sendErrors    atomic.Uint64
	collisions    atomic.Uint64

	log logging.LeveledLogger
}

// New creates a bus with an empty route table and pipe registry.
// Zero sizing values select the defaults.
func New(config Config) (*Bus, error) {
	if config.MaxRoutes < 0 || config.MaxPipes < 0 || config.DefaultPipeDepth < 0 {
		return nil, ErrInvalidConfig
	}
	if config.MaxRoutes == 0 {
		config.MaxRoutes = route.DefaultMaxRoutes
	}

	b := &Bus{
		routes: route.NewTable(route.Config{MaxRoutes: config.MaxRoutes}),
		pipes: pipe.NewRegistry(pipe.Config{
			MaxPipes:     config.MaxPipes,
			DefaultDepth: config.DefaultPipeDepth,
		}),
	}

	if config.LoggerFactory != nil {
		b.log = config.LoggerFactory.NewLogger("bus")
	}

	if b.log != nil {
		b.log.Infof("bus initialized: max_routes=%d map_size=%d max_pipes=%d",
			b.routes.MaxRoutes(), b.routes.MapSize(), b.pipes.MaxPipes())
	}
	return b, nil
}

// Close deletes every pipe, waking blocked receivers, and empties the
// route table. Afterwards every other method returns ErrClosed.
func (b *Bus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	b.pipes.Close()
	b.routes.Init()

	if b.log != nil {
		b.log.Info("bus closed")
	}
	return nil
}

// CreatePipe creates a pipe. A depth of 0 selects the configured default.
func (b *Bus) CreatePipe(name string, depth int) (pipe.ID, error) {
	if b.closed.Load() {
		return pipe.InvalidID, ErrClosed
	}

	id, err := b.pipes.Create(name, depth)
	if err != nil {
		return pipe.InvalidID, fmt.Errorf("bus: create pipe %q: %w", name, err)
	}

	if b.log != nil {
		b.log.Debugf("created %s name=%s", id, name)
	}
	return id, nil
}

// DeletePipe unsubscribes a pipe from every message ID and deletes it.
// Routes left without destinations are removed.
func (b *Bus) DeletePipe(id pipe.ID) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	if _, err := b.pipes.Get(id); err != nil {
		return fmt.Errorf("bus: delete %s: %w", id, err)
	}

	dest := route.Destination(id)
	for msgID, routeID := range b.routes.All() {
		remaining, err := b.routes.RemoveDestination(routeID, dest)
		if err != nil {
			continue
		}
		if remaining == 0 {
			_ = b.routes.Deregister(routeID)
			if b.log != nil {
				b.log.Debugf("removed route %d for %s", routeID, msgID)
			}
		}
	}

	if err := b.pipes.Delete(id); err != nil {
		return fmt.Errorf("bus: delete %s: %w", id, err)
	}

	if b.log != nil {
		b.log.Debugf("deleted %s", id)
	}
	return nil
}

// PipeID returns the ID of the named pipe, or pipe.InvalidID.
func (b *Bus) PipeID(name string) pipe.ID {
	return b.pipes.Lookup(name)
}

// Subscribe routes messages with the given ID to a pipe. The route for the
// ID is created on its first subscription.
func (b *Bus) Subscribe(id msg.MsgID, pipeID pipe.ID) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if !id.IsValid() {
		return fmt.Errorf("bus: subscribe %s: %w", id, route.ErrInvalidMsgID)
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	if _, err := b.pipes.Get(pipeID); err != nil {
		return fmt.Errorf("bus: subscribe %s to %s: %w", pipeID, id, err)
	}

	routeID := b.routes.GetRouteID(id)
	created := false
	if !routeID.IsValid() {
		var collisions int
		var err error
		routeID, collisions, err = b.routes.Register(id)
		if err != nil {
			if b.log != nil {
				b.log.Warnf("cannot route %s: %v", id, err)
			}
			return fmt.Errorf("bus: subscribe %s to %s: %w", pipeID, id, err)
		}
		created = true
		b.collisions.Add(uint64(collisions))

		if b.log != nil {
			b.log.Debugf("created route %d for %s collisions=%d", routeID, id, collisions)
		}
	}

	if err := b.routes.AddDestination(routeID, route.Destination(pipeID)); err != nil {
		if created {
			_ = b.routes.Deregister(routeID)
		}
		if errors.Is(err, route.ErrDuplicateDestination) {
			err = ErrAlreadySubscribed
		}
		return fmt.Errorf("bus: subscribe %s to %s: %w", pipeID, id, err)
	}

	if b.log != nil {
		b.log.Debugf("subscribed %s to %s", pipeID, id)
	}
	return nil
}

// Unsubscribe stops routing messages with the given ID to a pipe. The route
// is removed when its last subscribed pipe leaves.
func (b *Bus) Unsubscribe(id msg.MsgID, pipeID pipe.ID) error {
	if b.closed.Load() {
		return ErrClosed
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	routeID := b.routes.GetRouteID(id)
	if !routeID.IsValid() {
		return fmt.Errorf("bus: unsubscribe %s from %s: %w", pipeID, id, ErrNotSubscribed)
	}

	remaining, err := b.routes.RemoveDestination(routeID, route.Destination(pipeID))
	if err != nil {
		if errors.Is(err, route.ErrDestinationNotFound) {
			err = ErrNotSubscribed
		}
		return fmt.Errorf("bus: unsubscribe %s from %s: %w", pipeID, id, err)
	}
	if remaining == 0 {
		if err := b.routes.Deregister(routeID); err != nil {
			return fmt.Errorf("bus: unsubscribe %s from %s: %w", pipeID, id, err)
		}
		if b.log != nil {
			b.log.Debugf("removed route %d for %s", routeID, id)
		}
	}

	if b.log != nil {
		b.log.Debugf("unsubscribed %s from %s", pipeID, id)
	}
	return nil
}

// Publish copies m into every pipe subscribed to its message ID.
//
// The buffer must hold at least as many bytes as its size field claims;
// only those bytes are delivered. For telemetry the route's sequence
// counter is advanced and stamped into m before delivery. Commands are
// delivered unchanged.
//
// A message nobody subscribes to is counted and dropped without error. A
// full or deleted pipe drops its copy; the other destinations still receive
// theirs.
func (b *Bus) Publish(m msg.Message) error {
	if b.closed.Load() {
		return ErrClosed
	}

	if err := m.Validate(); err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}
	size, _ := m.Size()
	if size > pipe.MaxMessageSize {
		return fmt.Errorf("bus: publish: %w", pipe.ErrMessageTooLarge)
	}
	id, err := m.MsgID()
	if err != nil {
		return fmt.Errorf("bus: publish: %w", err)
	}

	b.published.Add(1)

	targets, ok := b.resolve(m, id)
	if !ok {
		b.noSubscribers.Add(1)
		if b.log != nil {
			b.log.Tracef("no subscribers for %s", id)
		}
		return nil
	}

	data := m[:size]
	for _, p := range targets {
		b.deliver(p, id, data)
	}
	return nil
}

// resolve looks up the route for id, stamps the telemetry sequence count
// and returns the subscribed pipes. Pipes are resolved under the read side
// of subMu, so a pipe ID freed by DeletePipe and reused by CreatePipe can
// never receive a message routed to its previous owner.
func (b *Bus) resolve(m msg.Message, id msg.MsgID) ([]*pipe.Pipe, bool) {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	routeID := b.routes.GetRouteID(id)
	if !routeID.IsValid() {
		return nil, false
	}

	if typ, _ := m.Type(); typ == msg.TypeTelemetry {
		seq, err := b.routes.NextSequence(routeID)
		if err != nil {
			return nil, false
		}
		_ = m.SetSequenceCount(seq)
	}

	dests := b.routes.Destinations(routeID)
	if len(dests) == 0 {
		return nil, false
	}

	targets := make([]*pipe.Pipe, 0, len(dests))
	for _, dest := range dests {
		p, err := b.pipes.Get(pipe.ID(dest))
		if err != nil {
			b.sendErrors.Add(1)
			if b.log != nil {
				b.log.Warnf("route %d lists missing %s: %v", routeID, pipe.ID(dest), err)
			}
			continue
		}
		targets = append(targets, p)
	}
	return targets, true
}

func (b *Bus) deliver(p *pipe.Pipe, id msg.MsgID, data []byte) {
	err := p.Send(data)

	switch {
	case err == nil:
		b.delivered.Add(1)
	case errors.Is(err, pipe.ErrPipeFull):
		b.overflows.Add(1)
		if b.log != nil {
			b.log.Warnf("%s full, dropped %s", p.ID(), id)
		}
	default:
		b.sendErrors.Add(1)
		if b.log != nil {
			b.log.Warnf("send %s to %s failed: %v", id, p.ID(), err)
		}
	}
}

// Receive waits for the next message on a pipe and returns it as a view of
// buf. See pipe.Poll and pipe.PendForever for the timeout modes.
func (b *Bus) Receive(pipeID pipe.ID, buf []byte, timeout time.Duration) (msg.Message, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}

	p, err := b.pipes.Get(pipeID)
	if err != nil {
		return nil, fmt.Errorf("bus: receive %s: %w", pipeID, err)
	}

	n, err := p.Receive(buf, timeout)
	if err != nil {
		return nil, err
	}
	return msg.Message(buf[:n]), nil
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:       b.published.Load(),
		Delivered:       b.delivered.Load(),
		NoSubscribers:   b.noSubscribers.Load(),
		PipeOverflows:   b.overflows.Load(),
		SendErrors:      b.sendErrors.Load(),
		RouteCollisions: b.collisions.Load(),
		Routes:          b.routes.Count(),
		Pipes:           b.pipes.Count(),
	}
}
