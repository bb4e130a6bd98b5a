package pipe

import (
	"sync"
)

// Registry defaults.
const (
	// DefaultMaxPipes is the pipe capacity used when none is configured.
	DefaultMaxPipes = 64

	// DefaultDepth is the depth used when Create is given zero.
	DefaultDepth = 16
)

// Config configures a Registry.
type Config struct {
	// MaxPipes is the number of pipes that can exist at once.
	// Default: DefaultMaxPipes
	MaxPipes int

	// DefaultDepth is the depth of pipes created with depth 0.
	// Default: DefaultDepth
	DefaultDepth int
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		MaxPipes:     DefaultMaxPipes,
		DefaultDepth: DefaultDepth,
	}
}

// Registry owns a fixed number of pipe slots and their names.
//
// Thread Safety: All methods are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	pipes        []*Pipe
	byName       map[string]ID
	defaultDepth int
}

// NewRegistry creates an empty registry.
func NewRegistry(config Config) *Registry {
	if config.MaxPipes <= 0 {
		config.MaxPipes = DefaultMaxPipes
	}
	if config.MaxPipes > int(^ID(0)) {
		config.MaxPipes = int(^ID(0))
	}
	if config.DefaultDepth <= 0 || config.DefaultDepth > MaxDepth {
		config.DefaultDepth = DefaultDepth
	}

	return &Registry{
		pipes:        make([]*Pipe, config.MaxPipes),
		byName:       make(map[string]ID),
		defaultDepth: config.DefaultDepth,
	}
}

// MaxPipes returns the registry capacity.
func (r *Registry) MaxPipes() int {
	return len(r.pipes)
}

// Count returns the number of existing pipes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Create makes a pipe in the lowest free slot. A depth of 0 selects the
// configured default.
func (r *Registry) Create(name string, depth int) (ID, error) {
	if name == "" || len(name) > MaxNameLength {
		return InvalidID, ErrInvalidName
	}
	if depth == 0 {
		depth = r.defaultDepth
	}
	if depth < 1 || depth > MaxDepth {
		return InvalidID, ErrInvalidDepth
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return InvalidID, ErrNameInUse
	}
	for i, p := range r.pipes {
		if p == nil {
			id := ID(i + 1)
			r.pipes[i] = newPipe(id, name, depth)
			r.byName[name] = id
			return id, nil
		}
	}
	return InvalidID, ErrTooManyPipes
}

// Delete closes a pipe and frees its slot and name. Messages still queued
// can be drained by a receiver already holding the *Pipe.
func (r *Registry) Delete(id ID) error {
	r.mu.Lock()
	p, err := r.getLocked(id)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.pipes[id-1] = nil
	delete(r.byName, p.name)
	r.mu.Unlock()

	p.close()
	return nil
}

// Lookup returns the ID of the named pipe, or InvalidID.
func (r *Registry) Lookup(name string) ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// Get returns the pipe with the given ID.
func (r *Registry) Get(id ID) (*Pipe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(id)
}

// Pipes returns the existing pipes ordered by ID.
func (r *Registry) Pipes() []*Pipe {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Pipe, 0, len(r.byName))
	for _, p := range r.pipes {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// Close deletes every pipe.
func (r *Registry) Close() {
	r.mu.Lock()
	pipes := r.pipes
	r.pipes = make([]*Pipe, len(pipes))
	clear(r.byName)
	r.mu.Unlock()

	for _, p := range pipes {
		if p != nil {
			p.close()
		}
	}
}

func (r *Registry) getLocked(id ID) (*Pipe, error) {
	if !id.IsValid() || int(id) > len(r.pipes) {
		return nil, ErrPipeNotFound
	}
	p := r.pipes[id-1]
	if p == nil {
		return nil, ErrPipeNotFound
	}
	return p, nil
}
