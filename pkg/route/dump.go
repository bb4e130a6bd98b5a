package route

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// DumpVersion identifies the layout of Dump.
const DumpVersion = 1

// Dump is the serialized form of a route table used by ground tooling to
// cross-reference slot assignments against captured telemetry.
type Dump struct {
	Version   int     `cbor:"version"`
	MaxRoutes int     `cbor:"max_routes"`
	MapSize   int     `cbor:"map_size"`
	Routes    []Entry `cbor:"routes"`
}

// encMode uses Core Deterministic Encoding so the same table always
// produces the same bytes, and therefore the same digest.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("route: CBOR encoder initialization failed: " + err.Error())
	}
}

// Dump returns a snapshot of the table in its serializable form.
func (t *Table) Dump() Dump {
	return Dump{
		Version:   DumpVersion,
		MaxRoutes: t.MaxRoutes(),
		MapSize:   t.MapSize(),
		Routes:    t.Snapshot(),
	}
}

// MarshalDump encodes a snapshot of the table as deterministic CBOR.
func (t *Table) MarshalDump() ([]byte, error) {
	data, err := encMode.Marshal(t.Dump())
	if err != nil {
		return nil, fmt.Errorf("route: encode dump: %w", err)
	}
	return data, nil
}

// UnmarshalDump decodes a dump produced by MarshalDump.
func UnmarshalDump(data []byte) (Dump, error) {
	var d Dump
	if err := cbor.Unmarshal(data, &d); err != nil {
		return Dump{}, fmt.Errorf("route: decode dump: %w", err)
	}
	if d.Version != DumpVersion {
		return Dump{}, fmt.Errorf("route: unsupported dump version %d", d.Version)
	}
	return d, nil
}

// Digest returns the BLAKE2b-256 digest of the table's CBOR dump. Two
// tables with identical capacity, placements, sequence counters and
// destinations have identical digests.
func (t *Table) Digest() ([32]byte, error) {
	data, err := t.MarshalDump()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(data), nil
}
