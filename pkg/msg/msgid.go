package msg

import "fmt"

// MsgID is the logical publish/subscribe topic of a message, derived from
// the header version, type and application ID. Two messages with equal
// MsgID are subscription-equivalent whatever their sequence, segmentation,
// size or secondary header flag.
//
// Encoding: Version<<12 | TypeBit<<11 | ApID.
type MsgID uint32

const (
	// MaxMsgID is the largest valid message identifier.
	MaxMsgID MsgID = 0x7FFF

	// InvalidMsgID is the reserved "no message" identifier.
	InvalidMsgID MsgID = 0xFFFFFFFF

	msgIDTypeBit      MsgID = 1 << 11
	msgIDVersionShift       = 12
)

// NewMsgID builds a message identifier from its header components.
func NewMsgID(version HeaderVersion, t Type, apid ApID) (MsgID, error) {
	if !version.IsValid() || !t.IsValid() || !apid.IsValid() {
		return InvalidMsgID, ErrBadArgument
	}
	id := MsgID(version)<<msgIDVersionShift | MsgID(apid)
	if t == TypeCommand {
		id |= msgIDTypeBit
	}
	return id, nil
}

// CommandMsgID returns the version-0 command identifier for apid.
// It panics if apid is out of range; use it for constant topic tables.
func CommandMsgID(apid ApID) MsgID {
	id, err := NewMsgID(0, TypeCommand, apid)
	if err != nil {
		panic(fmt.Sprintf("msg: invalid command apid 0x%03X", uint16(apid)))
	}
	return id
}

// TelemetryMsgID returns the version-0 telemetry identifier for apid.
// It panics if apid is out of range; use it for constant topic tables.
func TelemetryMsgID(apid ApID) MsgID {
	id, err := NewMsgID(0, TypeTelemetry, apid)
	if err != nil {
		panic(fmt.Sprintf("msg: invalid telemetry apid 0x%03X", uint16(apid)))
	}
	return id
}

// IsValid returns true if id is inside the identifier space.
func (id MsgID) IsValid() bool {
	return id <= MaxMsgID
}

// Components splits a valid identifier into its header fields.
func (id MsgID) Components() (HeaderVersion, Type, ApID) {
	t := TypeTelemetry
	if id&msgIDTypeBit != 0 {
		t = TypeCommand
	}
	return HeaderVersion((id >> msgIDVersionShift) & MsgID(MaxHeaderVersion)), t, ApID(id & MsgID(MaxApID))
}

// String formats the identifier as a hex topic number.
func (id MsgID) String() string {
	if !id.IsValid() {
		return "invalid"
	}
	return fmt.Sprintf("0x%04X", uint32(id))
}

// MsgID derives the message identifier from the primary header.
func (m Message) MsgID() (MsgID, error) {
	if !m.present() {
		return InvalidMsgID, ErrBadArgument
	}
	version := HeaderVersion(fieldVersion.get(m))
	t := typeFromBit(fieldType.get(m))
	apid := ApID(fieldApID.get(m))
	return NewMsgID(version, t, apid)
}

// SetMsgID writes the version, type and application ID encoded in id.
// Other header bits are preserved.
func (m Message) SetMsgID(id MsgID) error {
	if !m.present() || !id.IsValid() {
		return ErrBadArgument
	}
	version, t, apid := id.Components()
	fieldVersion.set(m, uint16(version))
	fieldType.set(m, t.typeBit())
	fieldApID.set(m, uint16(apid))
	return nil
}
