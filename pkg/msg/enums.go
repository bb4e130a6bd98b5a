// Package msg implements the CCSDS primary header codec used by every message
// that crosses the software bus.
//
// A Message is a view over a caller-owned buffer. Accessors read and write
// individual bit fields of the 6-byte primary header in place; they never
// allocate and never touch bits outside the field they name.
//
// Primary header layout (big-endian, bit 0 is the MSB of byte 0):
//
//	bits  0-2   Version
//	bit   3     Type (1 = command, 0 = telemetry)
//	bit   4     Secondary header present
//	bits  5-15  Application ID
//	bits 16-17  Segmentation flag
//	bits 18-31  Sequence count
//	bits 32-47  Size field (total length - SizeOffset)
//
// Every Set validates its argument before writing. A rejected value leaves
// the buffer byte-identical to its state before the call.
package msg

// HeaderVersion is the 3-bit CCSDS version number.
type HeaderVersion uint16

// MaxHeaderVersion is the largest encodable header version.
const MaxHeaderVersion HeaderVersion = 0x7

// IsValid returns true if the version fits in its 3-bit field.
func (v HeaderVersion) IsValid() bool {
	return v <= MaxHeaderVersion
}

// Type identifies a message as a command or telemetry.
// The zero value is the invalid sentinel; it is never encoded.
type Type uint8

const (
	// TypeInvalid is the sentinel for "no type". Setting it fails.
	TypeInvalid Type = 0

	// TypeCommand is encoded as type bit 1.
	TypeCommand Type = 1

	// TypeTelemetry is encoded as type bit 0.
	TypeTelemetry Type = 2
)

// String returns a human-readable name for the message type.
func (t Type) String() string {
	switch t {
	case TypeCommand:
		return "Command"
	case TypeTelemetry:
		return "Telemetry"
	default:
		return "Invalid"
	}
}

// IsValid returns true if the type can be written to a header.
func (t Type) IsValid() bool {
	return t == TypeCommand || t == TypeTelemetry
}

// typeBit returns the wire encoding of a valid type.
func (t Type) typeBit() uint16 {
	if t == TypeCommand {
		return 1
	}
	return 0
}

// typeFromBit decodes the type bit. Every bit pattern decodes.
func typeFromBit(bit uint16) Type {
	if bit != 0 {
		return TypeCommand
	}
	return TypeTelemetry
}

// SegmentationFlag marks a message as standalone or as part of a
// multi-part sequence. The zero value is the invalid sentinel.
type SegmentationFlag uint8

const (
	// SegFlagInvalid is the sentinel for "no flag". Setting it fails.
	SegFlagInvalid SegmentationFlag = 0

	// SegFlagContinue marks a continuation segment (wire 0b00).
	SegFlagContinue SegmentationFlag = 1

	// SegFlagFirst marks the first segment (wire 0b01).
	SegFlagFirst SegmentationFlag = 2

	// SegFlagLast marks the last segment (wire 0b10).
	SegFlagLast SegmentationFlag = 3

	// SegFlagUnsegmented marks a standalone message (wire 0b11).
	SegFlagUnsegmented SegmentationFlag = 4
)

// String returns a human-readable name for the segmentation flag.
func (s SegmentationFlag) String() string {
	switch s {
	case SegFlagContinue:
		return "Continue"
	case SegFlagFirst:
		return "First"
	case SegFlagLast:
		return "Last"
	case SegFlagUnsegmented:
		return "Unsegmented"
	default:
		return "Invalid"
	}
}

// IsValid returns true if the flag is one of the four defined codes.
func (s SegmentationFlag) IsValid() bool {
	return s >= SegFlagContinue && s <= SegFlagUnsegmented
}

// wireCode returns the 2-bit wire encoding of a valid flag.
func (s SegmentationFlag) wireCode() uint16 {
	return uint16(s - SegFlagContinue)
}

// segFlagFromWire decodes the 2-bit wire code. Every bit pattern decodes.
func segFlagFromWire(code uint16) SegmentationFlag {
	return SegmentationFlag(code&0x3) + SegFlagContinue
}

// ApID is the 11-bit application identifier.
type ApID uint16

// MaxApID is the largest encodable application identifier.
const MaxApID ApID = 0x7FF

// IsValid returns true if the identifier fits in its 11-bit field.
func (a ApID) IsValid() bool {
	return a <= MaxApID
}

// SequenceCount is the 14-bit packet sequence counter.
type SequenceCount uint16

// MaxSequenceCount is the largest encodable sequence count.
const MaxSequenceCount SequenceCount = 0x3FFF

// IsValid returns true if the count fits in its 14-bit field.
func (s SequenceCount) IsValid() bool {
	return s <= MaxSequenceCount
}

// NextSequenceCount returns the count following s, wrapping to zero after
// MaxSequenceCount.
func NextSequenceCount(s SequenceCount) SequenceCount {
	if s >= MaxSequenceCount {
		return 0
	}
	return s + 1
}

// Size is the total length of a message in bytes.
type Size uint32

// Size limits. The wire field holds Size - SizeOffset in 16 bits.
const (
	// SizeOffset is subtracted from the total length before encoding.
	SizeOffset Size = 7

	// MinSize is the smallest encodable total length.
	MinSize Size = SizeOffset

	// MaxSize is the largest encodable total length.
	MaxSize Size = SizeOffset + 0xFFFF
)

// IsValid returns true if the size is inside the encodable window.
func (s Size) IsValid() bool {
	return s >= MinSize && s <= MaxSize
}

// FcnCode is the 7-bit command function code carried in the command
// secondary header.
type FcnCode uint8

// MaxFcnCode is the largest encodable function code.
const MaxFcnCode FcnCode = 0x7F

// IsValid returns true if the function code fits in its 7-bit field.
func (f FcnCode) IsValid() bool {
	return f <= MaxFcnCode
}

// Checksum is the 8-bit command checksum.
type Checksum uint8

// Time is the telemetry secondary header timestamp.
// Only the upper 16 bits of Subseconds are carried on the wire.
type Time struct {
	Seconds    uint32
	Subseconds uint32
}
