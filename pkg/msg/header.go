package msg

import (
	"encoding/binary"
)

// Header layout constants.
const (
	// PrimaryHeaderSize is the size of the CCSDS primary header in bytes.
	PrimaryHeaderSize = 6

	// CommandSecondaryHeaderSize is function code (1) + checksum (1).
	CommandSecondaryHeaderSize = 2

	// TelemetrySecondaryHeaderSize is seconds (4) + subseconds (2).
	TelemetrySecondaryHeaderSize = 6
)

// Primary header words. The header is three big-endian 16-bit words:
// stream ID (bytes 0-1), sequence (bytes 2-3) and length (bytes 4-5).
const (
	wordStreamID = 0
	wordSequence = 2
	wordLength   = 4
)

// field is one bit range of the primary header, expressed as a mask over
// a big-endian 16-bit word.
type field struct {
	word  int
	mask  uint16
	shift uint
}

var (
	fieldVersion   = field{word: wordStreamID, mask: 0xE000, shift: 13}
	fieldType      = field{word: wordStreamID, mask: 0x1000, shift: 12}
	fieldSecHdr    = field{word: wordStreamID, mask: 0x0800, shift: 11}
	fieldApID      = field{word: wordStreamID, mask: 0x07FF, shift: 0}
	fieldSegFlag   = field{word: wordSequence, mask: 0xC000, shift: 14}
	fieldSeqCount  = field{word: wordSequence, mask: 0x3FFF, shift: 0}
	fieldSizeField = field{word: wordLength, mask: 0xFFFF, shift: 0}
)

func (f field) get(m Message) uint16 {
	return (binary.BigEndian.Uint16(m[f.word:]) & f.mask) >> f.shift
}

// set overwrites exactly the bits of f. The caller has already validated v.
func (f field) set(m Message, v uint16) {
	w := binary.BigEndian.Uint16(m[f.word:])
	w = (w &^ f.mask) | ((v << f.shift) & f.mask)
	binary.BigEndian.PutUint16(m[f.word:], w)
}

// Message is a bit-field view over a caller-owned message buffer.
//
// A nil Message, or one shorter than PrimaryHeaderSize, is treated as an
// absent buffer: every accessor returns ErrBadArgument without touching it.
// Setters write through to the underlying array.
type Message []byte

// present reports whether the buffer can hold a primary header.
func (m Message) present() bool {
	return len(m) >= PrimaryHeaderSize
}

// HeaderVersion returns the CCSDS version field.
func (m Message) HeaderVersion() (HeaderVersion, error) {
	if !m.present() {
		return 0, ErrBadArgument
	}
	return HeaderVersion(fieldVersion.get(m)), nil
}

// SetHeaderVersion writes the CCSDS version field.
func (m Message) SetHeaderVersion(v HeaderVersion) error {
	if !m.present() || !v.IsValid() {
		return ErrBadArgument
	}
	fieldVersion.set(m, uint16(v))
	return nil
}

// Type returns the message type. Every bit pattern decodes to either
// TypeCommand or TypeTelemetry.
func (m Message) Type() (Type, error) {
	if !m.present() {
		return TypeInvalid, ErrBadArgument
	}
	return typeFromBit(fieldType.get(m)), nil
}

// SetType writes the message type bit.
func (m Message) SetType(t Type) error {
	if !m.present() || !t.IsValid() {
		return ErrBadArgument
	}
	fieldType.set(m, t.typeBit())
	return nil
}

// HasSecondaryHeader returns the secondary header flag.
func (m Message) HasSecondaryHeader() (bool, error) {
	if !m.present() {
		return false, ErrBadArgument
	}
	return fieldSecHdr.get(m) != 0, nil
}

// SetHasSecondaryHeader writes the secondary header flag.
func (m Message) SetHasSecondaryHeader(present bool) error {
	if !m.present() {
		return ErrBadArgument
	}
	var v uint16
	if present {
		v = 1
	}
	fieldSecHdr.set(m, v)
	return nil
}

// ApID returns the application identifier.
func (m Message) ApID() (ApID, error) {
	if !m.present() {
		return 0, ErrBadArgument
	}
	return ApID(fieldApID.get(m)), nil
}

// SetApID writes the application identifier.
func (m Message) SetApID(a ApID) error {
	if !m.present() || !a.IsValid() {
		return ErrBadArgument
	}
	fieldApID.set(m, uint16(a))
	return nil
}

// SegmentationFlag returns the segmentation flag. Every bit pattern decodes
// to one of the four defined flags.
func (m Message) SegmentationFlag() (SegmentationFlag, error) {
	if !m.present() {
		return SegFlagInvalid, ErrBadArgument
	}
	return segFlagFromWire(fieldSegFlag.get(m)), nil
}

// SetSegmentationFlag writes the segmentation flag.
func (m Message) SetSegmentationFlag(s SegmentationFlag) error {
	if !m.present() || !s.IsValid() {
		return ErrBadArgument
	}
	fieldSegFlag.set(m, s.wireCode())
	return nil
}

// SequenceCount returns the sequence count.
func (m Message) SequenceCount() (SequenceCount, error) {
	if !m.present() {
		return 0, ErrBadArgument
	}
	return SequenceCount(fieldSeqCount.get(m)), nil
}

// SetSequenceCount writes the sequence count.
func (m Message) SetSequenceCount(s SequenceCount) error {
	if !m.present() || !s.IsValid() {
		return ErrBadArgument
	}
	fieldSeqCount.set(m, uint16(s))
	return nil
}

// Size returns the total message length, SizeOffset plus the wire field.
func (m Message) Size() (Size, error) {
	if !m.present() {
		return 0, ErrBadArgument
	}
	return Size(fieldSizeField.get(m)) + SizeOffset, nil
}

// SetSize writes the total message length. Valid lengths are
// [MinSize, MaxSize].
func (m Message) SetSize(s Size) error {
	if !m.present() || !s.IsValid() {
		return ErrBadArgument
	}
	fieldSizeField.set(m, uint16(s-SizeOffset))
	return nil
}

// Validate checks that the buffer holds at least as many bytes as its
// size field declares.
func (m Message) Validate() error {
	size, err := m.Size()
	if err != nil {
		return err
	}
	if len(m) < int(size) {
		return ErrBufferTooShort
	}
	return nil
}

// Init clears the first size bytes of m and writes a default header:
// id's version, type and application ID, unsegmented, secondary header
// present, and the given size. All arguments are checked before the
// buffer is cleared.
func Init(m Message, id MsgID, size Size) error {
	if !m.present() || !id.IsValid() || !size.IsValid() {
		return ErrBadArgument
	}
	if len(m) < int(size) {
		return ErrBufferTooShort
	}

	clear(m[:size])

	hdr := PrimaryHeader{
		SecondaryHeader:  true,
		SegmentationFlag: SegFlagUnsegmented,
		Size:             size,
	}
	hdr.Version, hdr.Type, hdr.ApID = id.Components()
	return hdr.EncodeTo(m)
}
