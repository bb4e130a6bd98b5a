package msg

import "encoding/binary"

// Secondary header offsets, relative to the start of the message.
const (
	cmdFcnCodeOffset  = PrimaryHeaderSize
	cmdChecksumOffset = PrimaryHeaderSize + 1
	tlmSecondsOffset  = PrimaryHeaderSize
	tlmSubsecOffset   = PrimaryHeaderSize + 4

	// cmdFcnCodeMask selects the function code; bit 7 is reserved.
	cmdFcnCodeMask uint8 = 0x7F

	checksumSeed Checksum = 0xFF
)

// secondaryHeader checks that m carries a secondary header of type want
// and is long enough to hold one of the given size.
func (m Message) secondaryHeader(want Type, size int) error {
	if !m.present() {
		return ErrBadArgument
	}
	if fieldSecHdr.get(m) == 0 || typeFromBit(fieldType.get(m)) != want {
		return ErrWrongMsgType
	}
	if len(m) < PrimaryHeaderSize+size {
		return ErrBufferTooShort
	}
	return nil
}

// FcnCode returns the command function code.
func (m Message) FcnCode() (FcnCode, error) {
	if err := m.secondaryHeader(TypeCommand, CommandSecondaryHeaderSize); err != nil {
		return 0, err
	}
	return FcnCode(m[cmdFcnCodeOffset] & cmdFcnCodeMask), nil
}

// SetFcnCode writes the command function code, preserving the reserved bit.
func (m Message) SetFcnCode(f FcnCode) error {
	if !f.IsValid() {
		return ErrBadArgument
	}
	if err := m.secondaryHeader(TypeCommand, CommandSecondaryHeaderSize); err != nil {
		return err
	}
	m[cmdFcnCodeOffset] = (m[cmdFcnCodeOffset] &^ cmdFcnCodeMask) | uint8(f)
	return nil
}

// Checksum returns the stored command checksum byte.
func (m Message) Checksum() (Checksum, error) {
	if err := m.secondaryHeader(TypeCommand, CommandSecondaryHeaderSize); err != nil {
		return 0, err
	}
	return Checksum(m[cmdChecksumOffset]), nil
}

// computeChecksum XORs the first Size() bytes into checksumSeed. The
// declared size must cover the checksum byte.
func (m Message) computeChecksum() (Checksum, error) {
	if err := m.Validate(); err != nil {
		return 0, err
	}
	size, _ := m.Size()
	if size < PrimaryHeaderSize+CommandSecondaryHeaderSize {
		return 0, ErrBufferTooShort
	}
	sum := checksumSeed
	for _, b := range m[:size] {
		sum ^= Checksum(b)
	}
	return sum, nil
}

// GenerateChecksum stores the checksum that makes ValidateChecksum pass.
// The buffer must be at least Size() bytes long and Size() must include
// the command secondary header.
func (m Message) GenerateChecksum() error {
	if err := m.secondaryHeader(TypeCommand, CommandSecondaryHeaderSize); err != nil {
		return err
	}
	sum, err := m.computeChecksum()
	if err != nil {
		return err
	}
	// The stored byte is part of the sum; XOR it back out.
	m[cmdChecksumOffset] = byte(sum ^ Checksum(m[cmdChecksumOffset]))
	return nil
}

// ValidateChecksum reports whether the command checksum is consistent with
// the first Size() bytes of the message.
func (m Message) ValidateChecksum() (bool, error) {
	if err := m.secondaryHeader(TypeCommand, CommandSecondaryHeaderSize); err != nil {
		return false, err
	}
	sum, err := m.computeChecksum()
	if err != nil {
		return false, err
	}
	return sum == 0, nil
}

// MsgTime returns the telemetry timestamp.
func (m Message) MsgTime() (Time, error) {
	if err := m.secondaryHeader(TypeTelemetry, TelemetrySecondaryHeaderSize); err != nil {
		return Time{}, err
	}
	return Time{
		Seconds:    binary.BigEndian.Uint32(m[tlmSecondsOffset:]),
		Subseconds: uint32(binary.BigEndian.Uint16(m[tlmSubsecOffset:])) << 16,
	}, nil
}

// SetMsgTime writes the telemetry timestamp. The lower 16 bits of
// Subseconds are dropped.
func (m Message) SetMsgTime(t Time) error {
	if err := m.secondaryHeader(TypeTelemetry, TelemetrySecondaryHeaderSize); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m[tlmSecondsOffset:], t.Seconds)
	binary.BigEndian.PutUint16(m[tlmSubsecOffset:], uint16(t.Subseconds>>16))
	return nil
}
