package msg

// PrimaryHeader is a decoded copy of the primary header fields.
// Use it when a whole header is read or written at once; use the Message
// accessors for single fields.
type PrimaryHeader struct {
	Version          HeaderVersion
	Type             Type
	SecondaryHeader  bool
	ApID             ApID
	SegmentationFlag SegmentationFlag
	SequenceCount    SequenceCount
	Size             Size
}

// DecodePrimaryHeader reads every primary header field from m.
func DecodePrimaryHeader(m Message) (PrimaryHeader, error) {
	if !m.present() {
		return PrimaryHeader{}, ErrBadArgument
	}
	return PrimaryHeader{
		Version:          HeaderVersion(fieldVersion.get(m)),
		Type:             typeFromBit(fieldType.get(m)),
		SecondaryHeader:  fieldSecHdr.get(m) != 0,
		ApID:             ApID(fieldApID.get(m)),
		SegmentationFlag: segFlagFromWire(fieldSegFlag.get(m)),
		SequenceCount:    SequenceCount(fieldSeqCount.get(m)),
		Size:             Size(fieldSizeField.get(m)) + SizeOffset,
	}, nil
}

// Validate checks every field against its declared range.
func (h *PrimaryHeader) Validate() error {
	if !h.Version.IsValid() || !h.Type.IsValid() || !h.ApID.IsValid() ||
		!h.SegmentationFlag.IsValid() || !h.SequenceCount.IsValid() || !h.Size.IsValid() {
		return ErrBadArgument
	}
	return nil
}

// MsgID returns the message identifier the header encodes.
func (h *PrimaryHeader) MsgID() (MsgID, error) {
	return NewMsgID(h.Version, h.Type, h.ApID)
}

// EncodeTo writes the header into the first PrimaryHeaderSize bytes of m.
// All fields are validated first; on error nothing is written. Bytes after
// the primary header are left untouched.
func (h *PrimaryHeader) EncodeTo(m Message) error {
	if !m.present() {
		return ErrBadArgument
	}
	if err := h.Validate(); err != nil {
		return err
	}

	var secHdr uint16
	if h.SecondaryHeader {
		secHdr = 1
	}

	fieldVersion.set(m, uint16(h.Version))
	fieldType.set(m, h.Type.typeBit())
	fieldSecHdr.set(m, secHdr)
	fieldApID.set(m, uint16(h.ApID))
	fieldSegFlag.set(m, h.SegmentationFlag.wireCode())
	fieldSeqCount.set(m, uint16(h.SequenceCount))
	fieldSizeField.set(m, uint16(h.Size-SizeOffset))

	return nil
}
