package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/backkem/flightbus/pkg/msg"
)

// report is the decoded view of one message.
type report struct {
	Bytes            int     `json:"bytes"`
	MsgID            string  `json:"msg_id"`
	Version          uint8   `json:"version"`
	Type             string  `json:"type"`
	SecondaryHeader  bool    `json:"secondary_header"`
	ApID             uint16  `json:"apid"`
	SegmentationFlag string  `json:"segmentation"`
	SequenceCount    uint16  `json:"sequence"`
	Size             uint32  `json:"size"`
	Truncated        bool    `json:"truncated,omitempty"`
	FcnCode          *uint8  `json:"fcn_code,omitempty"`
	ChecksumValid    *bool   `json:"checksum_valid,omitempty"`
	TimeSeconds      *uint32 `json:"time_seconds,omitempty"`
	TimeSubseconds   *uint32 `json:"time_subseconds,omitempty"`
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.NewReplacer(" ", "", ":", "", "\t", "").Replace(s)
	return hex.DecodeString(s)
}

func decode(input string) (report, error) {
	data, err := parseHex(input)
	if err != nil {
		return report{}, fmt.Errorf("invalid hex: %w", err)
	}
	m := msg.Message(data)

	hdr, err := msg.DecodePrimaryHeader(m)
	if err != nil {
		return report{}, err
	}
	id, _ := hdr.MsgID()

	r := report{
		Bytes:            len(data),
		MsgID:            id.String(),
		Version:          uint8(hdr.Version),
		Type:             hdr.Type.String(),
		SecondaryHeader:  hdr.SecondaryHeader,
		ApID:             uint16(hdr.ApID),
		SegmentationFlag: hdr.SegmentationFlag.String(),
		SequenceCount:    uint16(hdr.SequenceCount),
		Size:             uint32(hdr.Size),
		Truncated:        m.Validate() != nil,
	}

	// Secondary header fields are reported only when the buffer holds them.
	if fc, err := m.FcnCode(); err == nil {
		v := uint8(fc)
		r.FcnCode = &v
		if !r.Truncated {
			if ok, err := m.ValidateChecksum(); err == nil {
				r.ChecksumValid = &ok
			}
		}
	}
	if t, err := m.MsgTime(); err == nil {
		r.TimeSeconds = &t.Seconds
		r.TimeSubseconds = &t.Subseconds
	}
	return r, nil
}

func (r report) print(w io.Writer) {
	fmt.Fprintf(w, "msgid %s  %s apid 0x%03X  v%d  seq %d  %s  size %d",
		r.MsgID, r.Type, r.ApID, r.Version, r.SequenceCount, r.SegmentationFlag, r.Size)
	if r.Truncated {
		fmt.Fprintf(w, " (truncated, %d bytes captured)", r.Bytes)
	}
	fmt.Fprintln(w)

	if r.FcnCode != nil {
		fmt.Fprintf(w, "  fcn_code %d", *r.FcnCode)
		if r.ChecksumValid != nil {
			fmt.Fprintf(w, "  checksum %s", validWord(*r.ChecksumValid))
		}
		fmt.Fprintln(w)
	}
	if r.TimeSeconds != nil {
		fmt.Fprintf(w, "  time %d.%08X\n", *r.TimeSeconds, *r.TimeSubseconds)
	}
}

func validWord(ok bool) string {
	if ok {
		return "ok"
	}
	return "bad"
}
