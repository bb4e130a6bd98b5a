package msg

import (
	"errors"
	"testing"
)

func newCommand(t *testing.T, size Size) Message {
	t.Helper()
	m := make(Message, size)
	if err := Init(m, CommandMsgID(0x010), size); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return m
}

func newTelemetry(t *testing.T, size Size) Message {
	t.Helper()
	m := make(Message, size)
	if err := Init(m, TelemetryMsgID(0x010), size); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return m
}

func TestFcnCode(t *testing.T) {
	m := newCommand(t, 12)
	m[cmdFcnCodeOffset] = 0x80 // reserved bit set

	for _, f := range []FcnCode{0, 0x2A, MaxFcnCode} {
		if err := m.SetFcnCode(f); err != nil {
			t.Fatalf("SetFcnCode(%d) error: %v", f, err)
		}
		got, err := m.FcnCode()
		if err != nil {
			t.Fatalf("FcnCode() error: %v", err)
		}
		if got != f {
			t.Errorf("FcnCode() = %d, want %d", got, f)
		}
		if m[cmdFcnCodeOffset]&0x80 == 0 {
			t.Errorf("SetFcnCode(%d) cleared the reserved bit", f)
		}
	}

	if err := m.SetFcnCode(MaxFcnCode + 1); !errors.Is(err, ErrBadArgument) {
		t.Errorf("SetFcnCode(0x80) error = %v, want ErrBadArgument", err)
	}
}

func TestSecondaryHeaderTypeChecks(t *testing.T) {
	cmd := newCommand(t, 16)
	tlm := newTelemetry(t, 16)

	noSec := newCommand(t, 16)
	_ = noSec.SetHasSecondaryHeader(false)

	tests := []struct {
		name    string
		call    func() error
		wantErr error
	}{
		{"FcnCode on telemetry", func() error { _, err := tlm.FcnCode(); return err }, ErrWrongMsgType},
		{"Checksum on telemetry", func() error { _, err := tlm.Checksum(); return err }, ErrWrongMsgType},
		{"GenerateChecksum on telemetry", tlm.GenerateChecksum, ErrWrongMsgType},
		{"MsgTime on command", func() error { _, err := cmd.MsgTime(); return err }, ErrWrongMsgType},
		{"SetMsgTime on command", func() error { return cmd.SetMsgTime(Time{}) }, ErrWrongMsgType},
		{"FcnCode without secondary header", func() error { _, err := noSec.FcnCode(); return err }, ErrWrongMsgType},
		{"FcnCode on nil", func() error { _, err := Message(nil).FcnCode(); return err }, ErrBadArgument},
		{"MsgTime on short telemetry", func() error {
			_, err := tlm[:PrimaryHeaderSize+2].MsgTime()
			return err
		}, ErrBufferTooShort},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, tc.wantErr) {
				t.Errorf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestChecksum(t *testing.T) {
	m := newCommand(t, 16)
	_ = m.SetFcnCode(3)
	copy(m[8:], []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04})

	if err := m.GenerateChecksum(); err != nil {
		t.Fatalf("GenerateChecksum() error: %v", err)
	}
	ok, err := m.ValidateChecksum()
	if err != nil {
		t.Fatalf("ValidateChecksum() error: %v", err)
	}
	if !ok {
		t.Fatal("ValidateChecksum() = false after GenerateChecksum")
	}

	m[10] ^= 0x01
	ok, err = m.ValidateChecksum()
	if err != nil {
		t.Fatalf("ValidateChecksum() error: %v", err)
	}
	if ok {
		t.Error("ValidateChecksum() = true after corrupting payload")
	}

	short := newCommand(t, 16)
	_ = short.SetSize(32)
	if err := short.GenerateChecksum(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("GenerateChecksum() on short buffer error = %v, want ErrBufferTooShort", err)
	}
}

func TestChecksumSizeBelowSecondaryHeader(t *testing.T) {
	m := make(Message, 8)
	if err := Init(m, CommandMsgID(0x010), MinSize); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	before := append(Message(nil), m...)

	if err := m.GenerateChecksum(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("GenerateChecksum() error = %v, want ErrBufferTooShort", err)
	}
	if string(m) != string(before) {
		t.Errorf("GenerateChecksum() modified the buffer: % X", m)
	}
	if _, err := m.ValidateChecksum(); !errors.Is(err, ErrBufferTooShort) {
		t.Errorf("ValidateChecksum() error = %v, want ErrBufferTooShort", err)
	}

	// The smallest size holding the secondary header round-trips.
	if err := m.SetSize(PrimaryHeaderSize + CommandSecondaryHeaderSize); err != nil {
		t.Fatalf("SetSize() error: %v", err)
	}
	if err := m.GenerateChecksum(); err != nil {
		t.Fatalf("GenerateChecksum() error: %v", err)
	}
	if ok, err := m.ValidateChecksum(); err != nil || !ok {
		t.Errorf("ValidateChecksum() = %v, %v, want true", ok, err)
	}
}

func TestMsgTime(t *testing.T) {
	m := newTelemetry(t, 16)

	in := Time{Seconds: 0x12345678, Subseconds: 0x9ABCDEF0}
	if err := m.SetMsgTime(in); err != nil {
		t.Fatalf("SetMsgTime() error: %v", err)
	}
	got, err := m.MsgTime()
	if err != nil {
		t.Fatalf("MsgTime() error: %v", err)
	}
	want := Time{Seconds: 0x12345678, Subseconds: 0x9ABC0000}
	if got != want {
		t.Errorf("MsgTime() = %+v, want %+v", got, want)
	}

	wantBytes := []byte{0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}
	for i, b := range wantBytes {
		if m[PrimaryHeaderSize+i] != b {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", PrimaryHeaderSize+i, m[PrimaryHeaderSize+i], b)
		}
	}
}
