// feed_test.go — frame decode/mask coverage over a mockConn, in the same
// style as the base repo's ws_test.go: a net.Conn stand-in fed a raw byte
// stream, no real socket involved.
package feed

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// mockConn feeds readData to Read calls one chunk at a time and discards
// writes, mirroring ws_test.go's mockConn.
type mockConn struct {
	readData []byte
	readPos  int
}

func (m *mockConn) Read(b []byte) (int, error) {
	if m.readPos >= len(m.readData) {
		return 0, net.ErrClosed
	}
	n := copy(b, m.readData[m.readPos:])
	m.readPos += n
	return n, nil
}

func (m *mockConn) Write(b []byte) (int, error)       { return len(b), nil }
func (m *mockConn) Close() error                      { return nil }
func (m *mockConn) LocalAddr() net.Addr                { return nil }
func (m *mockConn) RemoteAddr() net.Addr               { return nil }
func (m *mockConn) SetDeadline(t time.Time) error      { return nil }
func (m *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (m *mockConn) SetWriteDeadline(t time.Time) error { return nil }

// makeFrame builds an unmasked server-to-client frame (masking is a
// client-only obligation under RFC 6455).
func makeFrame(opcode byte, payload []byte, fin bool) []byte {
	frame := make([]byte, 2)
	if fin {
		frame[0] = 0x80 | opcode
	} else {
		frame[0] = opcode
	}

	plen := len(payload)
	switch {
	case plen < 126:
		frame[1] = byte(plen)
	case plen < 65536:
		frame[1] = 126
		frame = append(frame, byte(plen>>8), byte(plen))
	default:
		frame[1] = 127
		var lenBytes [8]byte
		binary.BigEndian.PutUint64(lenBytes[:], uint64(plen))
		frame = append(frame, lenBytes[:]...)
	}
	return append(frame, payload...)
}

func TestReadFrameSingle(t *testing.T) {
	c := &Conn{raw: &mockConn{readData: makeFrame(0x1, []byte(`{"symbol":"BTCUSDT"}`), true)}}
	frame, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(frame) != `{"symbol":"BTCUSDT"}` {
		t.Fatalf("frame = %q", frame)
	}
}

func TestReadFrameSkipsPing(t *testing.T) {
	var data []byte
	data = append(data, makeFrame(0x9, []byte("ping-body"), true)...)
	data = append(data, makeFrame(0x1, []byte(`{"a":1}`), true)...)

	c := &Conn{raw: &mockConn{readData: data}}
	frame, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if string(frame) != `{"a":1}` {
		t.Fatalf("frame = %q, want the data frame past the ping", frame)
	}
}

func TestReadFrameRejectsFragment(t *testing.T) {
	c := &Conn{raw: &mockConn{readData: makeFrame(0x1, []byte("partial"), false)}}
	if _, err := c.ReadFrame(); err != ErrFragmentedFrame {
		t.Fatalf("err = %v, want ErrFragmentedFrame", err)
	}
}

func TestReadFrameExtendedLength(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200)
	c := &Conn{raw: &mockConn{readData: makeFrame(0x1, payload, true)}}
	frame, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(frame, payload) {
		t.Fatalf("frame length = %d, want %d", len(frame), len(payload))
	}
}

// TestReadFrameSuccessiveFramesDoNotCorruptEachOther guards against a
// buffer-management bug where compacting the read window immediately
// after extracting a frame overwrites that frame's own backing array
// before the caller gets a chance to use it. Both frames are already
// present in the connection's read data by the time the first
// ReadFrame call returns, so any eager compaction would corrupt frameA
// while it is still in the caller's hands.
func TestReadFrameSuccessiveFramesDoNotCorruptEachOther(t *testing.T) {
	var data []byte
	data = append(data, makeFrame(0x1, []byte("first-payload"), true)...)
	data = append(data, makeFrame(0x1, []byte("second-payload-is-longer"), true)...)

	c := &Conn{raw: &mockConn{readData: data}}

	frameA, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame (first): %v", err)
	}
	gotA := string(frameA) // copy out before the next call reuses the window

	frameB, err := c.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame (second): %v", err)
	}

	if gotA != "first-payload" {
		t.Fatalf("first frame = %q, want %q", gotA, "first-payload")
	}
	if string(frameB) != "second-payload-is-longer" {
		t.Fatalf("second frame = %q", frameB)
	}
}

func TestMaskTextFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"id":1,"method":"subscribe"}`)
	frame, err := maskTextFrame(payload)
	if err != nil {
		t.Fatalf("maskTextFrame: %v", err)
	}
	if frame[0] != 0x81 {
		t.Fatalf("first byte = %#x, want FIN|TEXT (0x81)", frame[0])
	}
	if frame[1]&0x80 == 0 {
		t.Fatal("length byte missing the MASK bit")
	}

	maskLen := int(frame[1] &^ 0x80)
	mask := frame[2:6]
	got := append([]byte(nil), frame[6:6+maskLen]...)
	for i := range got {
		got[i] ^= mask[i&3]
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("unmasked payload = %q, want %q", got, payload)
	}
}

func TestMaskTextFrameRejectsOversizePayload(t *testing.T) {
	if _, err := maskTextFrame(make([]byte, 1<<16)); err != ErrFrameExceedsBuffer {
		t.Fatalf("err = %v, want ErrFrameExceedsBuffer", err)
	}
}
