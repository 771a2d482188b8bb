// Package feed is the external injector that drives hub.Producer from a
// live market-data WebSocket endpoint: a minimal RFC 6455 client built
// directly on net/tls rather than a general-purpose WebSocket library,
// tuned for a single long-lived streaming connection reading one frame
// at a time into a fixed buffer with no per-frame allocation.
//
// A Conn is a struct, not package-level state, so more than one can
// exist in a process (e.g. one per exchange).
package feed

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

var (
	ErrHandshakeOverflow  = errors.New("feed: handshake header overflow")
	ErrFrameExceedsBuffer = errors.New("feed: frame exceeds read buffer capacity")
	ErrFragmentedFrame    = errors.New("feed: fragmented frames not supported")
)

// MaxFrameSize bounds the raw read buffer: generous enough for a ticker
// JSON payload with headroom, fixed so the read loop never allocates.
const MaxFrameSize = 64 << 10

// Conn is one WebSocket connection to a market-data endpoint. Not safe
// for concurrent use — one goroutine reads frames, matching the ring's
// single-producer assumption (the feed is meant to be the sole caller
// of a given hub.Producer).
type Conn struct {
	raw net.Conn
	buf [MaxFrameSize]byte
	// [start, start+n) is the valid, unconsumed window into buf. start
	// only advances when a frame is consumed; the window is compacted
	// back to the front lazily, only when more room is needed, so a
	// frame slice returned by ReadFrame is never overwritten by the
	// next read until the caller calls ReadFrame again.
	start int
	n     int
}

// Dial opens a raw TCP connection to addr, wraps it in TLS with the
// given SNI host, performs the WebSocket upgrade against path, and
// tunes the socket (TCP_NODELAY, enlarged buffers) before returning.
func Dial(addr, tlsHost, path string) (*Conn, error) {
	rawTCP, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	if tcpConn, ok := rawTCP.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(true)
		tcpConn.SetReadBuffer(MaxFrameSize)
		tcpConn.SetWriteBuffer(MaxFrameSize)
	}

	conn := tls.Client(rawTCP, &tls.Config{ServerName: tlsHost})
	if err := conn.Handshake(); err != nil {
		rawTCP.Close()
		return nil, err
	}

	c := &Conn{raw: conn}
	if err := c.upgrade(tlsHost, path); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.raw.Close() }

// upgrade performs the RFC 6455 HTTP upgrade handshake.
func (c *Conn) upgrade(host, path string) error {
	var keyBytes [16]byte
	if _, err := rand.Read(keyBytes[:]); err != nil {
		return err
	}
	key := base64.StdEncoding.EncodeToString(keyBytes[:])

	req := "GET " + path + " HTTP/1.1\r\n" +
		"Host: " + host + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"

	if _, err := io.WriteString(c.raw, req); err != nil {
		return err
	}

	var hdr [4096]byte
	n := 0
	for {
		m, err := c.raw.Read(hdr[n:])
		if err != nil {
			return err
		}
		n += m
		if n >= 4 && strings.Contains(string(hdr[:n]), "\r\n\r\n") {
			break
		}
		if n >= len(hdr) {
			return ErrHandshakeOverflow
		}
	}
	if !strings.Contains(string(hdr[:n]), "101") {
		return fmt.Errorf("feed: handshake rejected: %s", hdr[:n])
	}
	return nil
}

// SendSubscription masks and writes a JSON text frame subscribing to
// symbols. The frame is built per call since the subscription payload
// varies with the caller's symbol list.
func (c *Conn) SendSubscription(payload []byte) error {
	frame, err := maskTextFrame(payload)
	if err != nil {
		return err
	}
	_, err = c.raw.Write(frame)
	return err
}

// maskTextFrame builds an RFC 6455 client-to-server masked text frame.
// Only single-frame (FIN=1), payloads under 126 bytes use the short
// length form; longer payloads use the 16-bit extended length.
func maskTextFrame(payload []byte) ([]byte, error) {
	if len(payload) > 1<<16-1 {
		return nil, ErrFrameExceedsBuffer
	}

	var header []byte
	switch {
	case len(payload) < 126:
		header = []byte{0x81, 0x80 | byte(len(payload))}
	default:
		header = []byte{0x81, 0x80 | 126, byte(len(payload) >> 8), byte(len(payload))}
	}

	var mask [4]byte
	if _, err := rand.Read(mask[:]); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(header)+4+len(payload))
	out = append(out, header...)
	out = append(out, mask[:]...)
	for i, b := range payload {
		out = append(out, b^mask[i&3])
	}
	return out, nil
}

// ReadFrame blocks until one unfragmented server frame other than a ping
// is available, and returns its payload (unmasked in place if the frame
// was masked). Ping frames are skipped and no pong is sent; every other
// opcode, including close and pong, is returned like a data frame. The
// payload is a view into the connection's
// internal buffer valid only until the next ReadFrame call — the caller
// must not retain the returned slice past that point.
func (c *Conn) ReadFrame() ([]byte, error) {
	for {
		w := c.buf[c.start : c.start+c.n]

		if c.n >= 2 {
			fin := w[0]&0x80 != 0
			opcode := w[0] & 0x0f
			masked := w[1]&0x80 != 0
			length := int(w[1] & 0x7f)

			headerLen := 2
			switch length {
			case 126:
				headerLen += 2
			case 127:
				headerLen += 8
			}
			if masked {
				headerLen += 4
			}

			if c.n >= headerLen {
				payloadLen := length
				switch length {
				case 126:
					payloadLen = int(w[2])<<8 | int(w[3])
				case 127:
					payloadLen = 0
					for i := 0; i < 8; i++ {
						payloadLen = payloadLen<<8 | int(w[2+i])
					}
				}

				total := headerLen + payloadLen
				if total > len(c.buf) {
					return nil, ErrFrameExceedsBuffer
				}
				if c.n >= total {
					if !fin {
						return nil, ErrFragmentedFrame
					}
					payload := w[headerLen:total]
					if masked {
						maskKey := w[headerLen-4 : headerLen]
						for i := range payload {
							payload[i] ^= maskKey[i&3]
						}
					}
					if opcode == 0x9 { // ping: skipped, no pong is sent
						c.consume(total)
						continue
					}
					frame := payload
					c.consume(total)
					return frame, nil
				}
			}
		}

		if err := c.ensureRoom(); err != nil {
			return nil, err
		}
		m, err := c.raw.Read(c.buf[c.start+c.n:])
		if err != nil {
			return nil, err
		}
		c.n += m
	}
}

// consume advances past a frame already handed to (or discarded by) the
// caller. It never rewrites buf: the window simply shrinks from the
// front, so any slice already returned by ReadFrame stays intact until
// the caller asks for the next one.
func (c *Conn) consume(n int) {
	c.start += n
	c.n -= n
}

// ensureRoom compacts the window back to the front of buf when there is
// no longer room to read more bytes at the tail, and reports an error
// if the window itself has grown to fill the whole buffer (a frame too
// large to ever fit).
func (c *Conn) ensureRoom() error {
	if c.start+c.n == len(c.buf) {
		if c.n == len(c.buf) {
			return ErrFrameExceedsBuffer
		}
		copy(c.buf[:], c.buf[c.start:c.start+c.n])
		c.start = 0
	}
	return nil
}
