package wire

import (
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is a connected, bidirectional byte stream with readiness polling
// and close, per spec §6. The session worker reads/writes through it without
// knowing whether the transport is raw TCP or a WebSocket.
type Socket interface {
	io.Reader
	io.Writer
	io.Closer
	// Ready polls for readability within timeout, returning false on timeout
	// with no error.
	Ready(timeout time.Duration) (bool, error)
}

// TCPSocket wraps a net.Conn, the default transport for a directly-dialed
// session.
type TCPSocket struct {
	conn   net.Conn
	peeked []byte
}

func NewTCPSocket(conn net.Conn) *TCPSocket { return &TCPSocket{conn: conn} }

// Read drains any byte captured by a prior Ready's trial read before
// reading fresh data from the connection.
func (s *TCPSocket) Read(p []byte) (int, error) {
	if len(s.peeked) > 0 {
		n := copy(p, s.peeked)
		s.peeked = s.peeked[n:]
		return n, nil
	}
	return s.conn.Read(p)
}

func (s *TCPSocket) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *TCPSocket) Close() error                { return s.conn.Close() }

// Ready sets a read deadline and attempts a 1-byte trial read to detect
// readability, since net.Conn exposes no native poll; any byte consumed is
// held in peeked so the next Read call returns it first.
func (s *TCPSocket) Ready(timeout time.Duration) (bool, error) {
	if len(s.peeked) > 0 {
		return true, nil
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	one := make([]byte, 1)
	n, err := s.conn.Read(one)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, err
	}
	if n > 0 {
		s.peeked = append(s.peeked, one[:n]...)
	}
	return true, nil
}

// WSSocket adapts a gorilla/websocket connection to Socket, grounded on the
// duplex agent connections in the streamspace corpus. Each Write call is sent
// as one binary websocket message, so a wire frame that the codec writes in
// several Write calls spans several messages; Read concatenates incoming
// messages into one continuous byte stream.
type WSSocket struct {
	conn    *websocket.Conn
	reader  io.Reader
	readBuf []byte
}

func NewWSSocket(conn *websocket.Conn) *WSSocket { return &WSSocket{conn: conn} }

func (s *WSSocket) Read(p []byte) (int, error) {
	for s.reader == nil {
		_, r, err := s.conn.NextReader()
		if err != nil {
			return 0, err
		}
		s.reader = r
	}
	n, err := s.reader.Read(p)
	if err == io.EOF {
		s.reader = nil
		if n > 0 {
			return n, nil
		}
		return s.Read(p)
	}
	return n, err
}

func (s *WSSocket) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *WSSocket) Close() error { return s.conn.Close() }

func (s *WSSocket) Ready(timeout time.Duration) (bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}
	if s.reader != nil {
		return true, nil
	}
	_, r, err := s.conn.NextReader()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, err
	}
	s.reader = r
	return true, nil
}
