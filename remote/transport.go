package remote

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/labscript-suite/lyse-go/config"
)

// TCPTransport is the default transport: one connection per request,
// newline-terminated command out, 4-byte big-endian length prefix plus
// body back.
func TCPTransport(host string, port int, command string, timeout time.Duration) ([]byte, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	if _, err := conn.Write([]byte(command + "\n")); err != nil {
		return nil, fmt.Errorf("send command: %w", err)
	}

	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return nil, fmt.Errorf("read reply header: %w", err)
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > config.DefaultMaxReplySize {
		return nil, fmt.Errorf("reply of %d bytes exceeds limit %d", size, config.DefaultMaxReplySize)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		return nil, fmt.Errorf("read reply body: %w", err)
	}
	return body, nil
}
