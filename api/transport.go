// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the transport socket abstraction used by the connection manager,
// decoupling it from net.Conn so tests can substitute net.Pipe or fakes.

package api

import "time"

// Transport abstracts a full-duplex network connection.
type Transport interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	RemoteAddr() string
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}
