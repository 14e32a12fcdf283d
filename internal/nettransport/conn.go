// File: internal/nettransport/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Adapts a plain net.Conn to api.Transport, so the connection manager never
// depends on net directly and tests can substitute net.Pipe.

package nettransport

import (
	"net"
	"time"

	"github.com/momentics/hiogate/api"
)

// Conn wraps a net.Conn as an api.Transport.
type Conn struct {
	c net.Conn
}

// New wraps c.
func New(c net.Conn) *Conn { return &Conn{c: c} }

func (t *Conn) Read(p []byte) (int, error)  { return t.c.Read(p) }
func (t *Conn) Write(p []byte) (int, error) { return t.c.Write(p) }
func (t *Conn) Close() error                { return t.c.Close() }
func (t *Conn) RemoteAddr() string          { return t.c.RemoteAddr().String() }

func (t *Conn) SetReadDeadline(tm time.Time) error  { return t.c.SetReadDeadline(tm) }
func (t *Conn) SetWriteDeadline(tm time.Time) error { return t.c.SetWriteDeadline(tm) }

var _ api.Transport = (*Conn)(nil)
