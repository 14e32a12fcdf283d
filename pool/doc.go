// File: pool/doc.go
// Package pool
// Author: momentics <momentics@gmail.com>
//
// Size-classed buffer pooling for the gateway's connection read loop. All
// exported methods are safe for concurrent use.
package pool
