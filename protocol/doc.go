// Package protocol implements the gateway's wire frame codec: a
// self-describing binary envelope robust to partial reads and malformed
// input, plus the message-class derivation used to route decoded frames.
package protocol
