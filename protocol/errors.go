// File: protocol/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import "github.com/momentics/hiogate/api"

// Codec failures. All are fatal for the owning connection — the caller must
// close it rather than attempt to resynchronize the stream.
var (
	ErrMalformed       = api.NewError(api.ErrCodeMalformed, "protocol: malformed frame header")
	ErrOversize        = api.NewError(api.ErrCodeOversize, "protocol: frame body exceeds maximum size")
	ErrDecompressFailed = api.NewError(api.ErrCodeDecompressFailed, "protocol: snappy decompression failed")
)
