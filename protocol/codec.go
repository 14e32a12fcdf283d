// File: protocol/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Streaming frame decode/encode. Grounded in the sentinel-return streaming
// contract used elsewhere in this codebase for partial-read tolerance:
// decoding a frame that isn't fully buffered yet returns no error and no
// progress, rather than blocking or erroring, so a read loop can keep
// accumulating bytes and retry.

package protocol

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
)

// DecodeFrames parses zero or more complete frames out of buf, which may end
// in a partial tail. It returns the decoded frames in order and the number
// of bytes consumed from the front of buf.
//
// On a fatal codec error (ErrMalformed, ErrOversize or ErrDecompressFailed), DecodeFrames returns
// the frames successfully decoded before the failure together with the
// error; the caller must process those frames, then close the connection —
// the stream cannot be resynchronized past a malformed or oversized frame.
func DecodeFrames(buf []byte) ([]*Frame, int, error) {
	var frames []*Frame
	consumed := 0

	for {
		remaining := buf[consumed:]
		if len(remaining) < headerLen {
			return frames, consumed, nil
		}

		magic := binary.BigEndian.Uint32(remaining[0:4])
		if magic != Magic {
			return frames, consumed, ErrMalformed
		}

		bodyLen := int32(binary.BigEndian.Uint32(remaining[25:29]))
		if bodyLen < 0 || int(bodyLen) > MaxBodyBytes {
			return frames, consumed, ErrOversize
		}

		total := headerLen + int(bodyLen)
		if len(remaining) < total {
			return frames, consumed, nil
		}

		messageType := int32(binary.BigEndian.Uint32(remaining[4:8]))
		sequence := int64(binary.BigEndian.Uint64(remaining[8:16]))
		timestampMs := int64(binary.BigEndian.Uint64(remaining[16:24]))
		flags := remaining[24]
		compressed := flags&flagCompressed != 0

		rawBody := remaining[headerLen:total]
		body := make([]byte, len(rawBody))
		copy(body, rawBody)

		if compressed {
			decodedLen, err := snappy.DecodedLen(body)
			if err != nil || decodedLen > MaxBodyBytes {
				return frames, consumed, ErrOversize
			}
			dst := make([]byte, decodedLen)
			decoded, err := snappy.Decode(dst, body)
			if err != nil {
				return frames, consumed, ErrDecompressFailed
			}
			body = decoded
		}

		frames = append(frames, &Frame{
			MessageType: messageType,
			Sequence:    sequence,
			TimestampMs: timestampMs,
			Compressed:  compressed,
			Body:        body,
		})
		consumed += total
	}
}

// Encode writes f to w, compressing the body with Snappy when it exceeds
// threshold bytes (pass DefaultCompressionThreshold for the spec default).
// Encode never mutates f.
func Encode(w io.Writer, f *Frame, threshold int) error {
	body := f.Body
	compressed := false
	if threshold >= 0 && len(body) > threshold {
		compressed = true
		body = snappy.Encode(nil, f.Body)
	}

	var hdr [headerLen]byte
	binary.BigEndian.PutUint32(hdr[0:4], Magic)
	binary.BigEndian.PutUint32(hdr[4:8], uint32(f.MessageType))
	binary.BigEndian.PutUint64(hdr[8:16], uint64(f.Sequence))
	binary.BigEndian.PutUint64(hdr[16:24], uint64(f.TimestampMs))
	if compressed {
		hdr[24] = flagCompressed
	}
	binary.BigEndian.PutUint32(hdr[25:29], uint32(len(body)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}
