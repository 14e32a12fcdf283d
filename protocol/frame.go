package protocol

// Frame is a single decoded gateway message.
type Frame struct {
	MessageType int32
	Sequence    int64
	TimestampMs int64
	Compressed  bool
	Body        []byte
}

// Wire layout constants, see the codec's decode/encode contract.
const (
	Magic = 0x12345678

	headerLen      = 29
	flagCompressed = 1 << 0

	// MaxBodyBytes bounds both the compressed wire body and the decompressed
	// result. Frames outside this bound fail with ErrOversize.
	MaxBodyBytes = 10 << 20 // 10 MiB

	// DefaultCompressionThreshold is the body size above which Encode
	// compresses by default.
	DefaultCompressionThreshold = 1024
)
