// Package wire defines the per-block message shapes exchanged with a
// connected client and the transports (Socket implementations) that carry
// them. Framing is a small binary format, not JSON or protobuf: this is a
// real-time per-block path and every allocation counts.
package wire

import "github.com/shaban/audiohost/catalog"

// Precision selects the sample width a frame's audio block is encoded in.
type Precision uint8

const (
	PrecisionFloat32 Precision = iota
	PrecisionFloat64
)

// TransportPosition is the host-reported playhead at the start of a block.
type TransportPosition struct {
	SamplePosition int64
	Playing        bool
}

// InFrame is one block read from a client: audio (in exactly one of the two
// precision fields, selected by Precision), MIDI events, and transport
// position.
type InFrame struct {
	Precision         Precision
	AudioF32          [][]float32
	AudioF64          [][]float64
	MIDI              catalog.MIDIBuffer
	TransportPosition TransportPosition
}

// OutFrame is one block written back to a client.
type OutFrame struct {
	Precision      Precision
	AudioF32       [][]float32
	AudioF64       [][]float64
	MIDI           catalog.MIDIBuffer
	LatencySamples int
	ChannelCount   int
}

// ToFloat64 widens a float32 buffer into a newly allocated float64 buffer of
// the same shape.
func ToFloat64(src [][]float32) [][]float64 {
	dst := make([][]float64, len(src))
	for ch := range src {
		dst[ch] = make([]float64, len(src[ch]))
		for s, v := range src[ch] {
			dst[ch][s] = float64(v)
		}
	}
	return dst
}

// ToFloat32 narrows a float64 buffer into a newly allocated float32 buffer of
// the same shape.
func ToFloat32(src [][]float64) [][]float32 {
	dst := make([][]float32, len(src))
	for ch := range src {
		dst[ch] = make([]float32, len(src[ch]))
		for s, v := range src[ch] {
			dst[ch][s] = float32(v)
		}
	}
	return dst
}
