package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/audiohost/catalog"
)

func TestCodec_InFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := InFrame{
		Precision: PrecisionFloat32,
		AudioF32:  [][]float32{{1, 2, 3}, {4, 5, 6}},
		MIDI: catalog.MIDIBuffer{Events: []catalog.MIDIEvent{
			{SamplePosition: 10, Message: []byte{0x90, 60, 100}},
		}},
		TransportPosition: TransportPosition{SamplePosition: 4096, Playing: true},
	}
	require.NoError(t, Codec{}.WriteIn(&buf, in))

	got, err := Codec{}.ReadIn(&buf)
	require.NoError(t, err)

	assert.Equal(t, in.AudioF32, got.AudioF32)
	assert.Equal(t, in.TransportPosition, got.TransportPosition)
	require.Len(t, got.MIDI.Events, 1)
	assert.Equal(t, 10, got.MIDI.Events[0].SamplePosition)
	assert.Equal(t, []byte{0x90, 60, 100}, []byte(got.MIDI.Events[0].Message))
}

func TestCodec_OutFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	out := OutFrame{
		Precision:      PrecisionFloat32,
		AudioF32:       [][]float32{{7, 8}, {9, 10}},
		LatencySamples: 192,
		ChannelCount:   2,
	}
	require.NoError(t, Codec{}.WriteOut(&buf, out))

	got, err := Codec{}.ReadOut(&buf)
	require.NoError(t, err)

	assert.Equal(t, out.AudioF32, got.AudioF32)
	assert.Equal(t, out.LatencySamples, got.LatencySamples)
	assert.Equal(t, out.ChannelCount, got.ChannelCount)
}

func TestCodec_DoublePrecisionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := InFrame{Precision: PrecisionFloat64, AudioF64: [][]float64{{1.5, 2.5}}}
	require.NoError(t, Codec{}.WriteIn(&buf, in))

	got, err := Codec{}.ReadIn(&buf)
	require.NoError(t, err)
	assert.Equal(t, in.AudioF64, got.AudioF64)
}
