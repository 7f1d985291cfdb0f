package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"gitlab.com/gomidi/midi/v2"

	"github.com/shaban/audiohost/catalog"
)

// Codec reads and writes frames using a small length-prefixed binary layout:
//
//	header: precision(1) channels(uint32) samples(uint32) midiCount(uint32) transportSample(int64) transportPlaying(1)
//	audio:  channels * samples * 4-or-8 bytes, channel-major
//	midi:   midiCount * (samplePosition uint32, byteLen uint16, raw bytes)
type Codec struct{}

func (Codec) ReadIn(r io.Reader) (InFrame, error) {
	var hdr [13]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return InFrame{}, err
	}
	precision := Precision(hdr[0])
	channels := int(binary.BigEndian.Uint32(hdr[1:5]))
	samples := int(binary.BigEndian.Uint32(hdr[5:9]))
	midiCount := int(binary.BigEndian.Uint32(hdr[9:13]))

	var transport [9]byte
	if _, err := io.ReadFull(r, transport[:]); err != nil {
		return InFrame{}, err
	}
	pos := int64(binary.BigEndian.Uint64(transport[:8]))
	playing := transport[8] != 0

	frame := InFrame{
		Precision:         precision,
		TransportPosition: TransportPosition{SamplePosition: pos, Playing: playing},
	}

	switch precision {
	case PrecisionFloat32:
		frame.AudioF32 = make([][]float32, channels)
		for c := range frame.AudioF32 {
			ch := make([]float32, samples)
			if err := readFloat32s(r, ch); err != nil {
				return InFrame{}, err
			}
			frame.AudioF32[c] = ch
		}
	case PrecisionFloat64:
		frame.AudioF64 = make([][]float64, channels)
		for c := range frame.AudioF64 {
			ch := make([]float64, samples)
			if err := readFloat64s(r, ch); err != nil {
				return InFrame{}, err
			}
			frame.AudioF64[c] = ch
		}
	default:
		return InFrame{}, fmt.Errorf("wire: unknown precision tag %d", precision)
	}

	events, err := readMIDI(r, midiCount)
	if err != nil {
		return InFrame{}, err
	}
	frame.MIDI.Events = events
	return frame, nil
}

// WriteIn encodes an InFrame in the format ReadIn expects; used by a client
// (or by tests standing in for one).
func (Codec) WriteIn(w io.Writer, frame InFrame) error {
	channels, samples := 0, 0
	switch frame.Precision {
	case PrecisionFloat32:
		channels = len(frame.AudioF32)
		if channels > 0 {
			samples = len(frame.AudioF32[0])
		}
	case PrecisionFloat64:
		channels = len(frame.AudioF64)
		if channels > 0 {
			samples = len(frame.AudioF64[0])
		}
	}

	var hdr [13]byte
	hdr[0] = byte(frame.Precision)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(channels))
	binary.BigEndian.PutUint32(hdr[5:9], uint32(samples))
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(frame.MIDI.Events)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	var transport [9]byte
	binary.BigEndian.PutUint64(transport[:8], uint64(frame.TransportPosition.SamplePosition))
	transport[8] = boolByte(frame.TransportPosition.Playing)
	if _, err := w.Write(transport[:]); err != nil {
		return err
	}

	switch frame.Precision {
	case PrecisionFloat32:
		for _, ch := range frame.AudioF32 {
			if err := writeFloat32s(w, ch); err != nil {
				return err
			}
		}
	case PrecisionFloat64:
		for _, ch := range frame.AudioF64 {
			if err := writeFloat64s(w, ch); err != nil {
				return err
			}
		}
	}

	return writeMIDI(w, frame.MIDI.Events)
}

// ReadOut decodes an OutFrame in the format WriteOut produces; used by a
// client (or by tests standing in for one).
func (Codec) ReadOut(r io.Reader) (OutFrame, error) {
	var hdr [18]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return OutFrame{}, err
	}
	precision := Precision(hdr[0])
	channels := int(binary.BigEndian.Uint32(hdr[1:5]))
	samples := int(binary.BigEndian.Uint32(hdr[5:9]))
	midiCount := int(binary.BigEndian.Uint32(hdr[9:13]))
	latency := int(binary.BigEndian.Uint32(hdr[13:17]))

	var chCount [4]byte
	if _, err := io.ReadFull(r, chCount[:]); err != nil {
		return OutFrame{}, err
	}

	frame := OutFrame{
		Precision:      precision,
		LatencySamples: latency,
		ChannelCount:   int(binary.BigEndian.Uint32(chCount[:])),
	}

	switch precision {
	case PrecisionFloat32:
		frame.AudioF32 = make([][]float32, channels)
		for c := range frame.AudioF32 {
			ch := make([]float32, samples)
			if err := readFloat32s(r, ch); err != nil {
				return OutFrame{}, err
			}
			frame.AudioF32[c] = ch
		}
	case PrecisionFloat64:
		frame.AudioF64 = make([][]float64, channels)
		for c := range frame.AudioF64 {
			ch := make([]float64, samples)
			if err := readFloat64s(r, ch); err != nil {
				return OutFrame{}, err
			}
			frame.AudioF64[c] = ch
		}
	default:
		return OutFrame{}, fmt.Errorf("wire: unknown precision tag %d", precision)
	}

	events, err := readMIDI(r, midiCount)
	if err != nil {
		return OutFrame{}, err
	}
	frame.MIDI.Events = events
	return frame, nil
}

func (Codec) WriteOut(w io.Writer, frame OutFrame) error {
	channels, samples := 0, 0
	switch frame.Precision {
	case PrecisionFloat32:
		channels = len(frame.AudioF32)
		if channels > 0 {
			samples = len(frame.AudioF32[0])
		}
	case PrecisionFloat64:
		channels = len(frame.AudioF64)
		if channels > 0 {
			samples = len(frame.AudioF64[0])
		}
	}

	var hdr [18]byte
	hdr[0] = byte(frame.Precision)
	binary.BigEndian.PutUint32(hdr[1:5], uint32(channels))
	binary.BigEndian.PutUint32(hdr[5:9], uint32(samples))
	binary.BigEndian.PutUint32(hdr[9:13], uint32(len(frame.MIDI.Events)))
	binary.BigEndian.PutUint32(hdr[13:17], uint32(frame.LatencySamples))
	hdr[17] = boolByte(frame.ChannelCount > 0)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	var chCount [4]byte
	binary.BigEndian.PutUint32(chCount[:], uint32(frame.ChannelCount))
	if _, err := w.Write(chCount[:]); err != nil {
		return err
	}

	switch frame.Precision {
	case PrecisionFloat32:
		for _, ch := range frame.AudioF32 {
			if err := writeFloat32s(w, ch); err != nil {
				return err
			}
		}
	case PrecisionFloat64:
		for _, ch := range frame.AudioF64 {
			if err := writeFloat64s(w, ch); err != nil {
				return err
			}
		}
	}

	return writeMIDI(w, frame.MIDI.Events)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func readFloat32s(r io.Reader, dst []float32) error {
	buf := make([]byte, 4*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[i*4:]))
	}
	return nil
}

func writeFloat32s(w io.Writer, src []float32) error {
	buf := make([]byte, 4*len(src))
	for i, v := range src {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readFloat64s(r io.Reader, dst []float64) error {
	buf := make([]byte, 8*len(dst))
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = math.Float64frombits(binary.BigEndian.Uint64(buf[i*8:]))
	}
	return nil
}

func writeFloat64s(w io.Writer, src []float64) error {
	buf := make([]byte, 8*len(src))
	for i, v := range src {
		binary.BigEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	_, err := w.Write(buf)
	return err
}

func readMIDI(r io.Reader, count int) ([]catalog.MIDIEvent, error) {
	events := make([]catalog.MIDIEvent, 0, count)
	for i := 0; i < count; i++ {
		var head [6]byte
		if _, err := io.ReadFull(r, head[:]); err != nil {
			return nil, err
		}
		samplePos := int(binary.BigEndian.Uint32(head[:4]))
		n := int(binary.BigEndian.Uint16(head[4:6]))
		raw := make([]byte, n)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, err
		}
		events = append(events, catalog.MIDIEvent{SamplePosition: samplePos, Message: midi.Message(raw)})
	}
	return events, nil
}

func writeMIDI(w io.Writer, events []catalog.MIDIEvent) error {
	for _, e := range events {
		raw := []byte(e.Message)
		var head [6]byte
		binary.BigEndian.PutUint32(head[:4], uint32(e.SamplePosition))
		binary.BigEndian.PutUint16(head[4:6], uint16(len(raw)))
		if _, err := w.Write(head[:]); err != nil {
			return err
		}
		if _, err := w.Write(raw); err != nil {
			return err
		}
	}
	return nil
}
