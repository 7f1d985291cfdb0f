package worker

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/audiohost/catalog"
	"github.com/shaban/audiohost/wire"
)

// fakeSocket is an in-memory wire.Socket backed by a fixed input buffer and
// a captured output buffer, for driving SessionWorker in tests without a
// real connection.
type fakeSocket struct {
	in       *bytes.Reader
	out      bytes.Buffer
	exhausted bool
}

func newFakeSocket(frames ...func(*bytes.Buffer)) *fakeSocket {
	var buf bytes.Buffer
	for _, f := range frames {
		f(&buf)
	}
	return &fakeSocket{in: bytes.NewReader(buf.Bytes())}
}

func (s *fakeSocket) Read(p []byte) (int, error) {
	n, err := s.in.Read(p)
	if err == io.EOF {
		s.exhausted = true
	}
	return n, err
}
func (s *fakeSocket) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s *fakeSocket) Close() error                 { return nil }
func (s *fakeSocket) Ready(time.Duration) (bool, error) {
	if s.exhausted || s.in.Len() == 0 {
		return false, io.EOF
	}
	return true, nil
}

func writeInFrame(frame wire.InFrame) func(*bytes.Buffer) {
	return func(buf *bytes.Buffer) {
		_ = wire.Codec{}.WriteIn(buf, frame)
	}
}

func descFor(name string) catalog.PluginDescription {
	return catalog.PluginDescription{Format: catalog.FormatVST3, Name: name, UID: 7, ChannelsIn: 2, ChannelsOut: 2, DoublePrecision: true}
}

func TestRun_ProcessesOneBlockThenEOF(t *testing.T) {
	in := wire.InFrame{
		Precision: wire.PrecisionFloat32,
		AudioF32:  [][]float32{{1, 2}, {3, 4}},
	}
	sock := newFakeSocket(writeInFrame(in))

	cat := catalog.NewFakeCatalog()
	w := New(Params{
		ID: "s1", Host: "host1", Socket: sock, Catalog: cat,
		ChannelsIn: 2, ChannelsOut: 2,
		Active:     catalog.NewActiveChannelMask(2, 2),
		SampleRate: 48000, BlockSize: 2,
	})

	err := w.Run()
	assert.ErrorIs(t, err, io.EOF)

	got, err := wire.Codec{}.ReadOut(&sock.out)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, got.AudioF32)
}

func TestProcessOneBlock_ChannelMismatchIsFatal(t *testing.T) {
	in := wire.InFrame{
		Precision: wire.PrecisionFloat32,
		AudioF32:  [][]float32{{1, 2}},
	}
	sock := newFakeSocket(writeInFrame(in))

	cat := catalog.NewFakeCatalog()
	w := New(Params{
		ID: "s1", Host: "host1", Socket: sock, Catalog: cat,
		ChannelsIn: 2, ChannelsOut: 2,
		Active:     catalog.NewActiveChannelMask(2, 2),
		SampleRate: 48000, BlockSize: 2,
	})

	err := w.Run()
	assert.ErrorIs(t, err, ErrChannelMismatch)
}

func TestAddPlugin_RunsPluginOnNextBlock(t *testing.T) {
	desc := descFor("Gain")
	cat := catalog.NewFakeCatalog(desc)
	cat.Configure(catalog.CreatePluginID(desc), &catalog.FakeBehavior{
		AcceptLayout: true, DoublePrecision: true, Gain: 2,
	})

	in := wire.InFrame{Precision: wire.PrecisionFloat32, AudioF32: [][]float32{{1, 1}, {1, 1}}}
	sock := newFakeSocket(writeInFrame(in))

	w := New(Params{
		ID: "s1", Host: "host1", Socket: sock, Catalog: cat,
		ChannelsIn: 2, ChannelsOut: 2,
		Active:     catalog.NewActiveChannelMask(2, 2),
		SampleRate: 48000, BlockSize: 2,
	})

	require.NoError(t, w.AddPlugin(catalog.CreatePluginID(desc)))

	err := w.Run()
	assert.ErrorIs(t, err, io.EOF)

	got, err := wire.Codec{}.ReadOut(&sock.out)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2}, got.AudioF32[0])
}
