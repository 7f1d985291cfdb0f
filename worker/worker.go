// Package worker drives one client session's per-block socket loop: read a
// framed block, run it through the processor chain, write the response
// back, per spec §4.3.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/shaban/audiohost/catalog"
	"github.com/shaban/audiohost/engine"
	"github.com/shaban/audiohost/recents"
	"github.com/shaban/audiohost/ctrlqueue"
	"github.com/shaban/audiohost/wire"
)

const waitForDataTimeout = 50 * time.Millisecond

// SessionWorker owns one connected session end to end: its socket, its
// processor chain, and the per-block loop that pumps data between them.
type SessionWorker struct {
	id   string
	host string

	socket wire.Socket
	codec  wire.Codec

	mtx             sync.Mutex
	chain           *engine.ProcessorChain
	channelsIn      int
	channelsOut     int
	channelsSC      int
	active          catalog.ActiveChannelMask
	sampleRate      float64
	blockSize       int
	hostWantsDouble bool

	mapper   ChannelMapper
	workBuf  [][]float32
	workBufD [][]float64

	ctrl    *ctrlqueue.Queue
	metrics Metrics
	recents *recents.Registry
	cat     catalog.Catalog

	shutdown chan struct{}
	done     chan struct{}
	log      *log.Logger
}

// Params groups the fixed session parameters a worker is constructed with,
// per spec §3's "Session lifecycle": a worker is created with a connected
// socket and fixed session parameters.
type Params struct {
	ID              string
	Host            string
	Socket          wire.Socket
	Catalog         catalog.Catalog
	Recents         *recents.Registry
	Metrics         Metrics
	Mapper          ChannelMapper
	ChannelsIn      int
	ChannelsOut     int
	ChannelsSC      int
	Active          catalog.ActiveChannelMask
	SampleRate      float64
	BlockSize       int
	HostWantsDouble bool
}

// New builds a worker and its chain, matching the declared channel layout.
// The chain is not yet prepared; Run prepares the whole chain (PrepareToPlay)
// before it starts the per-block loop.
func New(p Params) *SessionWorker {
	mapper := p.Mapper
	if mapper == nil {
		mapper = DefaultChannelMapper{}
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = NopMetrics{}
	}

	chain := engine.NewProcessorChain(p.Catalog, p.SampleRate, p.BlockSize)
	_ = chain.UpdateChannels(p.ChannelsIn, p.ChannelsOut, p.ChannelsSC)
	chain.SetHostWantsDouble(p.HostWantsDouble)

	q := ctrlqueue.New(8)
	q.Start()

	return &SessionWorker{
		id:              p.ID,
		host:            p.Host,
		socket:          p.Socket,
		chain:           chain,
		channelsIn:      p.ChannelsIn,
		channelsOut:     p.ChannelsOut,
		channelsSC:      p.ChannelsSC,
		active:          p.Active,
		sampleRate:      p.SampleRate,
		blockSize:       p.BlockSize,
		hostWantsDouble: p.HostWantsDouble,
		mapper:          mapper,
		ctrl:            q,
		metrics:         metrics,
		recents:         p.Recents,
		cat:             p.Catalog,
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
		log:             log.With("component", "worker", "session", p.ID),
	}
}

// Run executes the per-block loop until the client disconnects, a fatal I/O
// or channel-mismatch error occurs, or Shutdown is called.
func (w *SessionWorker) Run() error {
	defer close(w.done)
	w.metrics.OnSessionStart(w.id)

	chain := w.chain
	chain.PrepareToPlay()
	defer func() {
		chain.ReleaseResources()
		chain.Clear()
		_ = w.socket.Close()
	}()

	for {
		select {
		case <-w.shutdown:
			w.metrics.OnSessionEnd(w.id, nil)
			return nil
		default:
		}

		ready, err := w.waitForData()
		if err != nil {
			w.metrics.OnSocketError(w.id, err)
			w.metrics.OnSessionEnd(w.id, err)
			return err
		}
		if !ready {
			continue
		}

		start := time.Now()
		if err := w.processOneBlock(); err != nil {
			w.metrics.OnSessionEnd(w.id, err)
			return err
		}
		w.metrics.OnBlockProcessed(w.id, time.Since(start))
	}
}

func (w *SessionWorker) waitForData() (bool, error) {
	w.mtx.Lock()
	defer w.mtx.Unlock()
	return w.socket.Ready(waitForDataTimeout)
}

func (w *SessionWorker) processOneBlock() error {
	in, err := w.codec.ReadIn(w.socket)
	if err != nil {
		_ = w.socket.Close()
		return err
	}

	w.mtx.Lock()
	defer w.mtx.Unlock()

	receivedChannels := len(in.AudioF32)
	if in.Precision == wire.PrecisionFloat64 {
		receivedChannels = len(in.AudioF64)
	}
	if receivedChannels < w.active.ActiveInputCount() {
		_ = w.socket.Close()
		return ErrChannelMismatch
	}

	midi := in.MIDI
	var out wire.OutFrame

	// §4.3 step 4: if the frame's precision doesn't match the chain's actual
	// processing precision, convert into the matching working buffer before
	// processing and back after. The reply always echoes the precision the
	// client sent, regardless of what the chain processed internally.
	if w.chain.Precision() {
		client := in.AudioF64
		if in.Precision != wire.PrecisionFloat64 {
			client = wire.ToFloat64(in.AudioF32)
		}

		buffer, repacked := w.workingBufferForDouble(client)
		if repacked {
			w.mapper.PackDouble(buffer, client, w.active)
		}

		w.chain.ProcessBlockDouble(buffer, &midi)

		result := buffer
		if repacked {
			w.mapper.UnpackDouble(client, buffer, w.active)
			result = client
		}

		if in.Precision == wire.PrecisionFloat64 {
			out = wire.OutFrame{Precision: wire.PrecisionFloat64, AudioF64: result}
		} else {
			out = wire.OutFrame{Precision: wire.PrecisionFloat32, AudioF32: wire.ToFloat32(result)}
		}
	} else {
		client := in.AudioF32
		if in.Precision == wire.PrecisionFloat64 {
			client = wire.ToFloat32(in.AudioF64)
		}

		buffer, repacked := w.workingBufferFor(client)
		if repacked {
			w.mapper.Pack(buffer, client, w.active)
		}

		w.chain.ProcessBlock(buffer, &midi)

		result := buffer
		if repacked {
			w.mapper.Unpack(client, buffer, w.active)
			result = client
		}

		if in.Precision == wire.PrecisionFloat64 {
			out = wire.OutFrame{Precision: wire.PrecisionFloat64, AudioF64: wire.ToFloat64(result)}
		} else {
			out = wire.OutFrame{Precision: wire.PrecisionFloat32, AudioF32: result}
		}
	}

	out.MIDI = midi
	out.LatencySamples = w.chain.LatencySamples()
	if out.Precision == wire.PrecisionFloat64 {
		out.ChannelCount = len(out.AudioF64)
	} else {
		out.ChannelCount = len(out.AudioF32)
	}

	if err := w.codec.WriteOut(w.socket, out); err != nil {
		_ = w.socket.Close()
		return err
	}
	return nil
}

// workingBufferFor implements spec §4.3.1: if the received buffer already
// has at least numChannels, it is used directly (repacked=false); otherwise
// a persistent working buffer is grown and returned for the caller to pack
// into and unpack from (repacked=true).
func (w *SessionWorker) workingBufferFor(client [][]float32) (buffer [][]float32, repacked bool) {
	numChannels := w.channelsIn + w.channelsSC
	if w.channelsOut > numChannels {
		numChannels = w.channelsOut
	}
	numChannels += w.chain.ExtraChannels()

	if len(client) >= numChannels {
		return client, false
	}

	if len(w.workBuf) != numChannels || (len(w.workBuf) > 0 && len(w.workBuf[0]) != w.blockSize) {
		w.workBuf = make([][]float32, numChannels)
		for i := range w.workBuf {
			w.workBuf[i] = make([]float32, w.blockSize)
		}
	}
	return w.workBuf, true
}

// workingBufferForDouble is the float64 counterpart of workingBufferFor.
func (w *SessionWorker) workingBufferForDouble(client [][]float64) (buffer [][]float64, repacked bool) {
	numChannels := w.channelsIn + w.channelsSC
	if w.channelsOut > numChannels {
		numChannels = w.channelsOut
	}
	numChannels += w.chain.ExtraChannels()

	if len(client) >= numChannels {
		return client, false
	}

	if len(w.workBufD) != numChannels || (len(w.workBufD) > 0 && len(w.workBufD[0]) != w.blockSize) {
		w.workBufD = make([][]float64, numChannels)
		for i := range w.workBufD {
			w.workBufD[i] = make([]float64, w.blockSize)
		}
	}
	return w.workBufD, true
}

// Shutdown signals the run loop to exit on its next iteration and waits for
// it to finish.
func (w *SessionWorker) Shutdown() {
	close(w.shutdown)
	<-w.done
	w.ctrl.Close()
}

// AddPlugin delegates to the chain, serialized through the control queue so
// an external caller gets a synchronous result without racing processOneBlock.
func (w *SessionWorker) AddPlugin(id string) error {
	return w.ctrl.RunSync(func(ctx context.Context) error {
		w.mtx.Lock()
		defer w.mtx.Unlock()
		_, err := w.chain.AddPlugin(id)
		return err
	})
}

// DelPlugin delegates to the chain under the control queue.
func (w *SessionWorker) DelPlugin(index int) error {
	return w.ctrl.RunSync(func(ctx context.Context) error {
		w.mtx.Lock()
		defer w.mtx.Unlock()
		w.chain.DeleteProcessor(index)
		return nil
	})
}

// ExchangePlugins delegates to the chain under the control queue.
func (w *SessionWorker) ExchangePlugins(a, b int) error {
	return w.ctrl.RunSync(func(ctx context.Context) error {
		w.mtx.Lock()
		defer w.mtx.Unlock()
		w.chain.ExchangeProcessors(a, b)
		return nil
	})
}

// AddToRecents resolves id through the catalog and records it under the
// worker's remote host key.
func (w *SessionWorker) AddToRecents(id string) error {
	if w.recents == nil {
		return nil
	}
	return w.recents.Add(w.cat, id, w.host)
}

// GetRecents returns the newline-terminated rendered recents list for the
// worker's remote host, or "" if unknown.
func (w *SessionWorker) GetRecents() string {
	if w.recents == nil {
		return ""
	}
	return w.recents.Get(w.host)
}
