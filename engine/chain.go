package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/shaban/audiohost/catalog"
)

// ChainState is the ProcessorChain lifecycle per spec §4.2.
type ChainState int

const (
	StateFresh ChainState = iota
	StatePrepared
	StateReleased
)

func (s ChainState) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StatePrepared:
		return "prepared"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

const slowBlockThreshold = 20 * time.Millisecond

// ProcessorChain owns an ordered list of PluginInstanceWrapper, negotiates
// buses for each, and dispatches audio/MIDI blocks through them in order.
type ProcessorChain struct {
	cat        catalog.Catalog
	sampleRate float64
	blockSize  int

	processorsMtx sync.Mutex
	processors    []*PluginInstanceWrapper
	state         ChainState
	layout        catalog.BusesLayout

	extraChannels           int
	supportsDoublePrecision bool
	tailSeconds             float64
	latencySamples          int
	hasSidechain            bool
	sidechainDisabled       bool
	hostWantsDouble         bool

	slowWarnLimiter *rate.Limiter
	log             *log.Logger
}

// NewProcessorChain builds an empty chain in state fresh.
func NewProcessorChain(cat catalog.Catalog, sampleRate float64, blockSize int) *ProcessorChain {
	return &ProcessorChain{
		cat:                     cat,
		sampleRate:              sampleRate,
		blockSize:               blockSize,
		state:                   StateFresh,
		supportsDoublePrecision: true,
		slowWarnLimiter:         rate.NewLimiter(rate.Every(time.Second), 1),
		log:                     log.With("component", "chain"),
	}
}

func (c *ProcessorChain) State() ChainState { return c.state }

func (c *ProcessorChain) ExtraChannels() int           { return c.extraChannels }
func (c *ProcessorChain) SupportsDoublePrecision() bool { return c.supportsDoublePrecision }
func (c *ProcessorChain) TailSeconds() float64          { return c.tailSeconds }
func (c *ProcessorChain) LatencySamples() int           { return c.latencySamples }
func (c *ProcessorChain) HasSidechain() bool            { return c.hasSidechain }
func (c *ProcessorChain) SidechainDisabled() bool       { return c.sidechainDisabled }
func (c *ProcessorChain) Layout() catalog.BusesLayout   { return c.layout }

// SetHostWantsDouble records whether the session wants double-precision
// processing (spec §4.3 init's doublePrecision flag). The chain's actual
// processing precision (Precision) additionally requires every loaded
// plugin to support double.
func (c *ProcessorChain) SetHostWantsDouble(want bool) {
	c.processorsMtx.Lock()
	c.hostWantsDouble = want
	c.processorsMtx.Unlock()
}

// Precision reports whether the chain currently processes in double
// precision: true iff the host wants double and every currently loaded
// plugin supports it (spec §4.2 initPluginInstance's precision rule,
// applied chain-wide since one block is processed as a single buffer type).
func (c *ProcessorChain) Precision() bool {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	return c.hostWantsDouble && c.supportsDoublePrecision
}

// Len returns the number of processors currently in the chain.
func (c *ProcessorChain) Len() int {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	return len(c.processors)
}

// AddPlugin constructs a wrapper for id, loads it (which triggers bus
// negotiation via configureBuses), and on success appends it to the chain.
// Per spec §4.2, a processor joining an already-prepared chain is itself
// prepared and warmed up immediately, since PrepareToPlay won't visit it
// again.
func (c *ProcessorChain) AddPlugin(id string) (*PluginInstanceWrapper, error) {
	w := NewPluginInstanceWrapper(id, c.cat, c, c.sampleRate, c.blockSize)
	if err := w.Load(); err != nil {
		return nil, err
	}

	c.processorsMtx.Lock()
	w.SetChainIndex(len(c.processors))
	c.processors = append(c.processors, w)
	state := c.state
	hostWantsDouble := c.hostWantsDouble
	c.processorsMtx.Unlock()

	if state == StatePrepared {
		c.prepareAndWarmUp(w, hostWantsDouble)
	}

	c.updateAggregates()
	return w, nil
}

// DeleteProcessor removes the processor at index, unloading it. Out-of-range
// is a no-op.
func (c *ProcessorChain) DeleteProcessor(index int) {
	c.processorsMtx.Lock()
	if index < 0 || index >= len(c.processors) {
		c.processorsMtx.Unlock()
		return
	}
	w := c.processors[index]
	c.processors = append(c.processors[:index], c.processors[index+1:]...)
	for i, p := range c.processors {
		p.SetChainIndex(i)
	}
	c.processorsMtx.Unlock()

	w.Unload()
	c.updateAggregates()
}

// ExchangeProcessors swaps the processors at indices a and b. Equal indices
// and out-of-range indices are no-ops.
func (c *ProcessorChain) ExchangeProcessors(a, b int) {
	c.processorsMtx.Lock()
	n := len(c.processors)
	if a == b || a < 0 || b < 0 || a >= n || b >= n {
		c.processorsMtx.Unlock()
		return
	}
	c.processors[a], c.processors[b] = c.processors[b], c.processors[a]
	c.processors[a].SetChainIndex(a)
	c.processors[b].SetChainIndex(b)
	c.processorsMtx.Unlock()

	c.updateAggregates()
}

// UpdateChannels rebuilds the chain's declared session layout and
// renegotiates buses for every existing processor.
func (c *ProcessorChain) UpdateChannels(in, out, sc int) error {
	c.processorsMtx.Lock()
	c.layout = catalog.NewSessionLayout(in, out, sc)
	c.extraChannels = 0
	c.sidechainDisabled = false
	c.hasSidechain = sc > 0
	processors := append([]*PluginInstanceWrapper(nil), c.processors...)
	c.processorsMtx.Unlock()

	var firstErr error
	for _, w := range processors {
		if err := c.configureBuses(w); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.updateAggregates()
	return firstErr
}

// configureBuses implements the bus negotiation protocol (spec §4.2,
// setProcessorBusesLayout) for a single wrapper against the chain's current
// layout. It is the busNegotiator a wrapper calls during Load.
func (c *ProcessorChain) configureBuses(w *PluginInstanceWrapper) error {
	w.pluginMtx.Lock()
	plugin := w.plugin
	w.pluginMtx.Unlock()
	if plugin == nil {
		return fmt.Errorf("%w: no plugin loaded", catalog.ErrBusesNotSupported)
	}

	want := c.layout
	if c.sidechainDisabled {
		want = want.WithoutSidechain()
	}

	if settled, ok := plugin.CheckBusesLayout(want); ok {
		w.needsDisabledSidechain = false
		w.extraInChannels = settled.ExtraInputChannels()
		w.extraOutChannels = settled.ExtraOutputChannels()
		return nil
	}

	if sc := want.Sidechain(); !sc.Empty() && sc.Channels() > 1 {
		retry := want.WithSidechain(catalog.Mono())
		if settled, ok := plugin.CheckBusesLayout(retry); ok {
			w.needsDisabledSidechain = false
			w.extraInChannels = settled.ExtraInputChannels()
			w.extraOutChannels = settled.ExtraOutputChannels()
			return nil
		}
	}

	if !want.Sidechain().Empty() {
		retry := want.WithoutSidechain()
		if settled, ok := plugin.CheckBusesLayout(retry); ok {
			w.needsDisabledSidechain = true
			c.sidechainDisabled = true
			w.extraInChannels = settled.ExtraInputChannels()
			w.extraOutChannels = settled.ExtraOutputChannels()
			return nil
		}
	}

	settled := plugin.PreferredLayout()
	if len(settled.Inputs) == 0 && len(settled.Outputs) == 0 {
		return fmt.Errorf("%w: %s rejects the session layout and reports no preferred layout", catalog.ErrBusesNotSupported, w.id)
	}
	w.needsDisabledSidechain = true

	extraIn := settled.MainInput().Channels() - want.MainInput().Channels()
	if extraIn < 0 {
		extraIn = 0
	}
	extraIn += settled.ExtraInputChannels()

	extraOut := settled.MainOutput().Channels() - want.MainOutput().Channels()
	if extraOut < 0 {
		extraOut = 0
	}
	extraOut += settled.ExtraOutputChannels()

	w.extraInChannels = extraIn
	w.extraOutChannels = extraOut
	if extraIn > c.extraChannels {
		c.extraChannels = extraIn
	}
	if extraOut > c.extraChannels {
		c.extraChannels = extraOut
	}
	return nil
}

// InitPluginInstance runs negotiation, chooses processing precision, prepares
// the plugin, and warms it up with a handful of silent blocks.
func (c *ProcessorChain) InitPluginInstance(w *PluginInstanceWrapper, hostWantsDouble bool) error {
	if err := c.configureBuses(w); err != nil {
		return err
	}
	c.prepareAndWarmUp(w, hostWantsDouble)
	return nil
}

// prepareAndWarmUp prepares w to play, selects its processing precision
// (double iff the host wants double, the chain supports double, and w itself
// supports double, falling back to single with a logged warning otherwise),
// and pushes a handful of silent blocks through it to stabilise internal
// state. Buses must already be configured for w before calling this.
func (c *ProcessorChain) prepareAndWarmUp(w *PluginInstanceWrapper, hostWantsDouble bool) {
	w.PrepareToPlay(c.sampleRate, c.blockSize)

	useDouble := hostWantsDouble && c.supportsDoublePrecision && w.SupportsDouble()
	if hostWantsDouble && !useDouble {
		c.log.Warn("precision fallback to single", "plugin", w.ID())
	}

	channels := 2 + w.ExtraInChannels()
	if channels < 1 {
		channels = 1
	}
	midi := &catalog.MIDIBuffer{}

	if useDouble {
		silence := make([][]float64, channels)
		for i := range silence {
			silence[i] = make([]float64, c.blockSize)
		}
		for i := 0; i < 3; i++ {
			w.ProcessBlockDouble(silence, midi)
			midi.Clear()
		}
		return
	}

	silence := make([][]float32, channels)
	for i := range silence {
		silence[i] = make([]float32, c.blockSize)
	}
	for i := 0; i < 3; i++ {
		w.ProcessBlockFloat(silence, midi)
		midi.Clear()
	}
}

// PrepareToPlay forwards to every wrapper, warming each one up, and marks the
// chain prepared.
func (c *ProcessorChain) PrepareToPlay() {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	for _, w := range c.processors {
		c.prepareAndWarmUp(w, c.hostWantsDouble)
	}
	c.state = StatePrepared
}

// ReleaseResources forwards to every wrapper and marks the chain released.
func (c *ProcessorChain) ReleaseResources() {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	for _, w := range c.processors {
		w.ReleaseResources()
	}
	c.state = StateReleased
}

// ProcessBlock times processBlockReal and warns (rate-limited) if it exceeds
// the real-time deadline.
func (c *ProcessorChain) ProcessBlock(buffer [][]float32, midi *catalog.MIDIBuffer) {
	start := time.Now()
	c.processBlockReal(buffer, midi)
	c.warnIfSlow(start)
}

// ProcessBlockDouble is the double-precision counterpart of ProcessBlock, per
// spec §4.2's "processBlock(buffer, midi) for each precision".
func (c *ProcessorChain) ProcessBlockDouble(buffer [][]float64, midi *catalog.MIDIBuffer) {
	start := time.Now()
	c.processBlockRealDouble(buffer, midi)
	c.warnIfSlow(start)
}

func (c *ProcessorChain) warnIfSlow(start time.Time) {
	if elapsed := time.Since(start); elapsed > slowBlockThreshold {
		if c.slowWarnLimiter.Allow() {
			c.log.Warn("processBlock exceeded real-time deadline", "elapsed", elapsed)
		}
	}
}

func (c *ProcessorChain) processBlockReal(buffer [][]float32, midi *catalog.MIDIBuffer) {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	for _, w := range c.processors {
		if w.IsSuspended() {
			w.ProcessBlockBypassed(buffer, w.InputChannels())
		} else {
			w.ProcessBlockFloat(buffer, midi)
		}
	}
}

func (c *ProcessorChain) processBlockRealDouble(buffer [][]float64, midi *catalog.MIDIBuffer) {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	for _, w := range c.processors {
		if w.IsSuspended() {
			w.ProcessBlockBypassedDouble(buffer, w.InputChannels())
		} else {
			w.ProcessBlockDouble(buffer, midi)
		}
	}
}

// GetParameterValue looks up a parameter by processor index and parameter
// identifier, returning 0 for an out-of-range index or an unknown identifier.
func (c *ProcessorChain) GetParameterValue(procIdx int, identifier string) float32 {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()
	if procIdx < 0 || procIdx >= len(c.processors) {
		return 0
	}
	v, ok := c.processors[procIdx].ParameterValue(identifier)
	if !ok {
		return 0
	}
	return v
}

// Clear releases resources and empties the processor list, unloading each
// wrapper in turn.
func (c *ProcessorChain) Clear() {
	c.processorsMtx.Lock()
	processors := c.processors
	c.processors = nil
	c.processorsMtx.Unlock()

	for _, w := range processors {
		w.ReleaseResources()
		w.Unload()
	}
	c.updateAggregates()
}

// updateAggregates recomputes the chain's aggregate fields from its current
// processor list. Must not be called with processorsMtx held by the caller.
func (c *ProcessorChain) updateAggregates() {
	c.processorsMtx.Lock()
	defer c.processorsMtx.Unlock()

	if len(c.processors) == 0 {
		c.latencySamples = 0
		c.tailSeconds = 0
		c.supportsDoublePrecision = true
		c.extraChannels = 0
		c.sidechainDisabled = c.hasSidechain && false
		return
	}

	latency := 0
	supportsDouble := true
	extra := 0
	anyDisabled := false
	tail := 0.0

	for _, w := range c.processors {
		latency += w.Latency()
		if !w.SupportsDouble() {
			supportsDouble = false
		}
		if w.ExtraInChannels() > extra {
			extra = w.ExtraInChannels()
		}
		if w.ExtraOutChannels() > extra {
			extra = w.ExtraOutChannels()
		}
		if w.NeedsDisabledSidechain() {
			anyDisabled = true
		}
		if !w.IsSuspended() {
			tail = w.TailSeconds()
		}
	}

	c.latencySamples = latency
	c.supportsDoublePrecision = supportsDouble
	c.extraChannels = extra
	c.sidechainDisabled = c.hasSidechain && anyDisabled
	c.tailSeconds = tail
}
