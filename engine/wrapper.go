package engine

import (
	"fmt"
	"sync"

	"github.com/shaban/audiohost/catalog"
)

// busNegotiator is the subset of ProcessorChain a wrapper needs during
// load(), kept as an interface so wrapper tests don't need a whole chain.
type busNegotiator interface {
	configureBuses(w *PluginInstanceWrapper) error
}

// PluginInstanceWrapper owns one loaded plugin: its lifecycle, bypass
// buffering with sample-accurate latency compensation, and parameter
// listening. See spec §4.1.
type PluginInstanceWrapper struct {
	id         string
	sampleRate float64
	blockSize  int
	cat        catalog.Catalog
	chain      busNegotiator

	pluginMtx sync.Mutex
	plugin    catalog.Instance
	desc      catalog.PluginDescription

	prepared  bool
	suspended bool

	lastKnownLatency int
	extraInChannels  int
	extraOutChannels int

	needsDisabledSidechain bool

	bypassBufferF []delayLineF32
	bypassBufferD []delayLineF64

	chainIndex int
}

// NewPluginInstanceWrapper constructs an empty, unloaded wrapper for id.
func NewPluginInstanceWrapper(id string, cat catalog.Catalog, chain busNegotiator, sampleRate float64, blockSize int) *PluginInstanceWrapper {
	return &PluginInstanceWrapper{
		id:         id,
		cat:        cat,
		chain:      chain,
		sampleRate: sampleRate,
		blockSize:  blockSize,
	}
}

func (w *PluginInstanceWrapper) ID() string        { return w.id }
func (w *PluginInstanceWrapper) ChainIndex() int    { return w.chainIndex }
func (w *PluginInstanceWrapper) SetChainIndex(i int) { w.chainIndex = i }
func (w *PluginInstanceWrapper) IsSuspended() bool  { return w.suspended }
func (w *PluginInstanceWrapper) Latency() int       { return w.lastKnownLatency }
func (w *PluginInstanceWrapper) ExtraInChannels() int  { return w.extraInChannels }
func (w *PluginInstanceWrapper) ExtraOutChannels() int { return w.extraOutChannels }
func (w *PluginInstanceWrapper) NeedsDisabledSidechain() bool { return w.needsDisabledSidechain }

// InputChannels returns the plugin's declared input channel count plus any
// extra input channels settled at bus-configuration time, or 0 when nothing
// is loaded. This is the inputChannels a caller passes to
// ProcessBlockBypassed/ProcessBlockBypassedDouble, not the buffer's total
// channel count.
func (w *PluginInstanceWrapper) InputChannels() int {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	if w.plugin == nil {
		return 0
	}
	return w.desc.ChannelsIn + w.extraInChannels
}

// TailSeconds reports the loaded plugin's tail, or 0 when nothing is loaded.
func (w *PluginInstanceWrapper) TailSeconds() float64 {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	if w.plugin == nil {
		return 0
	}
	return w.plugin.TailSeconds()
}

// SupportsDouble reports the loaded plugin's double-precision capability;
// an empty wrapper is treated as capable (it imposes no constraint).
func (w *PluginInstanceWrapper) SupportsDouble() bool {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	if w.plugin == nil {
		return true
	}
	return w.plugin.SupportsDouble()
}

// Loaded reports whether a plugin handle is currently present.
func (w *PluginInstanceWrapper) Loaded() bool {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	return w.plugin != nil
}

// Load resolves id via the catalog, instantiates the plugin synchronously,
// asks the owning chain to negotiate buses, and on success registers as a
// parameter listener. A second call while a plugin is already held is a
// no-op returning nil (idempotent).
func (w *PluginInstanceWrapper) Load() error {
	w.pluginMtx.Lock()
	if w.plugin != nil {
		w.pluginMtx.Unlock()
		return nil
	}
	w.pluginMtx.Unlock()

	desc, err := catalog.FindPluginDescription(w.cat, w.id)
	if err != nil {
		return fmt.Errorf("load %s: %w", w.id, err)
	}

	var loadErr error
	withLoaderLock(func() {
		inst, errStr := w.cat.CreatePluginInstance(desc, w.sampleRate, w.blockSize)
		if errStr != "" || inst == nil {
			loadErr = fmt.Errorf("%w: %s: %s", catalog.ErrLoadFailed, w.id, errStr)
			return
		}

		w.pluginMtx.Lock()
		w.plugin = inst
		w.desc = desc
		w.pluginMtx.Unlock()

		if w.chain != nil {
			if err := w.chain.configureBuses(w); err != nil {
				w.pluginMtx.Lock()
				w.plugin = nil
				w.pluginMtx.Unlock()
				loadErr = err
				return
			}
		}

		w.pluginMtx.Lock()
		w.lastKnownLatency = inst.Latency()
		w.pluginMtx.Unlock()
		w.updateLatencyBuffers()

		inst.AddParameterListener(w)
		loadedPluginCount.inc()
	})
	return loadErr
}

// Unload releases the plugin, unregistering parameter listeners first. The
// final C-level/SDK destruction is the catalog implementation's concern to
// defer onto its message thread; this wrapper only drops its own reference.
func (w *PluginInstanceWrapper) Unload() {
	var toRelease catalog.Instance
	withLoaderLock(func() {
		w.pluginMtx.Lock()
		if w.plugin == nil {
			w.pluginMtx.Unlock()
			return
		}
		if w.prepared {
			w.plugin.ReleaseResources()
			w.prepared = false
		}
		w.plugin.RemoveParameterListener(w)
		toRelease = w.plugin
		w.plugin = nil
		w.pluginMtx.Unlock()
		loadedPluginCount.dec()
	})
	_ = toRelease // released by falling out of scope; catalog owns any deferred teardown
}

// PrepareToPlay forwards to the plugin when present and tracks prepared.
func (w *PluginInstanceWrapper) PrepareToPlay(sampleRate float64, blockSize int) {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	w.sampleRate, w.blockSize = sampleRate, blockSize
	if w.plugin == nil {
		return
	}
	w.plugin.PrepareToPlay(sampleRate, blockSize)
	w.prepared = true
}

// ReleaseResources forwards to the plugin when present and clears prepared.
func (w *PluginInstanceWrapper) ReleaseResources() {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	if w.plugin == nil {
		return
	}
	w.plugin.ReleaseResources()
	w.prepared = false
}

// SuspendProcessing toggles bypass. Suspending releases the plugin's
// resources; resuming re-prepares it with the chain's current rate/block.
func (w *PluginInstanceWrapper) SuspendProcessing(shouldBeSuspended bool) {
	w.pluginMtx.Lock()
	plugin := w.plugin
	sampleRate, blockSize := w.sampleRate, w.blockSize
	w.pluginMtx.Unlock()

	if shouldBeSuspended {
		if plugin != nil {
			plugin.ReleaseResources()
			w.pluginMtx.Lock()
			w.prepared = false
			w.pluginMtx.Unlock()
		}
	} else if plugin != nil {
		plugin.PrepareToPlay(sampleRate, blockSize)
		w.pluginMtx.Lock()
		w.prepared = true
		w.pluginMtx.Unlock()
	}

	w.suspended = shouldBeSuspended
}

// ProcessBlockFloat forwards to the plugin, a no-op when none is loaded.
func (w *PluginInstanceWrapper) ProcessBlockFloat(buffer [][]float32, midi *catalog.MIDIBuffer) {
	w.pluginMtx.Lock()
	plugin := w.plugin
	w.pluginMtx.Unlock()
	if plugin == nil {
		return
	}
	plugin.ProcessBlockFloat(buffer, midi)
}

// ProcessBlockDouble forwards to the plugin, a no-op when none is loaded.
func (w *PluginInstanceWrapper) ProcessBlockDouble(buffer [][]float64, midi *catalog.MIDIBuffer) {
	w.pluginMtx.Lock()
	plugin := w.plugin
	w.pluginMtx.Unlock()
	if plugin == nil {
		return
	}
	plugin.ProcessBlockDouble(buffer, midi)
}

// ProcessBlockBypassed implements sample-accurate latency compensation: for
// each channel, push the input sample into the FIFO tail and write the FIFO
// head back, so switching bypass on/off never jumps in time. Channels at or
// beyond the declared input count are cleared first to avoid leaking
// previous content; a mismatched FIFO count clears the buffer instead of
// regrowing (regrowth is updateLatencyBuffers's job, called before bypass
// activation).
func (w *PluginInstanceWrapper) ProcessBlockBypassed(buffer [][]float32, inputChannels int) {
	totalOutputChannels := len(buffer)
	if len(w.bypassBufferF) < totalOutputChannels {
		for _, ch := range buffer {
			for i := range ch {
				ch[i] = 0
			}
		}
		return
	}
	for c := inputChannels; c < totalOutputChannels; c++ {
		for i := range buffer[c] {
			buffer[c][i] = 0
		}
	}
	for c := 0; c < totalOutputChannels; c++ {
		line := &w.bypassBufferF[c]
		ch := buffer[c]
		for s := range ch {
			ch[s] = line.PushPop(ch[s])
		}
	}
}

// ProcessBlockBypassedDouble is the double-precision counterpart.
func (w *PluginInstanceWrapper) ProcessBlockBypassedDouble(buffer [][]float64, inputChannels int) {
	totalOutputChannels := len(buffer)
	if len(w.bypassBufferD) < totalOutputChannels {
		for _, ch := range buffer {
			for i := range ch {
				ch[i] = 0
			}
		}
		return
	}
	for c := inputChannels; c < totalOutputChannels; c++ {
		for i := range buffer[c] {
			buffer[c][i] = 0
		}
	}
	for c := 0; c < totalOutputChannels; c++ {
		line := &w.bypassBufferD[c]
		ch := buffer[c]
		for s := range ch {
			ch[s] = line.PushPop(ch[s])
		}
	}
}

// updateLatencyBuffers resizes each per-channel FIFO to exactly
// lastKnownLatency samples, zero-padding on growth and trimming from the
// head on shrink, creating missing per-channel FIFOs up to the plugin's
// declared output channel count.
func (w *PluginInstanceWrapper) updateLatencyBuffers() {
	w.pluginMtx.Lock()
	latency := w.lastKnownLatency
	outChannels := 0
	if w.plugin != nil {
		outChannels = w.desc.ChannelsOut + w.extraOutChannels
	}
	w.pluginMtx.Unlock()

	for len(w.bypassBufferF) < outChannels {
		w.bypassBufferF = append(w.bypassBufferF, delayLineF32{})
	}
	for len(w.bypassBufferD) < outChannels {
		w.bypassBufferD = append(w.bypassBufferD, delayLineF64{})
	}
	for i := range w.bypassBufferF {
		w.bypassBufferF[i].Resize(latency)
	}
	for i := range w.bypassBufferD {
		w.bypassBufferD[i].Resize(latency)
	}
}

// RefreshLatency re-reads the plugin's reported latency and, if it changed,
// resizes the bypass buffers to match. Returns whether latency changed.
func (w *PluginInstanceWrapper) RefreshLatency() bool {
	w.pluginMtx.Lock()
	if w.plugin == nil {
		w.pluginMtx.Unlock()
		return false
	}
	newLatency := w.plugin.Latency()
	changed := newLatency != w.lastKnownLatency
	w.lastKnownLatency = newLatency
	w.pluginMtx.Unlock()
	if changed {
		w.updateLatencyBuffers()
	}
	return changed
}

// ParameterValue looks up a parameter by identifier on the loaded plugin.
func (w *PluginInstanceWrapper) ParameterValue(identifier string) (float32, bool) {
	w.pluginMtx.Lock()
	defer w.pluginMtx.Unlock()
	if w.plugin == nil {
		return 0, false
	}
	return w.plugin.ParameterValue(identifier)
}

// ParameterChanged implements catalog.ParameterListener: notifications from
// the hosted plugin are a pure sink here; propagating them further up (to an
// editor bridge, say) is out of scope for this core.
func (w *PluginInstanceWrapper) ParameterChanged(identifier string, value float32) {}
