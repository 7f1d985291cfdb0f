package catalog

import (
	"fmt"
	"sync"
)

// NewFakeCatalog returns an in-memory Catalog seeded with descs, suitable for
// tests and for non-darwin builds where no native plugin format is
// available. Every plugin it creates is a FakeInstance whose behavior
// (latency, tail, layout acceptance) can be configured per-test.
func NewFakeCatalog(descs ...PluginDescription) *FakeCatalog {
	return &FakeCatalog{descs: descs, behaviors: map[string]*FakeBehavior{}}
}

// FakeCatalog is a pure-Go stand-in for a real plugin catalog.
type FakeCatalog struct {
	mu        sync.Mutex
	descs     []PluginDescription
	behaviors map[string]*FakeBehavior // keyed by canonical plugin id
}

// Configure sets the behavior a future CreatePluginInstance for this id
// should use. Safe to call before or after the description is added.
func (f *FakeCatalog) Configure(id string, b *FakeBehavior) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.behaviors[id] = b
}

func (f *FakeCatalog) GetTypes() ([]PluginDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]PluginDescription, len(f.descs))
	copy(out, f.descs)
	return out, nil
}

func (f *FakeCatalog) GetTypeForFile(path string) (PluginDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.descs {
		if d.FileOrIdentifier == path {
			return d, nil
		}
	}
	return PluginDescription{}, fmt.Errorf("%w: no plugin at %s", ErrInvalidPluginID, path)
}

func (f *FakeCatalog) CreatePluginInstance(desc PluginDescription, sampleRate float64, blockSize int) (Instance, string) {
	id := CreatePluginID(desc)
	f.mu.Lock()
	b, ok := f.behaviors[id]
	f.mu.Unlock()
	if !ok {
		b = &FakeBehavior{AcceptLayout: true, DoublePrecision: desc.DoublePrecision}
	}
	if b.FailLoad != "" {
		return nil, b.FailLoad
	}
	return newFakeInstance(desc, b), ""
}

// FakeBehavior configures how a FakeInstance responds to negotiation and
// processing, so chain/wrapper tests can exercise every branch in §4.2's
// bus-negotiation protocol without a real plugin SDK.
type FakeBehavior struct {
	FailLoad        string
	LatencySamples  int
	TailSecs        float64
	DoublePrecision bool

	// AcceptLayout, when true, accepts whatever layout is requested as-is.
	AcceptLayout bool
	// MaxSidechainChannels caps the sidechain channel count the plugin will
	// accept; requests with a wider sidechain fail (triggering the mono
	// sidechain retry, then the no-sidechain retry in setProcessorBusesLayout).
	MaxSidechainChannels int
	// RejectSidechain, when true, never accepts any sidechain bus at all.
	RejectSidechain bool
	// RejectEntirely, when true, never accepts any layout; the chain falls
	// back to the plugin's Preferred layout.
	RejectEntirely bool
	// Preferred is returned by PreferredLayout when RejectEntirely forces a
	// wholesale adoption.
	Preferred BusesLayout

	// Gain, applied in ProcessBlockFloat/Double, lets tests assert the
	// plugin actually ran (distinguishing bypass from active processing).
	Gain float32
}

type fakeInstance struct {
	desc      PluginDescription
	behavior  *FakeBehavior
	mu        sync.Mutex
	params    map[string]float32
	listeners []ParameterListener
}

func newFakeInstance(desc PluginDescription, b *FakeBehavior) *fakeInstance {
	return &fakeInstance{
		desc:     desc,
		behavior: b,
		params:   map[string]float32{"gain": 1.0},
	}
}

func (f *fakeInstance) PrepareToPlay(sampleRate float64, blockSize int) {}
func (f *fakeInstance) ReleaseResources()                               {}

func (f *fakeInstance) CheckBusesLayout(want BusesLayout) (BusesLayout, bool) {
	b := f.behavior
	if b.RejectEntirely {
		return BusesLayout{}, false
	}
	if sc := want.Sidechain(); !sc.Empty() {
		if b.RejectSidechain {
			return BusesLayout{}, false
		}
		if b.MaxSidechainChannels > 0 && sc.Channels() > b.MaxSidechainChannels {
			return BusesLayout{}, false
		}
	}
	if !b.AcceptLayout {
		return BusesLayout{}, false
	}
	return want, true
}

func (f *fakeInstance) PreferredLayout() BusesLayout { return f.behavior.Preferred }
func (f *fakeInstance) Latency() int                 { return f.behavior.LatencySamples }
func (f *fakeInstance) TailSeconds() float64         { return f.behavior.TailSecs }
func (f *fakeInstance) SupportsDouble() bool          { return f.behavior.DoublePrecision }

func (f *fakeInstance) ProcessBlockFloat(audio [][]float32, midi *MIDIBuffer) {
	g := f.behavior.Gain
	if g == 0 {
		g = 1
	}
	for _, ch := range audio {
		for i := range ch {
			ch[i] *= g
		}
	}
}

func (f *fakeInstance) ProcessBlockDouble(audio [][]float64, midi *MIDIBuffer) {
	g := f.behavior.Gain
	if g == 0 {
		g = 1
	}
	for _, ch := range audio {
		for i := range ch {
			ch[i] *= float64(g)
		}
	}
}

func (f *fakeInstance) ParameterValue(identifier string) (float32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.params[identifier]
	return v, ok
}

func (f *fakeInstance) SetParameterValue(identifier string, value float32) bool {
	f.mu.Lock()
	if _, ok := f.params[identifier]; !ok {
		f.mu.Unlock()
		return false
	}
	f.params[identifier] = value
	listeners := append([]ParameterListener{}, f.listeners...)
	f.mu.Unlock()

	for _, l := range listeners {
		l.ParameterChanged(identifier, value)
	}
	return true
}

func (f *fakeInstance) Parameters() []Parameter {
	return []Parameter{{Identifier: "gain", DisplayName: "Gain", MinValue: 0, MaxValue: 2, Default: 1}}
}

func (f *fakeInstance) AddParameterListener(l ParameterListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *fakeInstance) RemoveParameterListener(l ParameterListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, x := range f.listeners {
		if x == l {
			f.listeners = append(f.listeners[:i], f.listeners[i+1:]...)
			return
		}
	}
}
