package catalog

// Catalog resolves plugin identifiers to descriptions and instantiates
// plugins. It is an external collaborator: this core treats plugin discovery
// and scanning as someone else's problem and only consumes the read-only
// result. Neither this package nor its caller (PluginInstanceWrapper.Load)
// moves CreatePluginInstance onto a message/UI thread: it runs on the
// goroutine that calls Load.
type Catalog interface {
	GetTypes() ([]PluginDescription, error)
	GetTypeForFile(path string) (PluginDescription, error)
	CreatePluginInstance(desc PluginDescription, sampleRate float64, blockSize int) (Instance, string)
}

// ParameterListener is a pure sink for inbound parameter-change
// notifications a hosted plugin may emit on an arbitrary SDK callback
// thread. Implementations must tolerate the wrapper having unloaded its
// plugin concurrently with a pending notification.
type ParameterListener interface {
	ParameterChanged(identifier string, value float32)
}

// Instance is the in-process handle to one loaded plugin. It is the minimal
// surface the wrapper and chain need to drive processing and negotiate
// buses; everything else (editor GUI, automation recording, ...) is out of
// scope for this core.
type Instance interface {
	PrepareToPlay(sampleRate float64, blockSize int)
	ReleaseResources()

	// CheckBusesLayout asks the plugin whether it accepts the given layout,
	// returning the layout it actually settled on (which may differ only in
	// ways the plugin itself decides, e.g. a narrower preferred layout) and
	// whether negotiation succeeded.
	CheckBusesLayout(want BusesLayout) (BusesLayout, bool)
	PreferredLayout() BusesLayout

	Latency() int
	TailSeconds() float64
	SupportsDouble() bool

	ProcessBlockFloat(audio [][]float32, midi *MIDIBuffer)
	ProcessBlockDouble(audio [][]float64, midi *MIDIBuffer)

	ParameterValue(identifier string) (float32, bool)
	SetParameterValue(identifier string, value float32) bool
	Parameters() []Parameter

	AddParameterListener(l ParameterListener)
	RemoveParameterListener(l ParameterListener)
}
