// Package catalog defines the data model and external collaborator
// interfaces for resolving a plugin identifier to a loadable plugin: the
// plugin catalog, plugin descriptions, bus layouts and the active-channel
// mask a session negotiates over the wire.
package catalog

import "fmt"

// Format is one of the three native plugin formats this core hosts.
type Format string

const (
	FormatAudioUnit Format = "AudioUnit"
	FormatVST       Format = "VST"
	FormatVST3      Format = "VST3"
)

// PluginDescription is what the external catalog returns for a resolvable
// plugin id; wrappers copy it in at load time.
type PluginDescription struct {
	Format          Format
	Name            string
	UID             uint32
	FileOrIdentifier string
	ChannelsIn      int
	ChannelsOut     int
	DoublePrecision bool
}

// Parameter describes one automatable parameter on a loaded plugin.
type Parameter struct {
	Identifier  string
	DisplayName string
	MinValue    float32
	MaxValue    float32
	Default     float32
}

// ChannelSet is a bus's channel configuration.
type ChannelSet struct {
	kind string
	n    int
}

func Mono() ChannelSet        { return ChannelSet{kind: "mono", n: 1} }
func Stereo() ChannelSet      { return ChannelSet{kind: "stereo", n: 2} }
func DiscreteN(n int) ChannelSet { return ChannelSet{kind: "discrete", n: n} }

// Empty reports whether the set declares zero channels (an absent bus).
func (c ChannelSet) Empty() bool { return c.n == 0 }

// Channels returns the channel count this set represents.
func (c ChannelSet) Channels() int { return c.n }

func (c ChannelSet) String() string {
	if c.n == 0 {
		return "none"
	}
	switch c.kind {
	case "mono":
		return "mono"
	case "stereo":
		return "stereo"
	default:
		return fmt.Sprintf("discrete-%d", c.n)
	}
}

// Equal reports whether two channel sets describe the same layout.
func (c ChannelSet) Equal(o ChannelSet) bool { return c.kind == o.kind && c.n == o.n }

// BusesLayout is an ordered sequence of input buses plus an ordered sequence
// of output buses. Bus index 0 is always the main bus; input index 1 (when
// present) is the sidechain.
type BusesLayout struct {
	Inputs  []ChannelSet
	Outputs []ChannelSet
}

// MainInput returns the layout's main input bus, or the empty set if absent.
func (b BusesLayout) MainInput() ChannelSet {
	if len(b.Inputs) == 0 {
		return ChannelSet{}
	}
	return b.Inputs[0]
}

// Sidechain returns the layout's sidechain bus, or the empty set if absent.
func (b BusesLayout) Sidechain() ChannelSet {
	if len(b.Inputs) < 2 {
		return ChannelSet{}
	}
	return b.Inputs[1]
}

// MainOutput returns the layout's main output bus, or the empty set if absent.
func (b BusesLayout) MainOutput() ChannelSet {
	if len(b.Outputs) == 0 {
		return ChannelSet{}
	}
	return b.Outputs[0]
}

// WithoutSidechain returns a copy of the layout with input bus 1 removed.
func (b BusesLayout) WithoutSidechain() BusesLayout {
	if len(b.Inputs) < 2 {
		return b
	}
	out := BusesLayout{Inputs: append([]ChannelSet{}, b.Inputs[:1]...), Outputs: b.Outputs}
	return out
}

// WithSidechain returns a copy of the layout with input bus 1 set to cs.
func (b BusesLayout) WithSidechain(cs ChannelSet) BusesLayout {
	ins := append([]ChannelSet{}, b.Inputs...)
	if len(ins) < 2 {
		ins = append(ins, cs)
	} else {
		ins[1] = cs
	}
	return BusesLayout{Inputs: ins, Outputs: b.Outputs}
}

// ExtraInputChannels returns channels beyond the main+sidechain buses.
func (b BusesLayout) ExtraInputChannels() int {
	total := 0
	for i, cs := range b.Inputs {
		if i < 2 {
			continue
		}
		total += cs.Channels()
	}
	return total
}

// ExtraOutputChannels returns channels beyond the main output bus.
func (b BusesLayout) ExtraOutputChannels() int {
	total := 0
	for i, cs := range b.Outputs {
		if i == 0 {
			continue
		}
		total += cs.Channels()
	}
	return total
}

// NewSessionLayout builds the session's declared layout: main input,
// optional sidechain (when sc > 0), and main output. Mirrors updateChannels.
func NewSessionLayout(in, out, sc int) BusesLayout {
	layout := BusesLayout{
		Inputs:  []ChannelSet{channelSetFor(in)},
		Outputs: []ChannelSet{channelSetFor(out)},
	}
	if sc > 0 {
		layout.Inputs = append(layout.Inputs, channelSetFor(sc))
	}
	return layout
}

func channelSetFor(n int) ChannelSet {
	switch n {
	case 1:
		return Mono()
	case 2:
		return Stereo()
	default:
		return DiscreteN(n)
	}
}

// ActiveChannelMask indicates which of the client-declared input+sidechain
// and output channels are active in this session.
type ActiveChannelMask struct {
	Input  []bool
	Output []bool
}

// NewActiveChannelMask builds a mask with the given active bit counts, all
// active by default (every declared channel is active).
func NewActiveChannelMask(channelsInSC, channelsOut int) ActiveChannelMask {
	in := make([]bool, channelsInSC)
	out := make([]bool, channelsOut)
	for i := range in {
		in[i] = true
	}
	for i := range out {
		out[i] = true
	}
	return ActiveChannelMask{Input: in, Output: out}
}

// Validate enforces the invariants from the data model: active input bits
// must not exceed channelsIn+channelsSC, active output bits must not exceed
// channelsOut.
func (m ActiveChannelMask) Validate(channelsInSC, channelsOut int) error {
	if len(m.Input) > channelsInSC {
		return fmt.Errorf("active input mask has %d bits, session declares %d channels", len(m.Input), channelsInSC)
	}
	if len(m.Output) > channelsOut {
		return fmt.Errorf("active output mask has %d bits, session declares %d channels", len(m.Output), channelsOut)
	}
	return nil
}

// ActiveInputCount returns the number of set input bits.
func (m ActiveChannelMask) ActiveInputCount() int {
	n := 0
	for _, b := range m.Input {
		if b {
			n++
		}
	}
	return n
}

// ActiveOutputCount returns the number of set output bits.
func (m ActiveChannelMask) ActiveOutputCount() int {
	n := 0
	for _, b := range m.Output {
		if b {
			n++
		}
	}
	return n
}
