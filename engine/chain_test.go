package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/audiohost/catalog"
)

func descFor(name string, chIn, chOut int) catalog.PluginDescription {
	return catalog.PluginDescription{
		Format: catalog.FormatVST3, Name: name, UID: uint32(len(name)*7919 + chIn + chOut),
		FileOrIdentifier: "/plugins/" + name + ".vst3",
		ChannelsIn:       chIn, ChannelsOut: chOut, DoublePrecision: true,
	}
}

func TestAddPlugin_EmptyChainAggregates(t *testing.T) {
	cat := catalog.NewFakeCatalog()
	chain := NewProcessorChain(cat, 48000, 512)
	chain.updateAggregates()

	assert.Equal(t, 0, chain.LatencySamples())
	assert.Equal(t, 0.0, chain.TailSeconds())
	assert.True(t, chain.SupportsDoublePrecision())
}

func TestAddPlugin_BusNegotiation_SidechainFallback(t *testing.T) {
	desc := descFor("Comp", 2, 2)
	cat := catalog.NewFakeCatalog(desc)
	cat.Configure(catalog.CreatePluginID(desc), &catalog.FakeBehavior{
		AcceptLayout:    true,
		RejectSidechain: true,
		DoublePrecision: true,
	})

	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 2))

	w, err := chain.AddPlugin(catalog.CreatePluginID(desc))
	require.NoError(t, err)

	assert.True(t, w.NeedsDisabledSidechain())
	assert.True(t, chain.SidechainDisabled())
}

func TestAddPlugin_WholesaleAdoptsPreferredLayout(t *testing.T) {
	desc := descFor("Weird", 2, 2)
	cat := catalog.NewFakeCatalog(desc)
	preferred := catalog.BusesLayout{
		Inputs:  []catalog.ChannelSet{catalog.Mono()},
		Outputs: []catalog.ChannelSet{catalog.Stereo(), catalog.Mono()},
	}
	cat.Configure(catalog.CreatePluginID(desc), &catalog.FakeBehavior{
		RejectEntirely: true,
		Preferred:      preferred,
	})

	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 0))

	w, err := chain.AddPlugin(catalog.CreatePluginID(desc))
	require.NoError(t, err)

	assert.True(t, w.NeedsDisabledSidechain())
	assert.Equal(t, 1, w.ExtraOutChannels())
	assert.Equal(t, 1, chain.ExtraChannels())
}

func TestAddPlugin_RejectsEntirelyWithNoPreferred(t *testing.T) {
	desc := descFor("Useless", 2, 2)
	cat := catalog.NewFakeCatalog(desc)
	cat.Configure(catalog.CreatePluginID(desc), &catalog.FakeBehavior{RejectEntirely: true})

	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 0))

	_, err := chain.AddPlugin(catalog.CreatePluginID(desc))
	assert.Error(t, err)
	assert.Equal(t, 0, chain.Len())
}

func TestExchangeProcessors_RoundTripRestoresOrder(t *testing.T) {
	d1, d2 := descFor("A", 2, 2), descFor("B", 2, 2)
	cat := catalog.NewFakeCatalog(d1, d2)
	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 0))

	_, err := chain.AddPlugin(catalog.CreatePluginID(d1))
	require.NoError(t, err)
	_, err = chain.AddPlugin(catalog.CreatePluginID(d2))
	require.NoError(t, err)

	before := append([]*PluginInstanceWrapper(nil), chain.processors...)

	chain.ExchangeProcessors(0, 1)
	chain.ExchangeProcessors(0, 1)

	for i, w := range chain.processors {
		assert.Same(t, before[i], w)
		assert.Equal(t, i, w.ChainIndex())
	}
}

func TestExchangeProcessors_EqualIndexIsNoop(t *testing.T) {
	d1 := descFor("A", 2, 2)
	cat := catalog.NewFakeCatalog(d1)
	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 0))
	_, err := chain.AddPlugin(catalog.CreatePluginID(d1))
	require.NoError(t, err)

	chain.ExchangeProcessors(0, 0)
	assert.Equal(t, 1, chain.Len())
}

func TestLatencyAggregation(t *testing.T) {
	d1, d2 := descFor("A", 2, 2), descFor("B", 2, 2)
	cat := catalog.NewFakeCatalog(d1, d2)
	cat.Configure(catalog.CreatePluginID(d1), &catalog.FakeBehavior{AcceptLayout: true, LatencySamples: 64, DoublePrecision: true})
	cat.Configure(catalog.CreatePluginID(d2), &catalog.FakeBehavior{AcceptLayout: true, LatencySamples: 128, DoublePrecision: true})

	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 0))

	_, err := chain.AddPlugin(catalog.CreatePluginID(d1))
	require.NoError(t, err)
	_, err = chain.AddPlugin(catalog.CreatePluginID(d2))
	require.NoError(t, err)

	assert.Equal(t, 192, chain.LatencySamples())

	chain.DeleteProcessor(0)
	assert.Equal(t, 128, chain.LatencySamples())
}

func TestDeleteProcessor_OutOfRangeIsNoop(t *testing.T) {
	d1 := descFor("A", 2, 2)
	cat := catalog.NewFakeCatalog(d1)
	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(2, 2, 0))
	_, err := chain.AddPlugin(catalog.CreatePluginID(d1))
	require.NoError(t, err)

	chain.DeleteProcessor(5)
	chain.DeleteProcessor(-1)
	assert.Equal(t, 1, chain.Len())
}

func TestGetParameterValue_OutOfRangeReturnsZero(t *testing.T) {
	cat := catalog.NewFakeCatalog()
	chain := NewProcessorChain(cat, 48000, 512)
	assert.Equal(t, float32(0), chain.GetParameterValue(0, "gain"))
	assert.Equal(t, float32(0), chain.GetParameterValue(-1, "gain"))
}

func TestProcessBlock_EmptyChainIsIdentity(t *testing.T) {
	cat := catalog.NewFakeCatalog()
	chain := NewProcessorChain(cat, 48000, 512)

	buf := [][]float32{{1, 2, 3}, {4, 5, 6}}
	midi := &catalog.MIDIBuffer{}
	chain.ProcessBlock(buf, midi)

	assert.Equal(t, []float32{1, 2, 3}, buf[0])
	assert.Equal(t, []float32{4, 5, 6}, buf[1])
}

func TestBypassLatencyCompensation(t *testing.T) {
	desc := descFor("Delay", 1, 1)
	cat := catalog.NewFakeCatalog(desc)
	cat.Configure(catalog.CreatePluginID(desc), &catalog.FakeBehavior{
		AcceptLayout: true, LatencySamples: 4, DoublePrecision: true,
	})

	chain := NewProcessorChain(cat, 48000, 512)
	require.NoError(t, chain.UpdateChannels(1, 1, 0))

	w, err := chain.AddPlugin(catalog.CreatePluginID(desc))
	require.NoError(t, err)

	w.SuspendProcessing(true)

	impulse := [][]float32{{1, 0, 0, 0, 0, 0, 0, 0}}
	w.ProcessBlockBypassed(impulse, 1)

	assert.Equal(t, []float32{0, 0, 0, 0, 1, 0, 0, 0}, impulse[0])
}
