package recents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaban/audiohost/catalog"
)

func desc(name string) catalog.PluginDescription {
	return catalog.PluginDescription{Format: catalog.FormatVST3, Name: name, UID: 1, FileOrIdentifier: "/p/" + name}
}

func TestGet_UnknownHostIsEmpty(t *testing.T) {
	r := New(5)
	assert.Equal(t, "", r.Get("nobody"))
}

func TestAdd_MostRecentFirst(t *testing.T) {
	a, b := desc("A"), desc("B")
	cat := catalog.NewFakeCatalog(a, b)
	r := New(5)

	require.NoError(t, r.Add(cat, catalog.CreatePluginID(a), "host1"))
	require.NoError(t, r.Add(cat, catalog.CreatePluginID(b), "host1"))

	lines := strings.Split(strings.TrimRight(r.Get("host1"), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "B")
	assert.Contains(t, lines[1], "A")
}

func TestAdd_DedupMovesToFront(t *testing.T) {
	a, b := desc("A"), desc("B")
	cat := catalog.NewFakeCatalog(a, b)
	r := New(5)

	require.NoError(t, r.Add(cat, catalog.CreatePluginID(a), "host1"))
	require.NoError(t, r.Add(cat, catalog.CreatePluginID(b), "host1"))
	require.NoError(t, r.Add(cat, catalog.CreatePluginID(a), "host1"))

	lines := strings.Split(strings.TrimRight(r.Get("host1"), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "A")
}

func TestAdd_TruncatesToMax(t *testing.T) {
	descs := []catalog.PluginDescription{desc("A"), desc("B"), desc("C")}
	cat := catalog.NewFakeCatalog(descs...)
	r := New(2)

	for _, d := range descs {
		require.NoError(t, r.Add(cat, catalog.CreatePluginID(d), "host1"))
	}

	lines := strings.Split(strings.TrimRight(r.Get("host1"), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "C")
	assert.Contains(t, lines[1], "B")
}

func TestAdd_UnresolvableIDReturnsError(t *testing.T) {
	cat := catalog.NewFakeCatalog()
	r := New(5)
	err := r.Add(cat, "VST3-Missing-1", "host1")
	assert.Error(t, err)
}

func TestAdd_HostsAreIndependent(t *testing.T) {
	a := desc("A")
	cat := catalog.NewFakeCatalog(a)
	r := New(5)

	require.NoError(t, r.Add(cat, catalog.CreatePluginID(a), "host1"))
	assert.Equal(t, "", r.Get("host2"))
	assert.NotEqual(t, "", r.Get("host1"))
}
