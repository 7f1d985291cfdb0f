package catalog

import (
	"testing"

	"pgregory.net/rapid"
)

func TestConvertLegacyID_Scenarios(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"legacy vst3", "VST3-MyComp-deadbeef-12345678", "VST3-MyComp-12345678"},
		{"invalid format tag", "AAX-Foo-abcd-00000001", ""},
		{"non-hex file hash", "VST-Foo-ZZZZ-00000001", ""},
		{"too few segments", "VST-NoHash", ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ConvertLegacyID(c.in)
			if got != c.want {
				t.Fatalf("ConvertLegacyID(%q) = %q, want %q", c.in, got, c.want)
			}
		})
	}
}

func TestCreatePluginID(t *testing.T) {
	id := CreatePluginID(PluginDescription{Format: FormatVST3, Name: "MyComp", UID: 0x12345678})
	if id != "VST3-MyComp-12345678" {
		t.Fatalf("got %q", id)
	}
}

func TestFindPluginDescription_RoundTrip(t *testing.T) {
	desc := PluginDescription{Format: FormatAudioUnit, Name: "Reverb", UID: 0xabcdef01, ChannelsIn: 2, ChannelsOut: 2}
	cat := NewFakeCatalog(desc)

	id := CreatePluginID(desc)
	got, err := FindPluginDescription(cat, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != desc {
		t.Fatalf("got %+v, want %+v", got, desc)
	}

	// And via its legacy form.
	legacy := "AudioUnit-Reverb-0123456789abcdef-abcdef01"
	got, err = FindPluginDescription(cat, legacy)
	if err != nil {
		t.Fatalf("unexpected error resolving legacy id: %v", err)
	}
	if got != desc {
		t.Fatalf("got %+v, want %+v", got, desc)
	}
}

func TestFindPluginDescription_ByPath(t *testing.T) {
	desc := PluginDescription{Format: FormatVST, Name: "Comp", UID: 1, FileOrIdentifier: "/Library/Audio/Plug-Ins/VST/Comp.vst"}
	cat := NewFakeCatalog(desc)
	got, err := FindPluginDescription(cat, desc.FileOrIdentifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != desc {
		t.Fatalf("got %+v, want %+v", got, desc)
	}
}

func TestFindPluginDescription_Unresolvable(t *testing.T) {
	cat := NewFakeCatalog()
	if _, err := FindPluginDescription(cat, "VST3-Nope-00000001"); err == nil {
		t.Fatal("expected error for unresolvable id")
	}
}

// Property: CreatePluginID composed with FindPluginDescription is the
// identity on any id the catalog actually knows about (§8).
func TestCreatePluginID_FindPluginDescription_Identity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		format := rapid.SampledFrom([]Format{FormatAudioUnit, FormatVST, FormatVST3}).Draw(rt, "format")
		name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9]{0,12}`).Draw(rt, "name")
		uid := rapid.Uint32().Draw(rt, "uid")

		desc := PluginDescription{Format: format, Name: name, UID: uid}
		cat := NewFakeCatalog(desc)

		id := CreatePluginID(desc)
		got, err := FindPluginDescription(cat, id)
		if err != nil {
			rt.Fatalf("FindPluginDescription(%q): %v", id, err)
		}
		if got != desc {
			rt.Fatalf("got %+v, want %+v", got, desc)
		}
	})
}

// Property: ConvertLegacyID is total over arbitrary strings (never panics).
func TestConvertLegacyID_NeverPanics(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := rapid.String().Draw(rt, "s")
		_ = ConvertLegacyID(s)
	})
}
