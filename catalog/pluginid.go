package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// legacyTrailer matches "<format>-<name>-<fileHash>-<hexID>" where fileHash
// is lowercase hex of any length and hexID is lowercase hex of any length.
// The two trailing hex segments are recognized first; of whatever remains,
// the text before the first hyphen is the format and the rest (which may
// itself contain hyphens) is the name.
var legacyTrailer = regexp.MustCompile(`^(.*)-([0-9a-f]+)-([0-9a-f]+)$`)

var validFormats = map[string]Format{
	string(FormatAudioUnit): FormatAudioUnit,
	string(FormatVST):       FormatVST,
	string(FormatVST3):      FormatVST3,
}

// CreatePluginID renders a description's canonical id: <format>-<name>-<hex(uid)>.
func CreatePluginID(desc PluginDescription) string {
	return fmt.Sprintf("%s-%s-%x", desc.Format, desc.Name, desc.UID)
}

// ConvertLegacyID converts a legacy "<format>-<name>-<fileHash>-<hexID>" id to
// its canonical "<format>-<name>-<hexID>" form. It returns "" unless the input
// matches the legacy pattern with a recognized format tag and a lowercase-hex
// file-hash segment.
func ConvertLegacyID(id string) string {
	m := legacyTrailer.FindStringSubmatch(id)
	if m == nil {
		return ""
	}
	rest, fileHash, hexID := m[1], m[2], m[3]

	formatAndName := strings.SplitN(rest, "-", 2)
	if len(formatAndName) != 2 {
		return ""
	}
	format, name := formatAndName[0], formatAndName[1]
	if _, ok := validFormats[format]; !ok {
		return ""
	}
	if !isLowerHex(fileHash) {
		return ""
	}
	if !isLowerHex(hexID) {
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", format, name, hexID)
}

func isLowerHex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// parsedCanonical holds the pieces of a canonical "<format>-<name>-<hexID>" id.
type parsedCanonical struct {
	format Format
	name   string
	uid    uint32
}

func parseCanonical(id string) (parsedCanonical, bool) {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return parsedCanonical{}, false
	}
	rest, hexID := id[:idx], id[idx+1:]
	u64, err := strconv.ParseUint(hexID, 16, 32)
	if err != nil {
		return parsedCanonical{}, false
	}
	idx2 := strings.Index(rest, "-")
	if idx2 < 0 {
		return parsedCanonical{}, false
	}
	format, name := rest[:idx2], rest[idx2+1:]
	f, ok := validFormats[format]
	if !ok {
		return parsedCanonical{}, false
	}
	return parsedCanonical{format: f, name: name, uid: uint32(u64)}, true
}

// FindPluginDescription resolves id to a description: first as a canonical
// id, then (after converting) as a legacy id, and finally as a filesystem
// path to a plugin bundle.
func FindPluginDescription(c Catalog, id string) (PluginDescription, error) {
	if p, ok := parseCanonical(id); ok {
		if desc, ok := lookupByUID(c, p); ok {
			return desc, nil
		}
	}
	if canonical := ConvertLegacyID(id); canonical != "" {
		if p, ok := parseCanonical(canonical); ok {
			if desc, ok := lookupByUID(c, p); ok {
				return desc, nil
			}
		}
	}
	if desc, err := c.GetTypeForFile(id); err == nil {
		return desc, nil
	}
	return PluginDescription{}, fmt.Errorf("%w: %s", ErrInvalidPluginID, id)
}

func lookupByUID(c Catalog, p parsedCanonical) (PluginDescription, bool) {
	types, err := c.GetTypes()
	if err != nil {
		return PluginDescription{}, false
	}
	for _, d := range types {
		if d.Format == p.format && d.Name == p.name && d.UID == p.uid {
			return d, true
		}
	}
	return PluginDescription{}, false
}
