// Package recents keeps a per-host, in-memory, most-recently-used list of
// plugin descriptions a session has loaded, so a client reconnecting (or
// opening a new session) from the same remote host can be offered its
// recent plugins without a round-trip back through the catalog.
package recents

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shaban/audiohost/catalog"
)

// DefaultMax is the per-host list length used when a registry is built via
// New without an explicit override (config.ServerConfig.NumRecents).
const DefaultMax = 10

// Registry is process-wide, process-lifetime state: an unbounded number of
// hosts, each capped at max entries. There is no disk persistence; a
// restarted server starts empty, per spec §6.
type Registry struct {
	mu   sync.Mutex
	max  int
	byHost map[string][]catalog.PluginDescription
}

// New builds a registry capping each host's list at max entries (DefaultMax
// if max <= 0).
func New(max int) *Registry {
	if max <= 0 {
		max = DefaultMax
	}
	return &Registry{max: max, byHost: map[string][]catalog.PluginDescription{}}
}

// Add resolves id through cat and records it as the most recent entry for
// host, removing any prior equal entry and truncating to the configured max.
func (r *Registry) Add(cat catalog.Catalog, id, host string) error {
	desc, err := catalog.FindPluginDescription(cat, id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byHost[host]
	canonical := catalog.CreatePluginID(desc)
	filtered := list[:0:0]
	for _, d := range list {
		if catalog.CreatePluginID(d) == canonical {
			continue
		}
		filtered = append(filtered, d)
	}
	filtered = append([]catalog.PluginDescription{desc}, filtered...)
	if len(filtered) > r.max {
		filtered = filtered[:r.max]
	}
	r.byHost[host] = filtered
	return nil
}

// Get returns the newline-separated rendered list for host, or "" when the
// host is unknown (per spec §4.3's getRecents).
func (r *Registry) Get(host string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, ok := r.byHost[host]
	if !ok || len(list) == 0 {
		return ""
	}
	lines := make([]string, len(list))
	for i, d := range list {
		lines[i] = render(d)
	}
	return strings.Join(lines, "\n") + "\n"
}

func render(d catalog.PluginDescription) string {
	return fmt.Sprintf("%s\t%s\t%s", catalog.CreatePluginID(d), d.Name, d.FileOrIdentifier)
}
