package bridge

import (
	"strings"

	"github.com/mcpbridge/bridge/internal/handler"
)

// RegisterManifest turns each command/resource entry in a discovered
// handlers.yaml manifest into a forwarding handler backed by the router,
// and seeds its enabled state. Prompt entries are skipped: a prompt needs
// an actual template string, which the manifest does not carry, so prompts
// are still registered by explicit constructor call (spec §4.4).
//
// The registry keys command handlers by their CommandPrefix, not by the
// full dotted wire command name, so every manifest entry sharing a prefix
// (e.g. "menu.execute" and "menu.undo") is folded into one
// ForwardingCommand covering both. SeedManifest must run before any
// Register call to take effect, so every entry is collected first.
func (b *Bridge) RegisterManifest(m *handler.Manifest) error {
	if m == nil {
		return nil
	}

	disabled := make(map[string]bool)
	for k, v := range m.DisabledNames() {
		if !strings.HasPrefix(k, string(handler.KindCommand)+":") {
			disabled[k] = v
		}
	}

	commandsByPrefix := make(map[string][]string)
	var commandOrder []string
	var resources []handler.ManifestEntry
	for _, entry := range m.Handlers {
		switch entry.Kind {
		case handler.KindCommand:
			prefix, _ := commandPrefix(entry.Name)
			if _, seen := commandsByPrefix[prefix]; !seen {
				commandOrder = append(commandOrder, prefix)
			}
			commandsByPrefix[prefix] = append(commandsByPrefix[prefix], entry.Name)
			// A prefix is disabled if any of its entries is explicitly
			// disabled: the registry tracks one enabled flag per prefix,
			// not per action.
			if entry.Enabled != nil && !*entry.Enabled {
				disabled[string(handler.KindCommand)+":"+prefix] = true
			}
		case handler.KindResource:
			resources = append(resources, entry)
		case handler.KindPrompt:
			b.logger.Debug("bridge: skipping manifest prompt entry, needs explicit registration", "name", entry.Name)
		}
	}

	b.registry.SeedManifest(disabled)

	for _, prefix := range commandOrder {
		h := NewForwardingCommand(prefix, commandsByPrefix[prefix], b.router)
		if err := b.registry.Register(h); err != nil {
			return err
		}
	}
	for _, entry := range resources {
		h := NewForwardingResource(entry.Name, "forwarded editor resource: "+entry.Name, b.router)
		if err := b.registry.Register(h); err != nil {
			return err
		}
	}
	return nil
}

// commandPrefix splits a manifest entry's full dotted wire command name
// ("prefix.action") into its prefix, per spec §4.4's "prefix.action"
// convention.
func commandPrefix(fullName string) (prefix, action string) {
	before, after, found := strings.Cut(fullName, ".")
	if !found {
		return fullName, ""
	}
	return before, after
}
