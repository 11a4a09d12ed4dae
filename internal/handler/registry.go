package handler

import (
	"fmt"
	"strings"
	"sync"
)

// ErrNotAHandler is returned by Register when the value satisfies none of
// CommandHandler, ResourceHandler, or PromptHandler.
var ErrNotAHandler = fmt.Errorf("handler: value implements no recognized handler interface")

// ErrAmbiguousHandler is returned by Register when the value satisfies more
// than one handler interface; a handler must pick exactly one role.
var ErrAmbiguousHandler = fmt.Errorf("handler: value implements more than one handler interface")

// ErrDuplicateName is returned by Register when a handler of the same kind
// and name is already registered.
var ErrDuplicateName = fmt.Errorf("handler: duplicate name for this kind")

// ErrHandlerDisabled is returned by the lookup methods when a handler
// exists but has been disabled (spec §4.4, §7's HandlerDisabled error kind).
var ErrHandlerDisabled = fmt.Errorf("handler: disabled")

// ErrUnknownHandler is returned by the lookup methods when no handler of
// the requested kind and name is registered.
var ErrUnknownHandler = fmt.Errorf("handler: unknown")

// Registry holds every discovered CommandHandler, ResourceHandler, and
// PromptHandler, each independently enabled or disabled (spec §4.4).
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]*entry
	resources map[string]*entry
	prompts   map[string]*entry

	// defaultDisabled seeds the enabled flag for a handler name discovered
	// via a handlers.yaml manifest (see discovery.go); nil entries default
	// to enabled.
	defaultDisabled map[string]bool
}

// NewRegistry returns an empty Registry. Every handler starts enabled
// unless its name appears disabled in a manifest loaded with SeedManifest.
func NewRegistry() *Registry {
	return &Registry{
		commands:        make(map[string]*entry),
		resources:       make(map[string]*entry),
		prompts:         make(map[string]*entry),
		defaultDisabled: make(map[string]bool),
	}
}

// SeedManifest records which handler names should start disabled, keyed by
// "<kind>:<name>". Must be called before Register to take effect.
func (r *Registry) SeedManifest(disabledNames map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range disabledNames {
		r.defaultDisabled[k] = v
	}
}

// Register asserts h against each of the three handler interfaces in turn
// and files it under whichever one it satisfies. Registering a value that
// satisfies zero or more than one interface is a programming error and
// returns ErrNotAHandler or ErrAmbiguousHandler respectively.
func (r *Registry) Register(h any) error {
	cmd, isCmd := h.(CommandHandler)
	res, isRes := h.(ResourceHandler)
	prm, isPrm := h.(PromptHandler)

	matches := 0
	if isCmd {
		matches++
	}
	if isRes {
		matches++
	}
	if isPrm {
		matches++
	}
	switch matches {
	case 0:
		return ErrNotAHandler
	case 1:
		// exactly one match, handled below
	default:
		return ErrAmbiguousHandler
	}

	switch {
	case isCmd:
		return r.registerCommand(cmd)
	case isRes:
		return r.registerResource(res)
	default:
		return r.registerPrompt(prm)
	}
}

func (r *Registry) registerCommand(h CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := h.CommandPrefix()
	if _, exists := r.commands[prefix]; exists {
		return fmt.Errorf("%w: command prefix %q", ErrDuplicateName, prefix)
	}
	r.commands[prefix] = &entry{kind: KindCommand, name: prefix, command: h, enabled: r.initialEnabled(KindCommand, prefix)}
	return nil
}

func (r *Registry) registerResource(h ResourceHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.resources[h.URI()]; exists {
		return fmt.Errorf("%w: resource %q", ErrDuplicateName, h.URI())
	}
	r.resources[h.URI()] = &entry{kind: KindResource, name: h.URI(), resource: h, enabled: r.initialEnabled(KindResource, h.URI())}
	return nil
}

func (r *Registry) registerPrompt(h PromptHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.prompts[h.Name()]; exists {
		return fmt.Errorf("%w: prompt %q", ErrDuplicateName, h.Name())
	}
	r.prompts[h.Name()] = &entry{kind: KindPrompt, name: h.Name(), prompt: h, enabled: r.initialEnabled(KindPrompt, h.Name())}
	return nil
}

func (r *Registry) initialEnabled(kind Kind, name string) bool {
	return !r.defaultDisabled[manifestKey(kind, name)]
}

func manifestKey(kind Kind, name string) string {
	return string(kind) + ":" + name
}

// SetEnabled toggles a handler's enabled flag (spec §4.4's "enabled" field,
// universal property: handler-disable honored).
func (r *Registry) SetEnabled(kind Kind, name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entryLocked(kind, name)
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrUnknownHandler, kind, name)
	}
	e.enabled = enabled
	return nil
}

func (r *Registry) entryLocked(kind Kind, name string) (*entry, bool) {
	switch kind {
	case KindCommand:
		e, ok := r.commands[name]
		return e, ok
	case KindResource:
		e, ok := r.resources[name]
		return e, ok
	case KindPrompt:
		e, ok := r.prompts[name]
		return e, ok
	default:
		return nil, false
	}
}

// Command returns the command handler registered under prefix, if enabled.
func (r *Registry) Command(prefix string) (CommandHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.commands[prefix]
	if !ok {
		return nil, fmt.Errorf("%w: command prefix %q", ErrUnknownHandler, prefix)
	}
	if !e.enabled {
		return nil, fmt.Errorf("%w: command prefix %q", ErrHandlerDisabled, prefix)
	}
	return e.command, nil
}

// Resource returns the resource handler registered under uri, if enabled.
func (r *Registry) Resource(uri string) (ResourceHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.resources[uri]
	if !ok {
		return nil, fmt.Errorf("%w: resource %q", ErrUnknownHandler, uri)
	}
	if !e.enabled {
		return nil, fmt.Errorf("%w: resource %q", ErrHandlerDisabled, uri)
	}
	return e.resource, nil
}

// Prompt returns the named prompt handler, if enabled.
func (r *Registry) Prompt(name string) (PromptHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.prompts[name]
	if !ok {
		return nil, fmt.Errorf("%w: prompt %q", ErrUnknownHandler, name)
	}
	if !e.enabled {
		return nil, fmt.Errorf("%w: prompt %q", ErrHandlerDisabled, name)
	}
	return e.prompt, nil
}

// Commands returns every enabled command handler, for MCP tool listing.
func (r *Registry) Commands() []CommandHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CommandHandler, 0, len(r.commands))
	for _, e := range r.commands {
		if e.enabled {
			out = append(out, e.command)
		}
	}
	return out
}

// Resources returns every enabled resource handler.
func (r *Registry) Resources() []ResourceHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceHandler, 0, len(r.resources))
	for _, e := range r.resources {
		if e.enabled {
			out = append(out, e.resource)
		}
	}
	return out
}

// Prompts returns every enabled prompt handler.
func (r *Registry) Prompts() []PromptHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PromptHandler, 0, len(r.prompts))
	for _, e := range r.prompts {
		if e.enabled {
			out = append(out, e.prompt)
		}
	}
	return out
}

// RenderPrompt substitutes "{name}" placeholders in a prompt's template
// with the supplied arguments (spec §4.4, universal property: prompt
// template substitution). Unrecognized placeholders are left intact.
func RenderPrompt(h PromptHandler, args map[string]string) string {
	out := h.Template()
	for _, arg := range h.Arguments() {
		val, ok := args[arg.Name]
		if !ok {
			continue
		}
		out = strings.ReplaceAll(out, "{"+arg.Name+"}", val)
	}
	return out
}
