package handler

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type stubCommand struct {
	prefix string
	tools  map[string]ToolDefinition
}

func (s stubCommand) CommandPrefix() string { return s.prefix }
func (s stubCommand) Description() string   { return "stub command " + s.prefix }
func (s stubCommand) ToolDefinitions() map[string]ToolDefinition {
	if s.tools != nil {
		return s.tools
	}
	return map[string]ToolDefinition{s.prefix + "_execute": {Description: "stub tool " + s.prefix}}
}
func (s stubCommand) Execute(ctx context.Context, action string, params json.RawMessage) (any, error) {
	return map[string]any{"action": action, "echo": string(params)}, nil
}

type stubResource struct {
	uri string
}

func (s stubResource) URI() string         { return s.uri }
func (s stubResource) Description() string { return "stub resource " + s.uri }
func (s stubResource) Fetch(ctx context.Context, uri string, params map[string]string) (any, error) {
	return "contents of " + uri, nil
}

type stubPrompt struct {
	name string
	tmpl string
	args []PromptArgument
}

func (s stubPrompt) Name() string              { return s.name }
func (s stubPrompt) Description() string       { return "stub prompt " + s.name }
func (s stubPrompt) Template() string          { return s.tmpl }
func (s stubPrompt) Arguments() []PromptArgument { return s.args }

func TestRegistry_RegisterByInterface(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubCommand{prefix: "build"}); err != nil {
		t.Fatalf("Register(command): %v", err)
	}
	if err := r.Register(stubResource{uri: "project://manifest"}); err != nil {
		t.Fatalf("Register(resource): %v", err)
	}
	if err := r.Register(stubPrompt{name: "refactor", tmpl: "Refactor {file} for {goal}"}); err != nil {
		t.Fatalf("Register(prompt): %v", err)
	}

	if len(r.Commands()) != 1 || len(r.Resources()) != 1 || len(r.Prompts()) != 1 {
		t.Fatalf("unexpected registry contents: %d commands, %d resources, %d prompts",
			len(r.Commands()), len(r.Resources()), len(r.Prompts()))
	}
}

type notAHandler struct{}

func TestRegistry_RejectsNonHandler(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(notAHandler{}); !errors.Is(err, ErrNotAHandler) {
		t.Fatalf("Register() error = %v, want ErrNotAHandler", err)
	}
}

func TestRegistry_RejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubCommand{prefix: "build"}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := r.Register(stubCommand{prefix: "build"}); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Register() error = %v, want ErrDuplicateName", err)
	}
}

// TestRegistry_DisabledHandlerExcludedFromListingAndLookup is the universal
// property: handler-disable honored.
func TestRegistry_DisabledHandlerExcludedFromListingAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubCommand{prefix: "danger"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := r.SetEnabled(KindCommand, "danger", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}

	if len(r.Commands()) != 0 {
		t.Fatalf("Commands() = %v, want empty", r.Commands())
	}
	if _, err := r.Command("danger"); !errors.Is(err, ErrHandlerDisabled) {
		t.Fatalf("Command() error = %v, want ErrHandlerDisabled", err)
	}

	if err := r.SetEnabled(KindCommand, "danger", true); err != nil {
		t.Fatalf("SetEnabled re-enable: %v", err)
	}
	if len(r.Commands()) != 1 {
		t.Fatalf("Commands() after re-enable = %v, want 1 entry", r.Commands())
	}
}

func TestRegistry_SeedManifestDisablesBeforeRegister(t *testing.T) {
	r := NewRegistry()
	r.SeedManifest(map[string]bool{manifestKey(KindCommand, "build"): true})

	if err := r.Register(stubCommand{prefix: "build"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Command("build"); !errors.Is(err, ErrHandlerDisabled) {
		t.Fatalf("Command() error = %v, want ErrHandlerDisabled", err)
	}
}

// TestCommandHandler_MultipleToolsUnderOnePrefix is the multi-tool-per-
// handler property (spec §4.4): one CommandHandler's ToolDefinitions can
// expose several MCP tool names sharing a CommandPrefix.
func TestCommandHandler_MultipleToolsUnderOnePrefix(t *testing.T) {
	cmd := stubCommand{
		prefix: "menu",
		tools: map[string]ToolDefinition{
			"menu_execute": {Description: "run a menu item"},
			"menu_undo":    {Description: "undo the last menu action"},
		},
	}
	r := NewRegistry()
	if err := r.Register(cmd); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Command("menu")
	if err != nil {
		t.Fatalf("Command: %v", err)
	}
	defs := got.ToolDefinitions()
	if len(defs) != 2 {
		t.Fatalf("ToolDefinitions() = %v, want 2 entries", defs)
	}
	if _, ok := defs["menu_execute"]; !ok {
		t.Fatal("ToolDefinitions() missing menu_execute")
	}
	if _, ok := defs["menu_undo"]; !ok {
		t.Fatal("ToolDefinitions() missing menu_undo")
	}
}

// TestRenderPrompt_SubstitutesArguments is the universal property: prompt
// template substitution.
func TestRenderPrompt_SubstitutesArguments(t *testing.T) {
	p := stubPrompt{
		name: "refactor",
		tmpl: "Refactor {file} to satisfy {goal}, keeping {file} readable.",
		args: []PromptArgument{{Name: "file", Required: true}, {Name: "goal", Required: true}},
	}

	got := RenderPrompt(p, map[string]string{"file": "main.go", "goal": "idiomatic style"})
	want := "Refactor main.go to satisfy idiomatic style, keeping main.go readable."
	if got != want {
		t.Fatalf("RenderPrompt() = %q, want %q", got, want)
	}
}

func TestRenderPrompt_LeavesUnrecognizedPlaceholderIntact(t *testing.T) {
	p := stubPrompt{name: "x", tmpl: "Value is {known} and {unknown}", args: []PromptArgument{{Name: "known"}}}
	got := RenderPrompt(p, map[string]string{"known": "42"})
	if got != "Value is 42 and {unknown}" {
		t.Fatalf("RenderPrompt() = %q", got)
	}
}

func TestDiscover_FingerprintStableUnlessDirectoryChanges(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.go"), []byte("package a"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	first, err := Discover(dir, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !first.Changed {
		t.Fatal("first Discover() should report Changed")
	}

	second, err := Discover(dir, first.Fingerprint)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if second.Changed {
		t.Fatal("second Discover() with matching fingerprint should not report Changed")
	}

	if err := os.WriteFile(filepath.Join(dir, "b.go"), []byte("package a"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	third, err := Discover(dir, first.Fingerprint)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if !third.Changed {
		t.Fatal("Discover() after adding a file should report Changed")
	}
}

func TestDiscover_ParsesManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := "handlers:\n  - name: danger.wipe\n    kind: command\n    enabled: false\n"
	if err := os.WriteFile(filepath.Join(dir, "handlers.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	result, err := Discover(dir, "")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if result.Manifest == nil {
		t.Fatal("expected manifest to be parsed")
	}
	disabled := result.Manifest.DisabledNames()
	if !disabled[manifestKey(KindCommand, "danger.wipe")] {
		t.Fatalf("DisabledNames() = %v, want danger.wipe disabled", disabled)
	}
}
