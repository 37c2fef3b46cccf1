package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mono/maccore/output"
)

// run executes the CLI with args and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	c := newCommand("test")
	c.Writer = &stdout
	c.ErrWriter = &stderr
	err := c.Run(context.Background(), append([]string{"btouch"}, args...))
	return stdout.String(), err
}

// contractCopy copies the fixture into a fresh directory so settings files
// written next to it do not leak between tests.
func contractCopy(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("testdata/api.yaml")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGenerateCommand(t *testing.T) {
	api := contractCopy(t)
	out := t.TempDir()
	list := filepath.Join(t.TempDir(), "sources.txt")

	_, err := run(t, "generate", "-o", out, "--sourceonly", list, api)
	require.NoError(t, err)

	widget, err := os.ReadFile(filepath.Join(out, "MonoTouch", "Foo", "Widget.g.cs"))
	require.NoError(t, err)
	assert.Contains(t, string(widget), `[Register ("FOOWidget")]`)
	assert.FileExists(t, filepath.Join(out, "MonoTouch", "ObjCRuntime", "Messaging.g.cs"))
	assert.FileExists(t, filepath.Join(out, output.ManifestName))
	assert.FileExists(t, list)
}

func TestShorthandGenerate(t *testing.T) {
	api := contractCopy(t)
	out := t.TempDir()
	_, err := run(t, "-o", out, api)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "MonoTouch", "Foo", "Widget.g.cs"))
}

func TestGenerateCommand_ConfigAndFlags(t *testing.T) {
	api := contractCopy(t)
	dir := filepath.Dir(api)
	cfg := "[generator]\nruntime-namespace = \"Acme.ObjCRuntime\"\n\n[output]\ndir = \"gen\"\nmanifest = \"-\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "btouch.toml"), []byte(cfg), 0o644))

	_, err := run(t, "generate", api)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "gen", "Acme", "ObjCRuntime", "Messaging.g.cs"))
	assert.NoFileExists(t, filepath.Join(dir, "gen", output.ManifestName))

	// Flags win over the settings file.
	out := t.TempDir()
	_, err = run(t, "generate", "--ns", "Other.Runtime", "-o", out, api)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "Other", "Runtime", "Messaging.g.cs"))
}

func TestGenerateCommand_BadConfig(t *testing.T) {
	api := contractCopy(t)
	cfg := filepath.Join(t.TempDir(), "custom.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("[output]\nfolder = \"x\"\n"), 0o644))

	_, err := run(t, "generate", "--config", cfg, api)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config keys")
}

func TestCheckCommand(t *testing.T) {
	api := contractCopy(t)
	stdout, err := run(t, "check", api)
	require.NoError(t, err)
	assert.Equal(t, "ok: 1 types, 2 files\n", stdout)
	entries, err := os.ReadDir(filepath.Dir(api))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCheckCommand_BindingError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.yaml")
	doc := "namespace: MonoTouch.Foo\ntypes:\n  - name: A\n    attributes: [{BaseType: NSObject}]\n    members:\n      - {method: Run}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	_, err := run(t, "check", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error BI1009: btouch: no [Export] or [Bind] attribute on A.Run")
}

func TestInspectCommand(t *testing.T) {
	api := contractCopy(t)
	stdout, err := run(t, "inspect", "--desktop", api)
	require.NoError(t, err)
	assert.Contains(t, stdout, "TYPES (1)")
	assert.Contains(t, stdout, "MonoTouch.Foo.Widget")
	assert.Contains(t, stdout, "SELECTORS (3)")
	assert.Contains(t, stdout, "selSetTitle_")
	assert.Contains(t, stdout, "RectangleF_objc_msgSend_stret")
	assert.Contains(t, stdout, "Widget.Frame")
	assert.NotContains(t, stdout, "TRAMPOLINES")
}

func TestMissingArgument(t *testing.T) {
	_, err := run(t, "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage: btouch check <api.yaml>")
}
