package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	color.NoColor = true
}

type harness struct {
	t      *testing.T
	dir    string
	config string
}

func newHarness(t *testing.T) *harness {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("session:\n  cooldown: 0s\nlog:\n  level: error\n"), 0o644))
	return &harness{t: t, dir: dir, config: cfg}
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	base := []string{"--config", h.config, "--store-path", filepath.Join(h.dir, "store"), "--yes"}
	cmd.SetArgs(append(args, base...))
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "promptasm %s", strings.Join(args, " "))
	return out
}

func TestCLI_PartsAndCompose(t *testing.T) {
	h := newHarness(t)

	assert.Contains(t, h.mustRun("part", "ls"), "Part 1")

	id := strings.TrimSpace(h.mustRun("part", "add", "--name", "Greeting", "--content", "Hello [[WHO]]"))
	require.NotEmpty(t, id)

	list := h.mustRun("part", "ls")
	assert.Contains(t, list, "Greeting")
	assert.Contains(t, list, "Hello [[WHO]]")

	assert.Equal(t, "Hello [[WHO]]\n", h.mustRun("compose", "--raw"))
	assert.Equal(t, "Hello Go\n", h.mustRun("preview", "--raw", "--set", "WHO=Go"))

	h.mustRun("part", "mv", id, "1")
	list = h.mustRun("part", "ls")
	assert.Less(t, strings.Index(list, "Greeting"), strings.Index(list, "Part 2"))

	assert.Equal(t, "collapsed: true\n", h.mustRun("part", "collapse", id))

	h.mustRun("part", "rm", id)
	assert.NotContains(t, h.mustRun("part", "ls"), "Greeting")

	assert.Contains(t, h.mustRun("part", "clear"), "success: cleared")
	assert.Contains(t, h.mustRun("part", "ls"), "No parts.")
}

func TestCLI_PartErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("part", "set", "missing", "--name", "x")
	assert.Error(t, err)

	_, err = h.run("part", "mv", "missing", "one")
	assert.Error(t, err)

	_, err = h.run("part", "add", "--content", "a", "--file", "b")
	assert.Error(t, err)
}

func TestCLI_Mode(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "transfer\n", h.mustRun("mode"))
	assert.Equal(t, "execute\n", h.mustRun("mode", "next"))
	assert.Equal(t, "clipboard\n", h.mustRun("mode", "clipboard"))
	assert.Equal(t, "clipboard\n", h.mustRun("mode"))

	_, err := h.run("mode", "fax")
	assert.Error(t, err)
}

func TestCLI_SlotsRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.mustRun("part", "add", "--name", "Body", "--content", "Keep this")

	out := h.mustRun("slot", "save", "Daily")
	key := strings.SplitN(out, "\n", 2)[0]
	require.True(t, strings.HasPrefix(key, "slot:"), out)

	assert.Contains(t, h.mustRun("slot", "ls"), "Daily")

	exported := h.mustRun("slot", "export", key, "-o", "-")
	assert.Contains(t, exported, "// Loadout Name: Daily")
	assert.Contains(t, exported, "### PART NAME: Body\nKeep this")

	file := filepath.Join(h.dir, "shared.txt")
	assert.Equal(t, file+"\n", h.mustRun("slot", "export", key, "-o", file))

	h.mustRun("part", "clear")
	assert.Contains(t, h.mustRun("slot", "import", file), "success: imported")
	assert.Contains(t, h.mustRun("part", "ls"), "Keep this")

	slots := h.mustRun("slot", "ls")
	assert.Contains(t, slots, "shared")

	h.mustRun("slot", "rename", key, "Weekly")
	assert.Contains(t, h.mustRun("slot", "ls"), "Weekly")

	assert.Contains(t, h.mustRun("slot", "rm", key), "success: deleted")
	assert.Contains(t, h.mustRun("slot", "load", key), "warning: not_found")
}

func TestCLI_SaveEmptySlotWarns(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.mustRun("slot", "save", "Nothing"), "warning: empty")
}

func TestCLI_Version(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.mustRun("version"), "promptasm version")
}
