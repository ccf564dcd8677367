package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appletcore/pkg/domain"
)

const requestYAML = `
display_name: Mood
activities:
  - key: daily
    name: daily
    items:
      - name: feeling
        question: {en: "How do you feel?"}
        response_type: singleSelect
        response_values:
          options:
            - {id: o1, text: good, value: 1}
            - {id: o2, text: bad, value: 1}
`

type cli struct {
	t      *testing.T
	dir    string
	config string
}

func newCLI(t *testing.T) cli {
	t.Helper()
	dir := t.TempDir()
	cfg := strings.Join([]string{
		"[storage]",
		`driver = "sqlite"`,
		`sqlite_path = "` + filepath.ToSlash(filepath.Join(dir, "applets.db")) + `"`,
		"[blob]",
		`driver = "fs"`,
		`fs_root = "` + filepath.ToSlash(filepath.Join(dir, "blobs")) + `"`,
		"[log]",
		`level = "error"`,
		"",
	}, "\n")
	path := filepath.Join(dir, "appletcore.toml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return cli{t: t, dir: dir, config: path}
}

func (c cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", c.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	out, err := c.run(stdin, args...)
	require.NoError(c.t, err)
	return out
}

func TestCreateUpdateDiffRoundTrip(t *testing.T) {
	c := newCLI(t)
	out := c.mustRun(requestYAML, "create", "--user", "u1")
	fields := strings.Fields(out)
	require.Len(t, fields, 2)
	id := fields[0]
	assert.Equal(t, "1.0.0", fields[1])

	out = c.mustRun("", "reindex", id, "--user", "u1")
	assert.Equal(t, id+" 1.0.1\n", out)

	out = c.mustRun("", "versions", id)
	assert.Equal(t, "1.0.0\n1.0.1\n", out)

	out = c.mustRun("", "diff", id, "1.0.0", "1.0.1")
	assert.Contains(t, out, "Item feeling was updated")

	out = c.mustRun("", "show", id, "--version", "1.0.0", "--archived")
	var snap domain.AppletHistoryFull
	require.NoError(t, jsonUnmarshal(out, &snap))
	assert.Equal(t, "1.0.0", snap.Version)

	c.mustRun("", "link-event", id, "ev_1")
	out = c.mustRun("", "events", id)
	assert.Equal(t, "ev_1\n", out)
}

func TestUpdateFromJSONFileWithBump(t *testing.T) {
	c := newCLI(t)
	id := strings.Fields(c.mustRun(requestYAML, "create", "--user", "u1"))[0]

	path := filepath.Join(c.dir, "update.json")
	body := `{"display_name":"Mood v2","activities":[{"key":"daily","name":"daily","items":[{"name":"notes","question":{"en":"Notes"},"response_type":"text"}]}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out := c.mustRun("", "update", id, "--user", "u1", "-f", path, "--bump", "major")
	assert.Equal(t, id+" 2.0.0\n", out)

	_, err := c.run("", "update", id, "--user", "u1", "-f", path, "--expected-version", "1.0.0")
	require.Error(t, err)
	assert.Equal(t, exitConflict, exitCode(err))
}

func TestErrorsMapToExitCodes(t *testing.T) {
	c := newCLI(t)
	_, err := c.run("", "versions", "missing")
	assert.Equal(t, exitNotFound, exitCode(err))

	_, err = c.run(requestYAML, "create")
	assert.Equal(t, exitValidation, exitCode(err), "missing --user")

	_, err = c.run("display_name: x\nactivities: []\n", "create", "--user", "u1")
	assert.Equal(t, exitValidation, exitCode(err))

	_, err = c.run("", "update", "x", "--user", "u1", "--bump", "giant")
	assert.Equal(t, exitValidation, exitCode(err))

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitError, exitCode(errors.New("boom")))
	assert.Equal(t, exitTimeout, exitCode(&domain.TimeoutError{Op: "x", Err: errors.New("slow")}))
}

func TestMetricsOut(t *testing.T) {
	c := newCLI(t)
	metrics := filepath.Join(c.dir, "metrics.prom")
	c.mustRun(requestYAML, "create", "--user", "u1", "--metrics-out", metrics)
	raw, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `appletcore_operations_total{operation="create_applet",status="success"} 1`)
}

func TestReadRequestRejectsGarbage(t *testing.T) {
	_, err := readRequest("-", strings.NewReader("display_name: [unterminated"))
	assert.Error(t, err)
	_, err = readRequest(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
