package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polycheck/polycheck/pkg/history"
)

func writeHistory(t *testing.T, dir string, h *history.History) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, h.ID+".yaml"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, history.Save(f, h))
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCheckAndReplay(t *testing.T) {
	dir := t.TempDir()
	writeHistory(t, dir, history.NewBuilder("lost-update").
		Initial("x", 0).
		Commit("s1", "t1", history.Read("x", 0), history.Write("x", 1)).
		Commit("s2", "t2", history.Read("x", 0), history.Write("x", 2)).
		History())
	snapshot := filepath.Join(t.TempDir(), "run.yaml")

	out, err := execute("check", dir, "--models", "pc,si", "--out", snapshot)
	require.NoError(t, err, out)
	assert.Contains(t, out, "prefix")
	assert.Contains(t, out, "lost-update violates snapshot-isolation")

	_, err = execute("check", dir, "--models", "si", "--fail-on-violation")
	assert.Equal(t, errViolations, err)

	out, err = execute("replay", snapshot)
	require.NoError(t, err, out)
	assert.Contains(t, out, "all 2 verdicts reproduced")
}

func TestCheckRejectsUnknownModel(t *testing.T) {
	_, err := execute("check", t.TempDir(), "--models", "linearizable")
	assert.Error(t, err)
}
