package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	root := newRootCmd()
	assert.Equal(t, "webclaw", root.Name())

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "teach", "workflows", "targets"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestWorkflowsSubcommands(t *testing.T) {
	wf := newWorkflowsCmd()
	names := make(map[string]bool)
	for _, sub := range wf.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])
	assert.True(t, names["exec"])
	assert.True(t, names["hint"])
}

func TestRunRequiresGoal(t *testing.T) {
	cmd := newRunCmd()
	err := cmd.Args(cmd, []string{})
	assert.Error(t, err)
	err = cmd.Args(cmd, []string{"send", "a", "dm"})
	assert.NoError(t, err)
}

func TestTeachArgRange(t *testing.T) {
	cmd := newTeachCmd()
	assert.Error(t, cmd.Args(cmd, []string{}))
	assert.NoError(t, cmd.Args(cmd, []string{"send_dm"}))
	assert.NoError(t, cmd.Args(cmd, []string{"send_dm", "instagram.com"}))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b", "c"}))
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"recipient=alice", "message=hello there"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"recipient": "alice", "message": "hello there"}, params)

	_, err = parseParams([]string{"notakv"})
	assert.Error(t, err)

	_, err = parseParams([]string{"=value"})
	assert.Error(t, err)

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, params)
}
