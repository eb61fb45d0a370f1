package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-rag-engine/internal/bootstrap"
)

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"build", "stats", "history", "delete", "ask"} {
		assert.True(t, names[want], "%s command should be registered", want)
	}
}

func TestBuildHelpOutput(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"build", "--help"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "temporal knowledge graph")
	assert.Contains(t, buf.String(), "--index")
}

func TestArgValidation(t *testing.T) {
	assert.Error(t, askCmd.Args(askCmd, []string{"doupo"}))
	assert.NoError(t, askCmd.Args(askCmd, []string{"doupo", "萧炎的师父是谁？"}))
	assert.Error(t, buildCmd.Args(buildCmd, nil))
}

func TestBuildMissingFile(t *testing.T) {
	assert.Error(t, runBuild(buildCmd, []string{"/nonexistent/corpus.json"}))
}

func TestArchiveRequiresPostgresStore(t *testing.T) {
	_, err := archiveOf(&bootstrap.Engine{})
	assert.Error(t, err)
}
