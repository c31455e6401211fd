package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Metadata(t *testing.T) {
	assert.Equal(t, "pulse", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	want := []string{"ingest", "analyze", "dedup", "predict", "outcomes", "correlate", "runs", "serve"}

	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range want {
		assert.True(t, names[name], "missing subcommand %s", name)
	}
}

func TestDedupCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range dedupCmd.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["lexical"])
	require.True(t, names["semantic"])
}
