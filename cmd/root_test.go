package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetVersion(t *testing.T) {
	defer SetVersion(GetVersion())

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", GetVersion())
}

func TestNothingFoundClassification(t *testing.T) {
	err := &errNothingFound{what: "example/mcp:v1"}
	assert.True(t, nothingFound(err))
	assert.True(t, nothingFound(fmt.Errorf("discover: %w", err)))
	assert.False(t, nothingFound(errors.New("plain failure")))
	assert.Contains(t, err.Error(), "example/mcp:v1")
}

func TestRootHasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["discover"])
	assert.True(t, names["batch"])
	assert.True(t, names["version"])
	assert.True(t, names["self-update"])
}
