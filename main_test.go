package main

import (
	"testing"

	"dcsim/cmd"
)

func TestVersion(t *testing.T) {
	if version != "dev" {
		t.Errorf("Expected default version to be 'dev', got %s", version)
	}
}

func TestSetVersionPropagates(t *testing.T) {
	original := cmd.GetVersion()
	defer cmd.SetVersion(original)

	cmd.SetVersion("2.3.4-beta.1")
	if got := cmd.GetVersion(); got != "2.3.4-beta.1" {
		t.Errorf("Expected version 2.3.4-beta.1, got %s", got)
	}
}
