package main

import "testing"

func TestVersionDefaults(t *testing.T) {
	if Version == "" {
		t.Error("Version must not be empty")
	}
	if BuildTime == "" {
		t.Error("BuildTime must not be empty")
	}
}
