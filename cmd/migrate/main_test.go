package main

import (
	"strings"
	"testing"
)

func TestRunRequiresCommand(t *testing.T) {
	err := run(nil)
	if err == nil || !strings.Contains(err.Error(), "usage") {
		t.Fatalf("run(nil) error = %v", err)
	}
}

func TestRunRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := run([]string{"up"})
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("run(up) error = %v", err)
	}
}
