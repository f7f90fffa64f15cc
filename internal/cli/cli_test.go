package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestPrinterWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Success("migrations applied")
	p.Warning("redis embedded")
	p.Checks(map[string]string{"redis": "ok", "database": "connection refused"})

	got := buf.String()
	if strings.Contains(got, "\033[") {
		t.Fatalf("unexpected colour codes in %q", got)
	}
	want := "✓ migrations applied\n⚠ redis embedded\n✗ database: connection refused\n✓ redis\n"
	if got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestSpinnerWithoutTerminal(t *testing.T) {
	var buf bytes.Buffer
	s := NewPrinter(&buf).Spinner("Applying migrations")
	s.Start()
	s.Success("done")
	if got := buf.String(); got != "Applying migrations...\n✓ done (< 1s)\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		500 * time.Millisecond: "< 1s",
		42 * time.Second:       "42s",
		125 * time.Second:      "2m5s",
		61 * time.Minute:       "1h1m",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}

func TestGenerateCompletion(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish"} {
		var buf bytes.Buffer
		if err := GenerateCompletion(&buf, shell); err != nil {
			t.Fatalf("%s: %v", shell, err)
		}
		if !strings.Contains(buf.String(), "createsuperuser") {
			t.Fatalf("%s script misses commands", shell)
		}
	}
	if err := GenerateCompletion(&bytes.Buffer{}, "powershell"); err == nil {
		t.Fatal("expected error for unsupported shell")
	}
}

func TestInstallCompletion(t *testing.T) {
	home := t.TempDir()
	path, err := InstallCompletion("fish", home)
	if err != nil {
		t.Fatalf("InstallCompletion() error = %v", err)
	}
	if path != filepath.Join(home, ".config", "fish", "completions", "edushop.fish") {
		t.Fatalf("path = %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read script: %v", err)
	}
	if string(data) != FishCompletion {
		t.Fatal("installed script differs")
	}
}
