package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tdsl-go/tdsl/internal/log"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseFileValidatesRequiredFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.json")
	writeConfig(t, path, `{"host":"db.example.com","port":1433,"user":"sa"}`)

	opts, err := parseFile(path)
	if err != nil {
		t.Fatalf("parseFile: %v", err)
	}
	if opts.Host != "db.example.com" || opts.Port != 1433 || opts.User != "sa" {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestParseFileRejectsMissingHost(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.json")
	writeConfig(t, path, `{"port":1433,"user":"sa"}`)

	if _, err := parseFile(path); err == nil {
		t.Fatal("expected a validation error for missing host")
	}
}

func TestParseFileRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.json")
	writeConfig(t, path, `{not json`)

	if _, err := parseFile(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestNewWatcherLoadsInitialOptions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.json")
	writeConfig(t, path, `{"host":"h","port":1433,"user":"sa"}`)

	w, err := NewWatcher(path, log.New(log.DefaultConfig()))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if w.Current().Host != "h" {
		t.Fatalf("Current().Host = %q, want %q", w.Current().Host, "h")
	}
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.json")
	writeConfig(t, path, `{"host":"h1","port":1433,"user":"sa"}`)

	reloaded := make(chan ConnOptions, 1)
	w, err := NewWatcher(path, log.New(log.DefaultConfig()),
		WithDebounceDelay(10*time.Millisecond),
		WithOnReload(func(o ConnOptions) { reloaded <- o }),
	)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeConfig(t, path, `{"host":"h2","port":1433,"user":"sa"}`)

	select {
	case o := <-reloaded:
		if o.Host != "h2" {
			t.Fatalf("reloaded host = %q, want h2", o.Host)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conn.json")
	writeConfig(t, path, `{"host":"h","port":1433,"user":"sa"}`)

	w, err := NewWatcher(path, log.New(log.DefaultConfig()))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
