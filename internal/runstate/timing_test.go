package runstate

import (
	"testing"
	"time"
)

func TestTiming_StartEndRoundTrip(t *testing.T) {
	dir := t.TempDir()
	timing, err := LoadTiming(dir)
	if err != nil {
		t.Fatal(err)
	}
	timing.AddStart("010_setup")
	time.Sleep(time.Millisecond)
	timing.AddEnd("010_setup")

	if err := timing.Flush(dir); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadTiming(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(loaded.Entries))
	}
	if loaded.Entries[0].Stage != "010_setup" {
		t.Fatalf("unexpected stage label: %q", loaded.Entries[0].Stage)
	}
	if loaded.Entries[0].Duration == "" {
		t.Fatal("expected non-empty duration")
	}
}

func TestLoadTiming_NoFile(t *testing.T) {
	dir := t.TempDir()
	timing, err := LoadTiming(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(timing.Entries) != 0 {
		t.Fatalf("expected empty timing, got %v", timing.Entries)
	}
}
