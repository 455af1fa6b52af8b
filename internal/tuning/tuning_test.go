package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	v, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := Defaults()
	if v != want {
		t.Errorf("expected defaults %+v, got %+v", want, v)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	content := "queue_size: 64\ndrain_timeout: 5s\n"
	if err := os.WriteFile(filepath.Join(dir, "tuning.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	v, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.QueueSize != 64 {
		t.Errorf("expected QueueSize 64, got %d", v.QueueSize)
	}
	if v.DrainTimeout != 5*time.Second {
		t.Errorf("expected DrainTimeout 5s, got %v", v.DrainTimeout)
	}
}

func TestLoadPartialOverrideKeepsOtherDefault(t *testing.T) {
	dir := t.TempDir()
	content := "queue_size: 10\n"
	if err := os.WriteFile(filepath.Join(dir, "tuning.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	v, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if v.QueueSize != 10 {
		t.Errorf("expected QueueSize 10, got %d", v.QueueSize)
	}
	if v.DrainTimeout != defaultDrainTimeout {
		t.Errorf("expected default DrainTimeout, got %v", v.DrainTimeout)
	}
}
